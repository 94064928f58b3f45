package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"SnapPoker/config"
	"SnapPoker/internal/auth"
	"SnapPoker/internal/game/manager"
	"SnapPoker/internal/game/store"
	"SnapPoker/internal/history"
	"SnapPoker/internal/matchmaker"
	"SnapPoker/internal/middleware"
	"SnapPoker/internal/storage"
	"SnapPoker/internal/utils"
	"SnapPoker/internal/websocket"
)

type ServeCmd struct {
	Config string `short:"c" default:"config/config.yaml" help:"Path to the YAML config file"`
}

func (s *ServeCmd) Run() error {
	if err := config.Load(s.Config); err != nil {
		return err
	}
	if err := utils.Init(config.C.Log.Level); err != nil {
		return err
	}
	logger := utils.Named("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//-------------------------------------------------------
	// 1. 初始化 Redis / Postgres
	//-------------------------------------------------------
	rdb, err := storage.NewRedis(ctx, config.C.Redis.Addr, config.C.Redis.Password, config.C.Redis.DB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	recorder := history.NewMemoryRecorder()
	db, err := storage.NewPostgres(ctx, config.C.Database.DSN)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if recorder, err = history.NewPostgresRecorder(ctx, db); err != nil {
			return err
		}
	} else {
		logger.Warn("database.dsn not set, round history kept in memory")
	}

	//-------------------------------------------------------
	// 2. Hub（必须最先启动）
	//-------------------------------------------------------
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Close()

	//-------------------------------------------------------
	// 3. GameManager
	//-------------------------------------------------------
	gameMgr := manager.NewGameManager(hub,
		manager.WithStore(store.NewRedisStore(rdb, config.C.Game.RecordTTL)),
		manager.WithRecorder(recorder),
		manager.WithSettings(config.C.GameSettings()),
		manager.WithIdleTimeout(config.C.Game.IdleTimeout),
	)
	defer gameMgr.Shutdown()
	gameMgr.StartReaper(ctx, time.Minute)
	hub.OnIncoming = gameMgr.HandlePlayerMessage

	//-------------------------------------------------------
	// 4. Matchmaker
	//-------------------------------------------------------
	svc := matchmaker.NewService(matchmaker.NewRedisRepo(rdb), config.C.Matchmaker.PlayerTTL, hub)

	// 成桌回调：让 GameManager 接手并启动 Engine
	svc.OnRoomReady = func(room *matchmaker.Room) {
		if err := gameMgr.StartRoom(ctx, room); err != nil {
			logger.Error("start room", "room", room.ID, "err", err)
		}
	}

	//-------------------------------------------------------
	// 5. Gin + CORS + 路由
	//-------------------------------------------------------
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	secret := []byte(config.C.JWT.Secret)
	auth.NewHandler(auth.NewRedisNonceStore(rdb), secret).Register(r)

	authed := r.Group("/", middleware.JwtAuthMiddleware(secret, nil))
	{
		authed.GET("/ws", websocket.ServeWS(hub))
		matchmaker.NewHandler(svc).Register(authed)
		manager.NewHandler(gameMgr).Register(authed)
	}

	//-------------------------------------------------------
	// 6. 启动服务器
	//-------------------------------------------------------
	srv := &http.Server{
		Addr:              config.C.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server running", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
