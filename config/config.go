package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"SnapPoker/internal/game/engine"
)

type Config struct {
	Server struct {
		Port string
	}
	Database struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	JWT struct {
		Secret string
	}
	Log struct {
		Level string
	}
	Game struct {
		StartingLives int
		RevealDelay   time.Duration
		RevealWindow  time.Duration
		RecordTTL     time.Duration
		IdleTimeout   time.Duration // 未开局/已结束的对局闲置多久后回收
	}
	Matchmaker struct {
		PlayerTTL int // 秒
	}
}

var C Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("game.startingLives", 10)
	v.SetDefault("game.revealDelay", "2s")
	v.SetDefault("game.revealWindow", "10s")
	v.SetDefault("game.recordTTL", "24h")
	v.SetDefault("game.idleTimeout", "10m")
	v.SetDefault("matchmaker.playerTTL", 300)
}

// Load 读取配置文件并允许 SNAPPOKER_* 环境变量覆盖，例如 SNAPPOKER_JWT_SECRET
// path 为空时只用默认值和环境变量
func Load(path string) error {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SNAPPOKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv 只对已知 key 生效，没有默认值的也要绑定
	for _, k := range []string{"database.dsn", "redis.password", "jwt.secret"} {
		if err := v.BindEnv(k); err != nil {
			return err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret must be set")
	}
	if c.Game.StartingLives < 1 {
		return fmt.Errorf("game.startingLives must be positive, got %d", c.Game.StartingLives)
	}
	C = c
	return nil
}

// GameSettings 对局参数
func (c Config) GameSettings() engine.Settings {
	return engine.Settings{
		StartingLives: c.Game.StartingLives,
		RevealDelay:   c.Game.RevealDelay,
		RevealWindow:  c.Game.RevealWindow,
	}
}
