package auth

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coder/quartz"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

// personalSign 模拟 MetaMask：V 取 27/28
func personalSign(t *testing.T, msg string) (addr, sig string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)))
	raw, err := crypto.Sign(hash.Bytes(), key)
	require.NoError(t, err)
	raw[64] += 27
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), "0x" + hex.EncodeToString(raw)
}

func TestRecoverAddress(t *testing.T) {
	addr, sig := personalSign(t, LoginMessage("abc"))

	got, err := RecoverAddress(LoginMessage("abc"), sig)
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	other, err := RecoverAddress(LoginMessage("xyz"), sig)
	require.NoError(t, err)
	assert.NotEqual(t, addr, other)

	_, err = RecoverAddress("m", "0x1234")
	assert.ErrorIs(t, err, ErrBadSignature)
	_, err = RecoverAddress("m", "zz")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tok, err := IssueToken(secret, "0xAbC", now, time.Hour)
	require.NoError(t, err)

	addr, err := ParseToken(secret, tok, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "0xAbC", addr)

	_, err = ParseToken(secret, tok, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = ParseToken([]byte("other"), tok, now)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNonceStores(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mClock := quartz.NewMock(t)

	stores := map[string]struct {
		store  NonceStore
		elapse func(time.Duration)
	}{
		"memory": {NewMemoryNonceStore(mClock), func(d time.Duration) { mClock.Set(mClock.Now().Add(d)) }},
		"redis":  {NewRedisNonceStore(rdb), mr.FastForward},
	}
	for name, tc := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, tc.store.Issue(ctx, "n1", time.Minute))
			assert.Error(t, tc.store.Issue(ctx, "n1", time.Minute))

			ok, err := tc.store.Consume(ctx, "n1")
			require.NoError(t, err)
			assert.True(t, ok)
			ok, _ = tc.store.Consume(ctx, "n1")
			assert.False(t, ok, "nonce is single use")

			require.NoError(t, tc.store.Issue(ctx, "n2", time.Minute))
			tc.elapse(2 * time.Minute)
			ok, _ = tc.store.Consume(ctx, "n2")
			assert.False(t, ok, "expired nonce")
		})
	}
}

func TestLoginFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewMemoryNonceStore(nil), secret)
	r := gin.New()
	h.Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/nonce", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var nonceResp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nonceResp))
	nonce := nonceResp["nonce"]
	assert.Len(t, nonce, 32)
	assert.Equal(t, LoginMessage(nonce), nonceResp["message"])

	addr, sig := personalSign(t, LoginMessage(nonce))
	login := func(req LoginRequest) *httptest.ResponseRecorder {
		body, _ := json.Marshal(req)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
		return w
	}

	w = login(LoginRequest{Address: addr, Signature: sig, Nonce: nonce})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var loginResp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginResp))
	got, err := ParseToken(secret, loginResp["jwt"], time.Now())
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	// 重放
	w = login(LoginRequest{Address: addr, Signature: sig, Nonce: nonce})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = login(LoginRequest{Address: addr})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginSignatureMismatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	nonces := NewMemoryNonceStore(nil)
	h := NewHandler(nonces, secret)
	r := gin.New()
	h.Register(r)

	require.NoError(t, nonces.Issue(context.Background(), "n", time.Minute))
	_, sig := personalSign(t, LoginMessage("n"))
	other, _ := personalSign(t, "whatever")

	body, _ := json.Marshal(LoginRequest{Address: other, Signature: sig, Nonce: "n"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
