package authgate_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/userstore/memory"
)

func testConfig() authgate.Config {
	cfg := authgate.DefaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret")
	// Minimal hashing costs, the suite hashes a lot of passwords.
	cfg.Password = authgate.PasswordConfig{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	cfg.Throttle.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, mutate func(*authgate.Config)) (*authgate.Engine, *memory.Store) {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memory.New()
	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, store
}

func registerUser(t *testing.T, engine *authgate.Engine, email, pw string) authgate.User {
	t.Helper()
	user, _, err := engine.Register(context.Background(), email, pw, authgate.RoleUser)
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return user
}

func loginUser(t *testing.T, engine *authgate.Engine, email, pw string) *authgate.LoginResult {
	t.Helper()
	result, err := engine.Login(context.Background(), email, pw)
	if err != nil {
		t.Fatalf("Login(%s): %v", email, err)
	}
	return result
}

func ctxWithAddr(addr string) context.Context {
	return authgate.WithSourceAddress(context.Background(), addr)
}

// totpCode computes a SHA1 TOTP for tests, independent of the
// production verifier.
func totpCode(secret []byte, digits int, at time.Time) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(at.Unix()/30))

	mac := hmac.New(sha1.New, secret)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod)
}
