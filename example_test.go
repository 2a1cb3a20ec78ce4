package devAuth_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	devAuth "github.com/MrEthical07/devAuth"
	"github.com/MrEthical07/devAuth/store"
)

// ExampleNew demonstrates engine construction with production-style dependencies.
func ExampleNew() {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	db, err := store.Open(ctx, store.Config{Driver: "pgx", DSN: "postgres://localhost/devauth", AutoMigrate: true})
	if err != nil {
		return
	}

	cfg := devAuth.DefaultConfig()
	cfg.JWT.Secret = "replace-with-32-or-more-random-bytes"

	engine, err := devAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(db).
		Build()
	if err != nil {
		return
	}
	defer engine.Close()
}

// ExampleEngine_Login shows a login from a known device and structured error handling.
func ExampleEngine_Login() {
	var engine *devAuth.Engine
	ctx := devAuth.WithClientIP(context.Background(), "203.0.113.7")

	res, err := engine.Login(ctx, devAuth.LoginRequest{
		Username: "alice",
		Password: "correct-horse",
		Device:   devAuth.DeviceInfo{DeviceID: "laptop-7f3a", Name: "work laptop"},
	})
	switch {
	case errors.Is(err, devAuth.ErrInvalidCredentials), errors.Is(err, devAuth.ErrUserNotFound):
		fmt.Println("bad username or password")
	case err != nil:
		fmt.Println("login failed")
	default:
		_ = res.Token
	}
}

// ExampleEngine_ValidateToken shows the per-request check.
func ExampleEngine_ValidateToken() {
	var engine *devAuth.Engine
	sess, err := engine.ValidateToken(context.Background(), "token-from-authorization-header")
	if err != nil {
		// every rejection is ErrInvalidToken
		return
	}
	_ = sess.UserID
}

// ExampleEngine_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *devAuth.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot.Counters[devAuth.MetricLoginSuccess]
}
