package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRunRejectsUnknownFlag(t *testing.T) {
	if err := run(context.Background(), []string{"-nope"}); err == nil {
		t.Fatal("expected flag error")
	}
}

func TestRunRequiresSigningSecret(t *testing.T) {
	t.Setenv("DEVAUTH_JWT_SECRET", "")
	err := run(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRunMigrateOnly(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "devauth.yaml")
	yaml := "database:\n  driver: sqlite3\n  dsn: " + filepath.Join(dir, "devauth.db") + "\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DEVAUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")

	if err := run(context.Background(), []string{"-config", cfgPath, "-migrate"}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "devauth.db")); err != nil {
		t.Fatalf("expected database file: %v", err)
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func writeServeConfig(t *testing.T, httpAddr, grpcAddr string) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "devauth.yaml")
	yaml := "database:\n  driver: sqlite3\n  auto_migrate: true\n  dsn: " + filepath.Join(dir, "devauth.db") + "\n" +
		"password:\n  memory_kb: 8192\n  time: 1\n  parallelism: 1\n" +
		"server:\n  http_addr: " + httpAddr + "\n  grpc_addr: " + grpcAddr + "\n  shutdown_timeout: 5s\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	mr := miniredis.RunT(t)
	t.Setenv("DEVAUTH_REDIS_ADDR", mr.Addr())
	t.Setenv("DEVAUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	return cfgPath
}

func TestRunWaitsForGRPCShutdown(t *testing.T) {
	grpcAddr := freeAddr(t)
	cfgPath := writeServeConfig(t, freeAddr(t), grpcAddr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, []string{"-config", cfgPath}) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("tcp", grpcAddr)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("grpc server never listened: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	if conn, err := net.Dial("tcp", grpcAddr); err == nil {
		conn.Close()
		t.Fatal("grpc listener still open after run returned")
	}
}

func TestRunReportsGRPCListenFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()
	cfgPath := writeServeConfig(t, freeAddr(t), taken.Addr().String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = run(ctx, []string{"-config", cfgPath})
	if err == nil || !strings.Contains(err.Error(), "grpc server") {
		t.Fatalf("expected grpc server error, got %v", err)
	}
}
