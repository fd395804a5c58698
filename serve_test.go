package main

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/praisemwanza53/genset-monitoring/config"
	"github.com/praisemwanza53/genset-monitoring/database"
)

func testServeConfig(t *testing.T, address string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "serve.db")
	cfg.Logging.LogLevel = "error"
	cfg.Server.Address = address
	return cfg
}

func TestRunServerReleasesDatabaseWhenListenFails(t *testing.T) {
	// hold the port so the server cannot bind it
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	done := make(chan error, 1)
	go func() { done <- runServer(context.Background(), testServeConfig(t, ln.Addr().String())) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected listen error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return after listen failure")
	}
	if database.IsConnected() {
		t.Fatal("database left open after listen failure")
	}
}

func TestRunServerShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, testServeConfig(t, addr)) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("health status %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer returned %v", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("runServer did not stop")
	}
	if database.IsConnected() {
		t.Fatal("database left open after shutdown")
	}
}
