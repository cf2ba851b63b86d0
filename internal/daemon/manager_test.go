// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/overlaycast/internal/config"
	"github.com/ManuGH/overlaycast/internal/log"
)

func reserveListenAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func waitForListen(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.New("listen timeout")
}

func testDeps(handler http.Handler) Deps {
	return Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: handler,
	}
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(ServerConfig{}, Deps{Logger: zerolog.Nop(), APIHandler: http.NotFoundHandler()})
	require.ErrorIs(t, err, ErrMissingLogger)

	_, err = NewManager(ServerConfig{}, Deps{Logger: log.WithComponent("test")})
	require.ErrorIs(t, err, ErrMissingAPIHandler)

	mgr, err := NewManager(ServerConfig{ListenAddr: "127.0.0.1:0"}, testDeps(http.NotFoundHandler()))
	require.NoError(t, err)
	assert.Equal(t, defaultShutdownTimeout, mgr.(*manager).serverCfg.ShutdownTimeout)
}

func TestServerConfigFrom(t *testing.T) {
	cfg := config.Defaults()
	assert.Equal(t, ServerConfig{
		ListenAddr:        ":8080",
		MetricsAddr:       ":9090",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   15 * time.Second,
	}, ServerConfigFrom(cfg))
}

func TestManager_StartStop_ServesAndRunsHooksLIFO(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	apiAddr, metricsAddr := reserveListenAddr(t), reserveListenAddr(t)
	deps := testDeps(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "api")
	}))
	deps.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# HELP test_metric\n")
	})
	mgr, err := NewManager(ServerConfig{
		ListenAddr:      apiAddr,
		MetricsAddr:     metricsAddr,
		ShutdownTimeout: 2 * time.Second,
	}, deps)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		mgr.RegisterShutdownHook(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- mgr.Start(ctx) }()

	require.NoError(t, waitForListen(apiAddr, 2*time.Second))
	require.NoError(t, waitForListen(metricsAddr, 2*time.Second))

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	for addr, want := range map[string]string{apiAddr: "api", metricsAddr: "# HELP test_metric\n"} {
		resp, err := client.Get("http://" + addr + "/")
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		assert.Equal(t, want, string(body))
	}

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"third", "second", "first"}, order)

	// a second shutdown is a no-op
	require.NoError(t, mgr.Shutdown(context.Background()))
}

func TestManager_Start_Twice(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	mgr, err := NewManager(ServerConfig{ListenAddr: addr, ShutdownTimeout: time.Second}, testDeps(http.NotFoundHandler()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- mgr.Start(ctx) }()
	require.NoError(t, waitForListen(addr, 2*time.Second))

	require.ErrorContains(t, mgr.Start(ctx), "already started")

	cancel()
	require.NoError(t, <-errCh)
}

func TestManager_Shutdown_TimesOut(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	requestStarted := make(chan struct{})
	var once sync.Once
	handler := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(requestStarted) })
		<-r.Context().Done()
	})

	addr := reserveListenAddr(t)
	mgr, err := NewManager(ServerConfig{
		ListenAddr:      addr,
		ShutdownTimeout: 100 * time.Millisecond,
	}, testDeps(handler))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- mgr.Start(ctx) }()
	require.NoError(t, waitForListen(addr, 2*time.Second))

	requestDone := make(chan struct{})
	go func() {
		defer close(requestDone)
		client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+addr, nil)
		if resp, err := client.Do(req); err == nil {
			_ = resp.Body.Close()
		}
	}()

	select {
	case <-requestStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("expected in-flight request before shutdown")
	}

	cancel()
	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}

	// the forced close cancels the stuck handler
	select {
	case <-requestDone:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked request did not terminate after shutdown")
	}
}

func TestManager_Shutdown_NotStarted(t *testing.T) {
	mgr, err := NewManager(ServerConfig{ListenAddr: "127.0.0.1:0"}, testDeps(http.NotFoundHandler()))
	require.NoError(t, err)
	require.ErrorIs(t, mgr.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestManager_Shutdown_CollectsHookErrors(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	addr := reserveListenAddr(t)
	mgr, err := NewManager(ServerConfig{ListenAddr: addr, ShutdownTimeout: time.Second}, testDeps(http.NotFoundHandler()))
	require.NoError(t, err)

	boom := errors.New("boom")
	ran := false
	mgr.RegisterShutdownHook("later", func(context.Context) error {
		ran = true
		return nil
	})
	mgr.RegisterShutdownHook("broken", func(context.Context) error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- mgr.Start(ctx) }()
	require.NoError(t, waitForListen(addr, 2*time.Second))
	cancel()

	err = <-errCh
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "hook broken")
	assert.True(t, ran, "a failing hook must not stop the remaining ones")
}

func TestManager_PropagatesListenErrors(t *testing.T) {
	testServer := httptest.NewServer(http.NotFoundHandler())
	defer testServer.Close()

	mgr, err := NewManager(ServerConfig{
		ListenAddr:      testServer.Listener.Addr().String(),
		ShutdownTimeout: time.Second,
	}, testDeps(http.NotFoundHandler()))
	require.NoError(t, err)

	hookRan := false
	mgr.RegisterShutdownHook("cleanup", func(context.Context) error {
		hookRan = true
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = mgr.Start(ctx)
	require.ErrorIs(t, err, ErrServerStartFailed)
	assert.True(t, hookRan, "hooks release resources even when binding fails")
}

type stubManager struct {
	startErr error
	started  chan struct{}
	shutdown int
	mu       sync.Mutex
}

func (s *stubManager) Start(ctx context.Context) error {
	close(s.started)
	if s.startErr != nil {
		return s.startErr
	}
	<-ctx.Done()
	return nil
}

func (s *stubManager) Shutdown(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown++
	return nil
}

func (s *stubManager) RegisterShutdownHook(string, ShutdownHook) {}

type stubReloader struct {
	mu        sync.Mutex
	watching  bool
	reloads   int
	listeners []chan<- config.AppConfig
}

func (s *stubReloader) StartWatcher(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watching = true
	return nil
}

func (s *stubReloader) Reload(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
	return nil
}

func (s *stubReloader) RegisterListener(ch chan<- config.AppConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, ch)
}

func TestApp_Run(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr := &stubManager{started: make(chan struct{})}
	reloader := &stubReloader{}
	app := NewApp(log.WithComponent("test"), mgr, reloader)
	app.reloadSignal = nil

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()
	<-mgr.started

	reloader.mu.Lock()
	assert.True(t, reloader.watching)
	require.Len(t, reloader.listeners, 1)
	reloader.mu.Unlock()

	cancel()
	require.NoError(t, <-errCh)
	assert.Zero(t, mgr.shutdown)
}

func TestApp_Run_ManagerFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	boom := errors.New("bind failed")
	mgr := &stubManager{started: make(chan struct{}), startErr: boom}
	app := NewApp(log.WithComponent("test"), mgr, &stubReloader{})
	app.reloadSignal = nil

	require.ErrorIs(t, app.Run(context.Background()), boom)
	assert.Equal(t, 1, mgr.shutdown)

	require.ErrorIs(t, NewApp(log.WithComponent("test"), nil, nil).Run(context.Background()), ErrMissingManager)
}
