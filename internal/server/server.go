// Package server runs the reload notifier: a small HTTP server that serves
// the destination tree, hosts the LiveReload endpoint and tells connected
// browsers to reload whenever a file under the destination root changes.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/assetwatch/internal/build"
	"github.com/conneroisu/assetwatch/internal/logging"
	"github.com/conneroisu/assetwatch/internal/version"
	"github.com/conneroisu/assetwatch/internal/watcher"
	"github.com/conneroisu/assetwatch/internal/websocket"
)

// DefaultPort is the port LiveReload clients connect to.
const DefaultPort = 35729

// Glob is a watched source pattern shown on the status page.
type Glob struct {
	Class   build.Class
	Pattern string
}

// Options configures a ReloadServer.
type Options struct {
	Host     string
	Port     int // 0 binds an ephemeral port
	Root     string
	Debounce time.Duration
	Globs    []Glob
	// AllowedOrigins overrides the loopback allowlist for WebSocket clients.
	AllowedOrigins []string
}

// ReloadServer notifies browsers about changes to the destination tree.
type ReloadServer struct {
	opts       Options
	manager    *websocket.Manager
	watcher    *watcher.FileWatcher
	metrics    *build.Metrics
	logger     logging.Logger
	httpServer *http.Server
	listener   net.Listener
	startedAt  time.Time

	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// New creates a reload server. metrics may be nil.
func New(opts Options, metrics *build.Metrics, logger logging.Logger) (*ReloadServer, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if metrics == nil {
		metrics = build.NewMetrics()
	}

	fileWatcher, err := watcher.NewFileWatcher(opts.Debounce, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	var origins websocket.OriginValidator
	if len(opts.AllowedOrigins) > 0 {
		origins = websocket.AllowedHosts(opts.AllowedOrigins)
	}

	return &ReloadServer{
		opts:    opts,
		manager: websocket.NewManager(origins, "assetwatch "+version.GetShortVersion(), logger),
		watcher: fileWatcher,
		metrics: metrics,
		logger:  logger.WithComponent("server"),
	}, nil
}

// Handler returns the HTTP routes of the server.
func (s *ReloadServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livereload", s.manager.HandleWebSocket)
	mux.HandleFunc("/livereload.js", s.handleClientScript)
	mux.HandleFunc("/_status", s.handleStatus)
	mux.Handle("/", s.staticHandler())

	return mux
}

// Start begins watching the destination root and serving HTTP. It returns
// once the listener is bound.
func (s *ReloadServer) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.opts.Root, 0o755); err != nil {
		return fmt.Errorf("creating destination root: %w", err)
	}

	s.watcher.AddFilter(watcher.NoHiddenFilter)
	s.watcher.AddFilter(watcher.NoEditorTempFilter)
	s.watcher.AddHandler(s.handleChanges)
	if err := s.watcher.AddRecursive(s.opts.Root); err != nil {
		return fmt.Errorf("watching destination root: %w", err)
	}
	if err := s.watcher.Start(ctx); err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}

	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = s.watcher.Stop()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.serverMutex.Lock()
	s.listener = listener
	s.startedAt = time.Now()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpServer := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Reload server listening", "addr", "http://"+listener.Addr().String())

	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error(ctx, err, "Reload server stopped")
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *ReloadServer) Addr() string {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()

	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// ClientCount returns the number of connected reload clients.
func (s *ReloadServer) ClientCount() int {
	return s.manager.ClientCount()
}

// Notify broadcasts one reload per distinct path.
func (s *ReloadServer) Notify(paths ...string) {
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		rel := s.relative(p)
		if seen[rel] {
			continue
		}
		seen[rel] = true

		s.logger.Debug(context.Background(), "Reload", "path", rel, "clients", s.manager.ClientCount())
		s.manager.Broadcast(websocket.Reload(rel))
	}
}

func (s *ReloadServer) handleChanges(events []watcher.ChangeEvent) error {
	paths := make([]string, 0, len(events))
	for _, event := range events {
		paths = append(paths, event.Path)
	}
	s.Notify(paths...)

	return nil
}

// relative maps p onto a slash path below the destination root, which is
// what LiveReload clients match stylesheets against.
func (s *ReloadServer) relative(p string) string {
	rel, err := filepath.Rel(s.opts.Root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(p)
	}

	return filepath.ToSlash(rel)
}

// Shutdown stops the watcher, disconnects clients and closes the listener.
func (s *ReloadServer) Shutdown(ctx context.Context) error {
	var err error

	s.shutdownOnce.Do(func() {
		if stopErr := s.watcher.Stop(); stopErr != nil {
			s.logger.Warn(ctx, stopErr, "Failed to stop file watcher")
		}

		if hubErr := s.manager.Shutdown(ctx); hubErr != nil {
			err = hubErr
		}

		s.serverMutex.RLock()
		httpServer := s.httpServer
		s.serverMutex.RUnlock()

		if httpServer != nil {
			if closeErr := httpServer.Shutdown(ctx); closeErr != nil && err == nil {
				err = closeErr
			}
		}
	})

	return err
}
