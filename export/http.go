package export

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// HTTPServer serves the latest snapshot read-only.
type HTTPServer struct {
	e    *echo.Echo
	addr string
	log  *slog.Logger

	mu     sync.RWMutex
	latest *Snapshot
}

func NewHTTPServer(addr string, log *slog.Logger) *HTTPServer {
	s := &HTTPServer{
		e:    echo.New(),
		addr: addr,
		log:  log.With("component", "http_export"),
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.GET("/health", s.health)
	s.e.GET("/state", s.state)
	return s
}

// Start serves until Close is called.
func (s *HTTPServer) Start() {
	go func() {
		s.log.Info("serving state", "addr", s.addr)
		if err := s.e.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", "error", err)
		}
	}()
}

func (s *HTTPServer) Publish(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	s.latest = &snap
	s.mu.Unlock()
	return nil
}

func (s *HTTPServer) Close() error {
	return s.e.Shutdown(context.Background())
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

func (s *HTTPServer) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) state(c echo.Context) error {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "no state yet"})
	}
	return c.JSON(http.StatusOK, latest)
}
