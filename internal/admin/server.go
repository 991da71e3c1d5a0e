// Package admin serves the optional HTTP surface of a running host: health,
// readiness, status, Prometheus metrics and a GPU byte feed.
package admin

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/danmuck/corehost/internal/core"
	"github.com/danmuck/corehost/internal/extensions"
	"github.com/danmuck/corehost/internal/modules"
	"github.com/danmuck/corehost/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	MetricsPath  = "/metrics"
	MaxBodyBytes = 16 << 20
	version      = "0.1.0"
)

// Host is the orchestrator view the server needs.
type Host interface {
	Phase() core.Phase
	Status() core.Status
	SendBytes(b []byte) error
}

// ExtensionReporter exposes the last extension load counts.
type ExtensionReporter interface {
	Report() extensions.Report
}

type Server struct {
	Addr     string
	Appeared time.Time

	host   Host
	ext    ExtensionReporter
	router *gin.Engine
	http   *http.Server
}

// New builds the router with recovery, request logging and metrics, and
// CORS for origins. ext may be nil.
func New(addr string, host Host, ext ExtensionReporter, origins []string) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestObserver(observability.Logger("admin"), MetricsPath))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(origins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Addr:     addr,
		Appeared: time.Now(),
		host:     host,
		ext:      ext,
		router:   r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": "corehost",
			"version": version,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		phase := s.host.Phase()
		status := http.StatusOK
		if phase != core.PhaseRunning {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready": phase == core.PhaseRunning,
			"done":  phase.Terminal(),
			"phase": phase.String(),
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		body := gin.H{"core": s.host.Status()}
		if s.ext != nil {
			body["extensions"] = s.ext.Report()
		}
		c.JSON(http.StatusOK, body)
	})

	s.router.GET(MetricsPath, gin.WrapH(promhttp.Handler()))

	s.router.POST("/gpu/bytes", func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := s.host.SendBytes(payload); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, modules.ErrNotInitialized) {
				status = http.StatusConflict
			}
			_ = c.Error(err)
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "bytes": len(payload)})
	})
}

// Serve listens on Addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.Addr).Msg("admin.Server.Serve listening")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Str("addr", s.Addr).Msg("admin.Server.Serve stopped")
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
