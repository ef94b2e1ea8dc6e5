// Package server exposes the admin HTTP surface of a benchmark node.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/canlat/internal/auth"
	"github.com/danmuck/canlat/internal/exchange"
	"github.com/danmuck/canlat/internal/latency"
	"github.com/danmuck/canlat/internal/observability"
	"github.com/danmuck/canlat/internal/transform"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const Version = "0.1.0"

// StateSource is a node whose round state can be observed.
type StateSource interface {
	State() exchange.State
}

// ReportSource is a node that keeps completed phase reports.
type ReportSource interface {
	Reports() []exchange.PhaseReport
}

type Admin struct {
	ID       string
	Addr     string
	Appeared time.Time
	Scale    latency.Scale
	// Auth, when set, guards every route except /health and /metrics.
	Auth auth.Validator

	node       StateSource
	transforms *transform.Registry
	router     *gin.Engine
	httpServer *http.Server
}

func Appear(id, addr string, corsOrigins []string, node StateSource, transforms *transform.Registry) *Admin {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Admin{
		ID:         id,
		Addr:       addr,
		Appeared:   time.Now(),
		Scale:      latency.ScaleMicros,
		node:       node,
		transforms: transforms,
		router:     r,
	}
}

func (a *Admin) HTTPRouter() *gin.Engine {
	return a.router
}

func (a *Admin) RegisterRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.Appeared).String(),
			"service": a.ID,
			"version": Version,
		}
		if a.node != nil {
			body["state"] = a.node.State()
		}
		c.JSON(http.StatusOK, body)
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	guarded := a.router.Group("/")
	if a.Auth != nil {
		guarded.Use(requireToken(a.Auth))
	}

	guarded.GET("/transforms", func(c *gin.Context) {
		var list []transform.Descriptor
		if a.transforms != nil {
			list = a.transforms.List()
		}
		c.JSON(http.StatusOK, gin.H{"transforms": list})
	})

	guarded.GET("/phases", func(c *gin.Context) {
		reports := a.reports()
		rows := make([]gin.H, 0, len(reports))
		for _, r := range reports {
			rows = append(rows, phaseRow(r, a.Scale))
		}
		c.JSON(http.StatusOK, gin.H{"scale": a.Scale, "phases": rows})
	})

	guarded.GET("/phases/:phase", func(c *gin.Context) {
		name := c.Param("phase")
		for _, r := range a.reports() {
			if r.Phase == name {
				c.JSON(http.StatusOK, r)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "phase not found"})
	})
}

// Serve runs the admin listener until ctx is done.
func (a *Admin) Serve(ctx context.Context) error {
	a.RegisterRoutes()
	a.httpServer = &http.Server{Addr: a.Addr, Handler: a.router}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("admin", a.ID).Str("addr", a.Addr).Msg("admin listening")
		errCh <- a.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (a *Admin) reports() []exchange.PhaseReport {
	src, ok := a.node.(ReportSource)
	if !ok {
		return nil
	}
	return src.Reports()
}

func requireToken(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok || v.Validate(token) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}

func phaseRow(r exchange.PhaseReport, scale latency.Scale) gin.H {
	return gin.H{
		"phase":      r.Phase,
		"transform":  r.Transform,
		"mode":       r.Mode,
		"samples":    r.Summary.N(),
		"discarded":  r.Summary.Discarded,
		"mean":       r.Mean(scale),
		"mismatches": r.Mismatches,
		"timeouts":   r.Timeouts,
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
