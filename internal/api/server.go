// Package api serves the transaction collection and the duplicate review
// workflow over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/dedupe/internal/buildinfo"
	"github.com/cleared-dev/dedupe/internal/duplicates"
	"github.com/cleared-dev/dedupe/internal/resolve"
	"github.com/cleared-dev/dedupe/internal/store"
)

// Options configures a Server.
type Options struct {
	AllowedOrigins []string
	// Token, when set, must be sent as "Authorization: Bearer <token>".
	Token     string
	ScanLimit int
}

// Server wires the store, detector and resolver to gin routes.
type Server struct {
	store    store.Store
	detector *duplicates.Detector
	resolver *resolve.Resolver
	log      logrus.FieldLogger
	opts     Options
	engine   *gin.Engine
}

// New builds a Server and registers its routes.
func New(s store.Store, d *duplicates.Detector, r *resolve.Resolver, log logrus.FieldLogger, opts Options) *Server {
	srv := &Server{
		store:    s,
		detector: d,
		resolver: r,
		log:      log,
		opts:     opts,
		engine:   gin.New(),
	}
	srv.engine.Use(gin.Recovery(), srv.requestLogger())
	if len(opts.AllowedOrigins) > 0 {
		srv.engine.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.health)

	authed := api.Group("", s.requireToken())

	txs := authed.Group("/transactions")
	txs.GET("", s.listTransactions)
	txs.POST("", s.createTransaction)
	txs.PATCH("/:id", s.updateTransaction)
	txs.DELETE("/:id", s.deleteTransaction)

	dups := authed.Group("/duplicates")
	dups.GET("", s.scanDuplicates)
	dups.POST("/resolve", s.resolveDuplicates)
	dups.POST("/ignore", s.ignoreDuplicates)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute, // resolution batches run inside the request
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("api listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("api shutting down")
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": buildinfo.Version})
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.Token == "" {
			c.Next()
			return
		}
		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || got != s.opts.Token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}
