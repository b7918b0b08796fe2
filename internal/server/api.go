package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Sd3mir06/iguardian/internal/engine"
	"github.com/Sd3mir06/iguardian/internal/monitor"
	"github.com/Sd3mir06/iguardian/internal/store"
)

// Server bundles the API's collaborators. Everything is injected; the
// handlers hold no global state.
type Server struct {
	store  *store.Store
	mon    *monitor.Monitor
	auth   *Auth
	logger zerolog.Logger
}

// New creates the API server.
func New(st *store.Store, mon *monitor.Monitor, auth *Auth, logger zerolog.Logger) *Server {
	return &Server{
		store:  st,
		mon:    mon,
		auth:   auth,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Register wires up all routes on the given engine.
//
//	Public:          POST /api/login, GET /api/health
//	Protected (JWT): everything else under /api
func (s *Server) Register(r *gin.Engine) {
	api := r.Group("/api")

	api.POST("/login", s.handleLogin)
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	auth := api.Group("/", s.auth.Middleware())
	{
		auth.GET("/status", s.handleStatus)
		auth.GET("/activity", s.handleActivity)
		auth.GET("/incidents", s.handleIncidents)
		auth.POST("/incidents/:id/ack", s.handleIncidentAck)
		auth.GET("/thresholds", s.handleThresholds)
		auth.PUT("/thresholds/:metric", s.handleThresholdUpdate)
		auth.POST("/interaction", s.handleInteraction)
	}
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// handleLogin accepts username + password and returns a signed JWT.
func (s *Server) handleLogin(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}
	if !s.auth.Check(body.Username, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := s.auth.GenerateToken(body.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": 86400, // seconds
		"type":       "Bearer",
	})
}

// handleStatus returns the snapshot published by the last evaluation tick.
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.mon.Status()})
}

// handleActivity returns the recent-activity log, newest first, capped at 50.
func (s *Server) handleActivity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.mon.Activity()})
}

// handleIncidents returns the most recent incidents.
func (s *Server) handleIncidents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	incidents, err := s.store.RecentIncidents(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": incidents})
}

// handleIncidentAck marks an incident as acknowledged.
func (s *Server) handleIncidentAck(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := s.store.AcknowledgeIncident(uint(id)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": id})
}

// handleThresholds returns the full threshold set.
func (s *Server) handleThresholds(c *gin.Context) {
	thresholds, err := s.store.Thresholds()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": thresholds})
}

// handleThresholdUpdate sets value and enabled for one metric. Values
// outside the metric's bounds are clamped, not rejected.
func (s *Server) handleThresholdUpdate(c *gin.Context) {
	metric := engine.Metric(c.Param("metric"))
	if !engine.KnownMetric(metric) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown metric"})
		return
	}
	var body struct {
		Value   float64 `json:"value"`
		Enabled bool    `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := s.store.UpdateThreshold(metric, body.Value, body.Enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated})
}

// handleInteraction registers a user interaction. The UI calls this on any
// touch; it overrides idle immediately.
func (s *Server) handleInteraction(c *gin.Context) {
	s.mon.Touch()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
