package server

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"authpool-go/internal/config"
	"authpool-go/internal/profile"
	"authpool-go/internal/storage"
)

// Server exposes the advisory and administrative surface of the profile
// pool: usability snapshots for selection, failure recording for request
// pipelines, and explicit clears for recovery tooling.
type Server struct {
	cfg   *config.Config
	store storage.Backend
}

func New(cfg *config.Config, store storage.Backend) *Server {
	return &Server{cfg: cfg, store: store}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	if s.cfg == nil || !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.GET("/profiles", s.handleListProfiles)
		v1.GET("/profiles/:id/raw", s.handleRawProfile)
		v1.POST("/profiles/:id/failure", s.handleProfileFailure)
		v1.POST("/profiles/:id/clear", s.handleProfileClear)
		v1.POST("/profiles/:id/used", s.handleProfileUsed)
	}
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// profileStatus is one row of the usability snapshot. UnusableUntil is the
// later of the profile's valid deadlines, in epoch milliseconds.
type profileStatus struct {
	ID             string   `json:"id"`
	Usable         bool     `json:"usable"`
	UnusableUntil  *float64 `json:"unusableUntil,omitempty"`
	DisabledReason string   `json:"disabledReason,omitempty"`
	ErrorCount     int      `json:"errorCount,omitempty"`
}

func (s *Server) handleListProfiles(c *gin.Context) {
	store, err := s.store.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	now := profile.NowMillis()
	statuses := make([]profileStatus, 0, len(store.Profiles))
	for id := range store.Profiles {
		ps := profileStatus{
			ID:     id,
			Usable: !profile.IsProfileInCooldownAt(store, id, now),
		}
		if stat, ok := store.Stat(id); ok {
			if until, ok := profile.ResolveUnusableUntil(stat); ok {
				ps.UnusableUntil = &until
			}
			ps.DisabledReason = stat.DisabledReason
			ps.ErrorCount = stat.ErrorCount
		}
		statuses = append(statuses, ps)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	c.JSON(http.StatusOK, gin.H{"profiles": statuses})
}

// handleRawProfile reports the persisted usage fields verbatim so operators
// can see values the typed model ignores as malformed.
func (s *Server) handleRawProfile(c *gin.Context) {
	raw, err := s.store.Raw(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, storage.InspectUsageStat(raw, c.Param("id")))
}

type failureRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) handleProfileFailure(c *gin.Context) {
	var req failureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}
	if err := profile.MarkAuthProfileFailure(c.Request.Context(), s.store, c.Param("id"), req.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (s *Server) handleProfileClear(c *gin.Context) {
	if err := profile.ClearAuthProfileCooldown(c.Request.Context(), s.store, c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (s *Server) handleProfileUsed(c *gin.Context) {
	if err := profile.MarkAuthProfileUsed(c.Request.Context(), s.store, c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "marked"})
}
