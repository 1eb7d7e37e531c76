package directory

import (
	"github.com/gin-gonic/gin"
	"github.com/worldindex/core/internal/pkg/response"
)

const leaderboardSize = 10

// Handler serves the read side of the directory.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// "app" and "world" are interchangeable names for the same resources.
	r.GET("/app/:slug", h.Show)
	r.GET("/world/:slug", h.Show)
	r.GET("/apps", h.Index)
	r.GET("/worlds", h.Index)
	r.GET("/api/apps", h.Leaderboard)
}

// Show serves one listing with its live count.
func (h *Handler) Show(c *gin.Context) {
	listing, err := h.svc.GetBySlugOrID(c.Param("slug"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if listing == nil || !listing.Visible {
		response.NotFound(c)
		return
	}
	response.OK(c, Entry{
		ListingModel: *listing,
		LiveCount:    h.svc.LiveCount(listing),
	})
}

// Index serves the visible directory grouped by site domain.
func (h *Handler) Index(c *gin.Context) {
	grouped, err := h.svc.GroupedByDomain()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"domains": grouped})
}

// Leaderboard serves the ten busiest listings plus the totals.
func (h *Handler) Leaderboard(c *gin.Context) {
	overview, err := h.svc.TopByLiveCount(leaderboardSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, overview)
}
