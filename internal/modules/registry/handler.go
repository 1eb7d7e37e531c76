package registry

import (
	"github.com/gin-gonic/gin"
	"github.com/worldindex/core/internal/pkg/response"
	"github.com/worldindex/core/internal/pkg/urlx"
)

// Handler exposes the submission endpoint.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.PUT("/beacon", h.Submit)
}

// Submit registers or refreshes a listing. The request Origin must match the
// submitted URL's host (www.-prefix ignored) so a page can only register
// itself.
func (h *Handler) Submit(c *gin.Context) {
	var sub Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		response.BadRequest(c, "invalid submission: "+err.Error())
		return
	}

	// Non-browser clients send no Origin; browsers cannot forge one, so a
	// present header must match the submitted url's host.
	if origin := c.GetHeader("Origin"); origin != "" {
		if urlx.Host(origin) != urlx.Host(sub.URL) {
			response.Forbidden(c, "origin does not match submitted url")
			return
		}
	}

	outcome, listing, err := h.svc.Upsert(c.Request.Context(), sub)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	switch outcome {
	case OutcomeCreated:
		response.Created(c, listing)
	case OutcomeUpdated:
		response.OK(c, listing)
	default:
		response.NotModified(c)
	}
}
