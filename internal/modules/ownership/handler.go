package ownership

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/worldindex/core/internal/middleware"
	"github.com/worldindex/core/internal/models"
	"github.com/worldindex/core/internal/modules/registry"
	"github.com/worldindex/core/internal/pkg/capability"
	"github.com/worldindex/core/internal/pkg/response"
	"gorm.io/gorm"
)

// Handler exposes the verification flow and the owner-gated update endpoint.
type Handler struct {
	db       *gorm.DB
	svc      *Service
	registry *registry.Service
}

func NewHandler(db *gorm.DB, svc *Service, registry *registry.Service) *Handler {
	return &Handler{db: db, svc: svc, registry: registry}
}

// RegisterRoutes mounts the flow. ownerMW guards the update endpoint; the
// verification endpoints are open since the challenge itself is the proof.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, ownerMW gin.HandlerFunc) {
	r.POST("/world/:slug/request-verification", h.RequestVerification)
	r.POST("/world/:slug/verify", h.Verify)
	r.POST("/world/:slug/update", ownerMW, h.Update)
}

// RequestVerification issues the challenge code for a listing.
func (h *Handler) RequestVerification(c *gin.Context) {
	listing, ok := h.listing(c)
	if !ok {
		return
	}
	code, instruction, err := h.svc.RequestVerification(listing)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{
		"code":        code,
		"meta_tag":    MetaTagName,
		"instruction": instruction,
	})
}

// Verify checks the published challenge and, on success, sets the owner
// capability cookie.
func (h *Handler) Verify(c *gin.Context) {
	listing, ok := h.listing(c)
	if !ok {
		return
	}

	token, err := h.svc.Verify(c.Request.Context(), listing)
	if err != nil {
		var verr *VerifyError
		if errors.As(err, &verr) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
				"ok":      0,
				"code":    http.StatusUnprocessableEntity,
				"kind":    string(verr.Kind),
				"message": verr.Error(),
			})
			return
		}
		response.InternalError(c, err)
		return
	}

	c.SetCookie(capability.OwnerCookie, token,
		int(capability.OwnerTTL.Seconds()), "/", "", false, true)
	response.OK(c, gin.H{"verified": true, "slug": listing.SlugOrID()})
}

// Update applies an owner's edit to their listing.
func (h *Handler) Update(c *gin.Context) {
	listing, ok := h.listing(c)
	if !ok {
		return
	}
	if err := h.svc.Authorize(middleware.OwnerClaims(c), listing.ID); err != nil {
		response.Forbidden(c, err.Error())
		return
	}

	// The url is fixed by the listing; only descriptive fields are editable.
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Active      bool   `json:"active"`
		Image       string `json:"image"`
		Adult       bool   `json:"adult"`
		Tags        string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid update: "+err.Error())
		return
	}
	sub := registry.Submission{
		URL:         listing.URL,
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active,
		Image:       req.Image,
		Adult:       req.Adult,
		Tags:        req.Tags,
	}

	outcome, updated, err := h.registry.OwnerUpdate(c.Request.Context(), listing, sub)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if outcome == registry.OutcomeUnchanged {
		response.NotModified(c)
		return
	}
	response.OK(c, updated)
}

// listing resolves the :slug path segment, which accepts a slug or a bare id.
func (h *Handler) listing(c *gin.Context) (*models.ListingModel, bool) {
	slugOrID := c.Param("slug")

	var listing models.ListingModel
	err := h.db.First(&listing, "slug = ?", slugOrID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if id, convErr := strconv.ParseInt(slugOrID, 10, 64); convErr == nil {
			err = h.db.First(&listing, "id = ?", id).Error
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		response.NotFound(c)
		return nil, false
	}
	if err != nil {
		response.InternalError(c, err)
		return nil, false
	}
	return &listing, true
}
