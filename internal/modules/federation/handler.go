package federation

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/worldindex/core/internal/models"
	"github.com/worldindex/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxInboxBody = 256 << 10

// Handler exposes the federation surface: the actor document, dereferenceable
// beacons and activities, webfinger discovery and the inbox.
type Handler struct {
	db     *gorm.DB
	svc    *Service
	ledger *Ledger
	inbox  *Inbox
	logger *zap.Logger
	domain string
}

func NewHandler(db *gorm.DB, svc *Service, ledger *Ledger, inbox *Inbox, logger *zap.Logger, domain string) *Handler {
	return &Handler{db: db, svc: svc, ledger: ledger, inbox: inbox, logger: logger, domain: domain}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/relay", h.Actor)
	r.POST("/relay/inbox", h.Inbox)
	r.GET("/relay/beacon/:id", h.Beacon)
	r.GET("/relay/activities/:id", h.Activity)
	r.GET("/.well-known/webfinger", h.Webfinger)
}

// Actor serves the local actor document.
func (h *Handler) Actor(c *gin.Context) {
	relay, err := h.svc.SystemActor()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	c.Header("Content-Type", ContentType)
	c.JSON(http.StatusOK, ActorFromRelay(relay))
}

// Inbox accepts one signed activity.
func (h *Handler) Inbox(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInboxBody))
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}

	err = h.inbox.Receive(c.Request.Context(), c.Request, body)
	var sigErr *SignatureError
	var contentErr *ContentError
	switch {
	case err == nil:
		response.OK(c, gin.H{"received": true})
	case errors.As(err, &sigErr):
		h.logger.Warn("inbox signature rejected", zap.Error(err))
		response.Unauthorized(c)
	case errors.As(err, &contentErr):
		h.logger.Warn("inbox activity rejected", zap.Error(err))
		response.UnprocessableEntity(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

// Beacon serves a listing's federation document by sequence number.
func (h *Handler) Beacon(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid beacon id")
		return
	}
	var listing models.ListingModel
	if err := h.db.First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	page := PageFromListing(&listing)
	page.Context = DefaultContext
	c.Header("Content-Type", ContentType)
	c.JSON(http.StatusOK, page)
}

// Activity serves a ledger row by sequence number as an activity envelope.
func (h *Handler) Activity(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid activity id")
		return
	}
	row, err := h.ledger.Get(id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if row == nil {
		response.NotFound(c)
		return
	}
	c.Header("Content-Type", ContentType)
	c.JSON(http.StatusOK, gin.H{
		"@context": DefaultContext,
		"id":       row.Identity,
		"type":     row.Kind,
		"actor":    row.Actor,
		"object":   row.Object,
	})
}

// Webfinger answers actor discovery for acct:relay@{domain}.
func (h *Handler) Webfinger(c *gin.Context) {
	resource := c.Query("resource")
	expected := "acct:relay@" + h.domain
	if resource != expected {
		response.NotFoundMsg(c, "unknown resource")
		return
	}
	relay, err := h.svc.SystemActor()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	c.Header("Content-Type", "application/jrd+json")
	c.JSON(http.StatusOK, gin.H{
		"subject": expected,
		"links": []gin.H{{
			"rel":  "self",
			"type": ContentType,
			"href": relay.Identity,
		}},
	})
}
