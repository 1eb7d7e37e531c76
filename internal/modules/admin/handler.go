package admin

import (
	"crypto/rsa"
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/worldindex/core/internal/models"
	"github.com/worldindex/core/internal/modules/federation"
	"github.com/worldindex/core/internal/pkg/capability"
	"github.com/worldindex/core/internal/pkg/response"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Handler exposes the admin surface: login, peer follow, visibility toggles
// and the relay list.
type Handler struct {
	db       *gorm.DB
	fedSvc   *federation.Service
	follower *federation.Follower
	logger   *zap.Logger

	password string // plaintext or bcrypt hash
	signKey  *rsa.PrivateKey
	secure   bool
}

func NewHandler(db *gorm.DB, fedSvc *federation.Service, follower *federation.Follower, logger *zap.Logger, password string, signKey *rsa.PrivateKey, secure bool) *Handler {
	return &Handler{
		db:       db,
		fedSvc:   fedSvc,
		follower: follower,
		logger:   logger,
		password: password,
		signKey:  signKey,
		secure:   secure,
	}
}

// RegisterRoutes mounts login openly and everything else behind adminMW.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, adminMW gin.HandlerFunc) {
	r.POST("/login", h.Login)

	guarded := r.Group("", adminMW)
	guarded.POST("/admin/follow", h.Follow)
	guarded.POST("/admin/togglevisible", h.ToggleVisible)
	guarded.GET("/relays", h.Relays)
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login exchanges the admin password for a one-day capability cookie.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "password required")
		return
	}
	if !h.passwordMatches(req.Password) {
		h.logger.Warn("admin login rejected", zap.String("ip", c.ClientIP()))
		response.Unauthorized(c)
		return
	}

	token, err := capability.MintAdmin(h.signKey)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	c.SetCookie(capability.AdminCookie, token,
		int(capability.AdminTTL.Seconds()), "/", "", h.secure, true)
	response.OK(c, gin.H{"authenticated": true})
}

type followRequest struct {
	// Target is a peer directory's domain or actor URL.
	Target string `json:"target" binding:"required"`
}

// Follow subscribes this directory to a peer's listing mutations.
func (h *Handler) Follow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "target required")
		return
	}

	relay, err := h.follower.Follow(c.Request.Context(), req.Target)
	if err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.OK(c, relay)
}

type toggleVisibleRequest struct {
	ListingID *int64 `json:"listing_id" binding:"required"`
}

// ToggleVisible flips a listing in or out of the public directory.
func (h *Handler) ToggleVisible(c *gin.Context) {
	var req toggleVisibleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "listing_id required")
		return
	}

	var listing models.ListingModel
	if err := h.db.First(&listing, "id = ?", *req.ListingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundMsg(c, "listing "+strconv.FormatInt(*req.ListingID, 10)+" not found")
			return
		}
		response.InternalError(c, err)
		return
	}

	listing.Visible = !listing.Visible
	if err := h.db.Model(&listing).Update("visible", listing.Visible).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	h.logger.Info("visibility toggled",
		zap.Int64("listing", listing.ID), zap.Bool("visible", listing.Visible))
	response.OK(c, gin.H{"id": listing.ID, "visible": listing.Visible})
}

// Relays lists every known federation actor.
func (h *Handler) Relays(c *gin.Context) {
	relays, err := h.fedSvc.All()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, relays)
}

func (h *Handler) passwordMatches(given string) bool {
	if h.password == "" {
		return false
	}
	if strings.HasPrefix(h.password, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(h.password), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(h.password), []byte(given)) == 1
}
