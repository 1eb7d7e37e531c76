package app

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/worldindex/core/internal/config"
	"github.com/worldindex/core/internal/database"
	"github.com/worldindex/core/internal/middleware"
	"github.com/worldindex/core/internal/modules/directory"
	"github.com/worldindex/core/internal/modules/federation"
	"github.com/worldindex/core/internal/modules/ownership"
	"github.com/worldindex/core/internal/modules/presence"
	"github.com/worldindex/core/internal/modules/registry"
	pkgcron "github.com/worldindex/core/internal/pkg/cron"
	"github.com/worldindex/core/internal/pkg/keys"
	pkgredis "github.com/worldindex/core/internal/pkg/redis"
	"github.com/worldindex/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg     *config.AppConfig
	router  *gin.Engine
	db      *gorm.DB
	tracker *presence.Tracker
	logger  *zap.Logger
	cancel  context.CancelFunc
	sched   *pkgcron.Scheduler
}

// New initializes the application: config -> DB -> Redis -> system actor ->
// services -> routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(corsMiddleware(cfg))

	baseURL := cfg.BaseURL()
	resolver := federation.NewResolver()
	fedSvc := federation.NewService(db, resolver, logger, baseURL)

	local, err := fedSvc.EnsureSystemActor()
	if err != nil {
		return nil, fmt.Errorf("system actor: %w", err)
	}
	privKey, err := keys.ParsePrivate(*local.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("system actor private key: %w", err)
	}
	pubKey, err := keys.ParsePublic(local.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("system actor public key: %w", err)
	}

	deliverer := federation.NewHTTPDeliverer(local.Identity+"#main-key", privKey)
	queue := taskqueue.NewService(rc)
	mode := federation.DeliverSync
	if cfg.Fed.QueueAll {
		mode = federation.DeliverQueued
	}

	ledger := federation.NewLedger(db)
	fanout := federation.NewFanout(fedSvc, deliverer, queue, logger, mode)
	follower := federation.NewFollower(db, fedSvc, ledger, resolver, deliverer, logger, baseURL)

	images := &registry.ImageMaterializer{
		Dir:     filepath.Join(cfg.Paths.Static, "images"),
		BaseURL: baseURL,
	}
	regSvc := registry.NewService(db, ledger, fanout, images, logger, baseURL)
	inbox := federation.NewInbox(db, fedSvc, ledger, resolver, regSvc, logger)

	// The tracker resolves join-notification names through the directory; the
	// directory reads live counts from the tracker.
	var dirSvc *directory.Service
	tracker := presence.NewTracker(func(url string) string {
		return dirSvc.ResolveName(url)
	}, logger)
	dirSvc = directory.NewService(db, tracker, cfg.ShowAdultContent)

	ownSvc := ownership.NewService(db, nil, privKey, logger)

	ctx, cancel := context.WithCancel(context.Background())
	sched := pkgcron.New()
	registerCronJobs(sched, logger, tracker, fanout, fedSvc)
	go sched.Start(ctx)

	a := &App{
		cfg:     cfg,
		router:  router,
		db:      db,
		tracker: tracker,
		logger:  logger,
		cancel:  cancel,
		sched:   sched,
	}
	a.registerRoutes(routeDeps{
		rc:       rc,
		pubKey:   pubKey,
		privKey:  privKey,
		fedSvc:   fedSvc,
		ledger:   ledger,
		inbox:    inbox,
		follower: follower,
		regSvc:   regSvc,
		dirSvc:   dirSvc,
		ownSvc:   ownSvc,
	})
	return a, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background jobs and closes the presence broadcast, ending
// every subscriber stream.
func (a *App) Shutdown() {
	a.cancel()
	a.tracker.Close()
}

type routeDeps struct {
	rc       *pkgredis.Client
	pubKey   *rsa.PublicKey
	privKey  *rsa.PrivateKey
	fedSvc   *federation.Service
	ledger   *federation.Ledger
	inbox    *federation.Inbox
	follower *federation.Follower
	regSvc   *registry.Service
	dirSvc   *directory.Service
	ownSvc   *ownership.Service
}
