package app

import (
	"path/filepath"

	"github.com/worldindex/core/internal/middleware"
	"github.com/worldindex/core/internal/modules/admin"
	"github.com/worldindex/core/internal/modules/directory"
	"github.com/worldindex/core/internal/modules/federation"
	"github.com/worldindex/core/internal/modules/ownership"
	"github.com/worldindex/core/internal/modules/presence"
	"github.com/worldindex/core/internal/modules/registry"
	"github.com/worldindex/core/internal/pkg/response"
)

func (a *App) registerRoutes(deps routeDeps) {
	a.router.NoRoute(response.NotFound)
	a.router.NoMethod(response.MethodNotAllowed)

	// Materialized listing images.
	a.router.Static("/images", filepath.Join(a.cfg.Paths.Static, "images"))

	root := a.router.Group("")
	root.Use(middleware.DetectAdmin(deps.pubKey))
	root.Use(middleware.RateLimit(deps.rc.Raw()))

	registry.NewHandler(deps.regSvc).RegisterRoutes(root)
	directory.NewHandler(deps.dirSvc).RegisterRoutes(root)
	presence.NewHandler(a.tracker).RegisterRoutes(root)

	federation.NewHandler(a.db, deps.fedSvc, deps.ledger, deps.inbox,
		a.logger, a.cfg.Domain).RegisterRoutes(root)

	ownership.NewHandler(a.db, deps.ownSvc, deps.regSvc).
		RegisterRoutes(root, middleware.OwnerAuth(deps.pubKey))

	admin.NewHandler(a.db, deps.fedSvc, deps.follower, a.logger,
		a.cfg.Admin.Password, deps.privKey, !a.cfg.IsDev()).
		RegisterRoutes(root, middleware.AdminAuth(deps.pubKey))
}
