package federation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/worldindex/core/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Follower sends outgoing Follow requests to peer directories. Following a
// peer asks it to fan its listing mutations out to us.
type Follower struct {
	db        *gorm.DB
	svc       *Service
	ledger    *Ledger
	resolver  *Resolver
	deliverer Deliverer
	logger    *zap.Logger
	baseURL   string
}

func NewFollower(db *gorm.DB, svc *Service, ledger *Ledger, resolver *Resolver, deliverer Deliverer, logger *zap.Logger, baseURL string) *Follower {
	return &Follower{db: db, svc: svc, ledger: ledger, resolver: resolver, deliverer: deliverer, logger: logger, baseURL: baseURL}
}

// Follow resolves a peer by domain or handle, stores its actor and delivers a
// signed Follow to its inbox. Unlike listing fan-out, a delivery failure here
// surfaces: the admin needs to know the follow did not land.
func (f *Follower) Follow(ctx context.Context, target string) (*models.RelayModel, error) {
	doc, err := f.resolver.ResolveActor(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", target, err)
	}
	relay, err := f.svc.UpsertRemote(doc)
	if err != nil {
		return nil, err
	}

	local, err := f.svc.SystemActor()
	if err != nil {
		return nil, err
	}

	var activity *models.ActivityModel
	err = f.db.Transaction(func(tx *gorm.DB) error {
		activity, err = f.ledger.Append(tx, f.baseURL, models.ActivityFollow, local.Identity, relay.Identity)
		return err
	})
	if err != nil {
		return nil, err
	}

	object, _ := json.Marshal(relay.Identity)
	body, err := json.Marshal(Envelope{
		Context: DefaultContext,
		ID:      activity.Identity,
		Type:    models.ActivityFollow,
		Actor:   local.Identity,
		Object:  object,
	})
	if err != nil {
		return nil, err
	}

	if err := f.deliverer.Deliver(ctx, relay.Inbox, body); err != nil {
		return nil, fmt.Errorf("deliver follow to %s: %w", relay.Inbox, err)
	}
	f.logger.Info("follow sent", zap.String("peer", relay.Identity))
	return relay, nil
}
