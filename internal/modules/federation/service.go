package federation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/worldindex/core/internal/models"
	"github.com/worldindex/core/internal/pkg/keys"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// actorRefreshAge is how stale a remote actor row may get before the refresh
// job re-fetches its document.
const actorRefreshAge = 24 * time.Hour

// Service handles relay actors and follower edges.
type Service struct {
	db       *gorm.DB
	resolver *Resolver
	logger   *zap.Logger
	baseURL  string
}

func NewService(db *gorm.DB, resolver *Resolver, logger *zap.Logger, baseURL string) *Service {
	return &Service{db: db, resolver: resolver, logger: logger, baseURL: baseURL}
}

// EnsureSystemActor inserts the local system actor (relay 0) with a fresh
// keypair if it does not exist yet, and returns it.
func (s *Service) EnsureSystemActor() (*models.RelayModel, error) {
	if relay, err := s.GetByID(models.SystemRelayID); err != nil {
		return nil, err
	} else if relay != nil {
		return relay, nil
	}

	pubPEM, privPEM, err := keys.Generate()
	if err != nil {
		return nil, err
	}
	relay := models.RelayModel{
		ID:              models.SystemRelayID,
		Identity:        s.baseURL + "/relay",
		Name:            "relay",
		Inbox:           s.baseURL + "/relay/inbox",
		Outbox:          s.baseURL + "/relay/outbox",
		PublicKey:       pubPEM,
		PrivateKey:      &privPEM,
		Local:           true,
		LastRefreshedAt: time.Now(),
	}
	if err := s.db.Create(&relay).Error; err != nil {
		return nil, fmt.Errorf("insert system actor: %w", err)
	}
	s.logger.Info("system actor created", zap.String("identity", relay.Identity))
	return &relay, nil
}

// SystemActor returns the local actor row.
func (s *Service) SystemActor() (*models.RelayModel, error) {
	relay, err := s.GetByID(models.SystemRelayID)
	if err != nil {
		return nil, err
	}
	if relay == nil {
		return nil, fmt.Errorf("system actor missing")
	}
	return relay, nil
}

// GetByID fetches a relay row, returning (nil, nil) when absent.
func (s *Service) GetByID(id int64) (*models.RelayModel, error) {
	var relay models.RelayModel
	if err := s.db.First(&relay, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &relay, nil
}

// GetByIdentity fetches a relay row by federation identity.
func (s *Service) GetByIdentity(identity string) (*models.RelayModel, error) {
	var relay models.RelayModel
	if err := s.db.First(&relay, "identity = ?", identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &relay, nil
}

// All returns every known relay.
func (s *Service) All() ([]models.RelayModel, error) {
	var relays []models.RelayModel
	return relays, s.db.Order("id ASC").Find(&relays).Error
}

// UpsertRemote stores a remote actor document as a relay row, creating it
// with the next sequence id or refreshing the mutable fields in place.
func (s *Service) UpsertRemote(doc *ActorDoc) (*models.RelayModel, error) {
	existing, err := s.GetByIdentity(doc.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		updates := map[string]interface{}{
			"name":              doc.Name,
			"inbox":             doc.Inbox,
			"outbox":            doc.Outbox,
			"public_key":        doc.PublicKey.PublicKeyPem,
			"last_refreshed_at": time.Now(),
		}
		if err := s.db.Model(existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return s.GetByIdentity(doc.ID)
	}

	var count int64
	if err := s.db.Model(&models.RelayModel{}).Count(&count).Error; err != nil {
		return nil, err
	}
	relay := models.RelayModel{
		ID:              count, // advisory; identity unique index is the backstop
		Identity:        doc.ID,
		Name:            doc.Name,
		Inbox:           doc.Inbox,
		Outbox:          doc.Outbox,
		PublicKey:       doc.PublicKey.PublicKeyPem,
		Local:           false,
		LastRefreshedAt: time.Now(),
	}
	if err := s.db.Create(&relay).Error; err != nil {
		return nil, fmt.Errorf("insert relay: %w", err)
	}
	return &relay, nil
}

// AddFollower records that follower receives fan-out from the system actor.
// Only relay 0 may be followed. Re-following is a no-op.
func (s *Service) AddFollower(followerID int64) error {
	edge := models.FollowerEdgeModel{RelayID: models.SystemRelayID, FollowerID: followerID}
	return s.db.Where(&edge).FirstOrCreate(&edge).Error
}

// FollowerInboxes returns the inbox URL of every relay following the system
// actor, the recipient set for fan-out.
func (s *Service) FollowerInboxes() ([]string, error) {
	var inboxes []string
	err := s.db.Model(&models.RelayModel{}).
		Joins("JOIN follower_edges ON follower_edges.follower_id = relays.id").
		Where("follower_edges.relay_id = ?", models.SystemRelayID).
		Pluck("relays.inbox", &inboxes).Error
	return inboxes, err
}

// RefreshStaleActors re-fetches remote actor documents whose row is older
// than actorRefreshAge, keeping keys and inboxes current.
func (s *Service) RefreshStaleActors(ctx context.Context) error {
	var stale []models.RelayModel
	cutoff := time.Now().Add(-actorRefreshAge)
	if err := s.db.Where("local = ? AND last_refreshed_at < ?", false, cutoff).Find(&stale).Error; err != nil {
		return err
	}

	for _, relay := range stale {
		doc, err := s.resolver.FetchActor(ctx, relay.Identity)
		if err != nil {
			s.logger.Warn("actor refresh failed",
				zap.String("identity", relay.Identity), zap.Error(err))
			continue
		}
		if _, err := s.UpsertRemote(doc); err != nil {
			s.logger.Warn("actor refresh write failed",
				zap.String("identity", relay.Identity), zap.Error(err))
		}
	}
	return nil
}
