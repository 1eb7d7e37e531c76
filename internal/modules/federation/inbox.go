package federation

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/worldindex/core/internal/models"
	"github.com/worldindex/core/internal/pkg/httpsig"
	"github.com/worldindex/core/internal/pkg/keys"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListingApplier lets the inbox hand federated listing documents to the
// registry without a package cycle.
type ListingApplier interface {
	ApplyRemote(ctx context.Context, page *Page, actor string) error
}

// Inbox processes signed activities arriving at the system actor.
type Inbox struct {
	db       *gorm.DB
	svc      *Service
	ledger   *Ledger
	resolver *Resolver
	applier  ListingApplier
	logger   *zap.Logger
}

func NewInbox(db *gorm.DB, svc *Service, ledger *Ledger, resolver *Resolver, applier ListingApplier, logger *zap.Logger) *Inbox {
	return &Inbox{db: db, svc: svc, ledger: ledger, resolver: resolver, applier: applier, logger: logger}
}

// Receive verifies and applies one inbound activity. Errors are typed by the
// handler into 401 (signature) or 422 (content).
func (in *Inbox) Receive(ctx context.Context, req *http.Request, body []byte) error {
	env, err := DecodeEnvelope(body)
	if err != nil {
		return &ContentError{err}
	}

	actor, err := in.authenticatedActor(ctx, req, env.Actor, body)
	if err != nil {
		return &SignatureError{err}
	}

	// Replayed activity: the identity is already in the ledger, nothing to do.
	if seen, err := in.ledger.GetByIdentity(env.ID); err != nil {
		return err
	} else if seen != nil {
		return nil
	}

	switch env.Type {
	case models.ActivityFollow:
		return in.receiveFollow(ctx, env, actor)
	case models.ActivityCreate, models.ActivityUpdate:
		return in.receivePage(ctx, env, actor)
	}
	return &ContentError{fmt.Errorf("unrecognized activity type %q", env.Type)}
}

// authenticatedActor resolves the claimed actor and checks the request
// signature against its key. Unknown actors are fetched and cached as relay
// rows so their keys are on hand for the next delivery.
func (in *Inbox) authenticatedActor(ctx context.Context, req *http.Request, identity string, body []byte) (*models.RelayModel, error) {
	keyID := httpsig.KeyID(req)
	if keyID == "" {
		return nil, fmt.Errorf("unsigned request")
	}
	if !strings.HasPrefix(keyID, identity) {
		return nil, fmt.Errorf("key %s does not belong to actor %s", keyID, identity)
	}

	relay, err := in.svc.GetByIdentity(identity)
	if err != nil {
		return nil, err
	}
	if relay == nil {
		doc, err := in.resolver.FetchActor(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("resolve actor %s: %w", identity, err)
		}
		relay, err = in.svc.UpsertRemote(doc)
		if err != nil {
			return nil, err
		}
		in.logger.Info("remote actor cached", zap.String("identity", identity))
	}

	pub, err := keys.ParsePublic(relay.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("actor %s key: %w", identity, err)
	}
	if _, err := httpsig.Verify(req, pub, body); err != nil {
		return nil, err
	}
	return relay, nil
}

// receiveFollow registers the sender as a follower of the system actor.
func (in *Inbox) receiveFollow(ctx context.Context, env *Envelope, actor *models.RelayModel) error {
	object, err := env.ObjectID()
	if err != nil {
		return &ContentError{err}
	}
	local, err := in.svc.SystemActor()
	if err != nil {
		return err
	}
	if object != local.Identity {
		return &ContentError{fmt.Errorf("follow target %s is not the local actor", object)}
	}

	return in.db.Transaction(func(tx *gorm.DB) error {
		if err := in.svc.AddFollower(actor.ID); err != nil {
			return err
		}
		return in.recordInbound(tx, env, object)
	})
}

// receivePage applies a federated listing document. The embedded object is
// preferred; a bare object URI gets dereferenced from the sender.
func (in *Inbox) receivePage(ctx context.Context, env *Envelope, actor *models.RelayModel) error {
	page, ok := env.EmbeddedPage()
	if !ok {
		object, err := env.ObjectID()
		if err != nil {
			return &ContentError{err}
		}
		page, err = in.resolver.FetchPage(ctx, object)
		if err != nil {
			return &ContentError{fmt.Errorf("dereference %s: %w", object, err)}
		}
	}

	if err := in.applier.ApplyRemote(ctx, page, actor.Identity); err != nil {
		return err
	}
	return in.db.Transaction(func(tx *gorm.DB) error {
		return in.recordInbound(tx, env, page.ID)
	})
}

// recordInbound stores the remote activity under its own identity with the
// next local sequence number, so replays dedup on the identity index.
func (in *Inbox) recordInbound(tx *gorm.DB, env *Envelope, object string) error {
	n, err := in.ledger.Count(tx)
	if err != nil {
		return err
	}
	row := models.ActivityModel{
		ID:       n,
		Identity: env.ID,
		Actor:    env.Actor,
		Object:   object,
		Kind:     env.Type,
	}
	return tx.Create(&row).Error
}

// SignatureError marks an authentication failure on an inbound activity.
type SignatureError struct{ Err error }

func (e *SignatureError) Error() string { return e.Err.Error() }
func (e *SignatureError) Unwrap() error { return e.Err }

// ContentError marks a well-signed but unprocessable activity.
type ContentError struct{ Err error }

func (e *ContentError) Error() string { return e.Err.Error() }
func (e *ContentError) Unwrap() error { return e.Err }
