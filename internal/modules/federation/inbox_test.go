package federation

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worldindex/core/internal/models"
	"github.com/worldindex/core/internal/pkg/httpsig"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeApplier struct {
	pages []*Page
}

func (f *fakeApplier) ApplyRemote(_ context.Context, page *Page, _ string) error {
	f.pages = append(f.pages, page)
	return nil
}

type inboxFixture struct {
	db      *gorm.DB
	svc     *Service
	inbox   *Inbox
	applier *fakeApplier

	peerKey      *rsa.PrivateKey
	peerIdentity string
}

func newInboxFixture(t *testing.T) *inboxFixture {
	t.Helper()
	db := newTestDB(t)
	svc := NewService(db, nil, zap.NewNop(), "https://dir.example")
	_, err := svc.EnsureSystemActor()
	require.NoError(t, err)

	peerKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&peerKey.PublicKey)
	require.NoError(t, err)
	pubPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))

	peerIdentity := "https://peer.example/relay"
	require.NoError(t, db.Create(&models.RelayModel{
		ID:        1,
		Identity:  peerIdentity,
		Inbox:     "https://peer.example/relay/inbox",
		PublicKey: pubPEM,
	}).Error)

	applier := &fakeApplier{}
	ledger := NewLedger(db)
	inbox := NewInbox(db, svc, ledger, NewResolver(), applier, zap.NewNop())
	return &inboxFixture{db: db, svc: svc, inbox: inbox, applier: applier, peerKey: peerKey, peerIdentity: peerIdentity}
}

func (f *inboxFixture) signedRequest(t *testing.T, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "https://dir.example/relay/inbox", bytes.NewReader(body))
	require.NoError(t, httpsig.Sign(req, f.peerIdentity+"#main-key", f.peerKey, body))
	return req
}

func followBody(id string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"type": "Follow",
		"actor": "https://peer.example/relay",
		"object": "https://dir.example/relay"
	}`, id))
}

func TestInboxFollowCreatesEdge(t *testing.T) {
	f := newInboxFixture(t)
	body := followBody("https://peer.example/activities/1")

	err := f.inbox.Receive(context.Background(), f.signedRequest(t, body), body)
	require.NoError(t, err)

	inboxes, err := f.svc.FollowerInboxes()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://peer.example/relay/inbox"}, inboxes)

	// The inbound activity is on the ledger under its remote identity.
	var activity models.ActivityModel
	require.NoError(t, f.db.First(&activity, "identity = ?", "https://peer.example/activities/1").Error)
	assert.Equal(t, models.ActivityFollow, activity.Kind)
}

func TestInboxReplayIsIgnored(t *testing.T) {
	f := newInboxFixture(t)
	body := followBody("https://peer.example/activities/1")

	require.NoError(t, f.inbox.Receive(context.Background(), f.signedRequest(t, body), body))
	require.NoError(t, f.inbox.Receive(context.Background(), f.signedRequest(t, body), body))

	var n int64
	require.NoError(t, f.db.Model(&models.ActivityModel{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestInboxRejectsUnsignedRequest(t *testing.T) {
	f := newInboxFixture(t)
	body := followBody("https://peer.example/activities/2")
	req := httptest.NewRequest(http.MethodPost, "https://dir.example/relay/inbox", bytes.NewReader(body))

	err := f.inbox.Receive(context.Background(), req, body)
	var sigErr *SignatureError
	require.ErrorAs(t, err, &sigErr)
}

func TestInboxRejectsForeignKeySignature(t *testing.T) {
	f := newInboxFixture(t)
	body := followBody("https://peer.example/activities/3")

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "https://dir.example/relay/inbox", bytes.NewReader(body))
	require.NoError(t, httpsig.Sign(req, f.peerIdentity+"#main-key", otherKey, body))

	recvErr := f.inbox.Receive(context.Background(), req, body)
	var sigErr *SignatureError
	require.ErrorAs(t, recvErr, &sigErr)
}

func TestInboxRejectsFollowOfNonLocalActor(t *testing.T) {
	f := newInboxFixture(t)
	body := []byte(`{
		"id": "https://peer.example/activities/4",
		"type": "Follow",
		"actor": "https://peer.example/relay",
		"object": "https://elsewhere.example/relay"
	}`)

	err := f.inbox.Receive(context.Background(), f.signedRequest(t, body), body)
	var contentErr *ContentError
	require.ErrorAs(t, err, &contentErr)
}

func TestInboxCreateAppliesEmbeddedPage(t *testing.T) {
	f := newInboxFixture(t)
	body := []byte(`{
		"id": "https://peer.example/activities/5",
		"type": "Create",
		"actor": "https://peer.example/relay",
		"object": {
			"type": "Page",
			"appId": 7,
			"id": "https://peer.example/beacon/7",
			"content": "https://game.example/play",
			"name": "Peer Game"
		}
	}`)

	require.NoError(t, f.inbox.Receive(context.Background(), f.signedRequest(t, body), body))
	require.Len(t, f.applier.pages, 1)
	assert.Equal(t, "https://peer.example/beacon/7", f.applier.pages[0].ID)

	var activity models.ActivityModel
	require.NoError(t, f.db.First(&activity, "identity = ?", "https://peer.example/activities/5").Error)
	assert.Equal(t, models.ActivityCreate, activity.Kind)
	assert.Equal(t, "https://peer.example/beacon/7", activity.Object)
}

func TestInboxRejectsUnknownActivityType(t *testing.T) {
	f := newInboxFixture(t)
	body := []byte(`{
		"id": "https://peer.example/activities/6",
		"type": "Announce",
		"actor": "https://peer.example/relay",
		"object": "x"
	}`)

	err := f.inbox.Receive(context.Background(), f.signedRequest(t, body), body)
	var contentErr *ContentError
	require.True(t, errors.As(err, &contentErr))
}
