package federation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worldindex/core/internal/models"
)

func TestDecodeEnvelopeRejectsUnknownType(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"id":"https://a.example/activities/1","type":"Announce","actor":"https://a.example/relay","object":"x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Announce")
}

func TestDecodeEnvelopeRequiresIDAndActor(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"type":"Follow","object":"x"}`))
	require.Error(t, err)
}

func TestDecodeEnvelopeFollow(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{
		"id": "https://a.example/activities/3",
		"type": "Follow",
		"actor": "https://a.example/relay",
		"object": "https://b.example/relay"
	}`))
	require.NoError(t, err)

	object, err := env.ObjectID()
	require.NoError(t, err)
	assert.Equal(t, "https://b.example/relay", object)
}

func TestEnvelopeEmbeddedPage(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{
		"id": "https://a.example/activities/7",
		"type": "Create",
		"actor": "https://a.example/relay",
		"object": {
			"type": "Page",
			"appId": 4,
			"id": "https://a.example/beacon/4",
			"content": "https://game.example/play",
			"name": "My Game",
			"sensitive": false
		}
	}`))
	require.NoError(t, err)

	page, ok := env.EmbeddedPage()
	require.True(t, ok)
	assert.Equal(t, "https://a.example/beacon/4", page.ID)
	assert.Equal(t, "https://game.example/play", page.Content)
	assert.Equal(t, int64(4), page.AppID)

	object, err := env.ObjectID()
	require.NoError(t, err)
	assert.Equal(t, "https://a.example/beacon/4", object)
}

func TestEmbeddedPageRejectsNonPageObject(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{
		"id": "https://a.example/activities/8",
		"type": "Create",
		"actor": "https://a.example/relay",
		"object": {"type": "Note", "id": "https://a.example/note/1"}
	}`))
	require.NoError(t, err)

	_, ok := env.EmbeddedPage()
	assert.False(t, ok)
}

func TestPageFromListingOmitsImageSentinel(t *testing.T) {
	l := &models.ListingModel{
		ID:       2,
		Identity: "https://dir.example/beacon/2",
		URL:      "https://game.example/play",
		Name:     "Game",
		Image:    models.ImageNone,
	}
	page := PageFromListing(l)
	assert.Nil(t, page.Image)

	l.Image = "https://dir.example/images/2.png"
	page = PageFromListing(l)
	require.NotNil(t, page.Image)
	assert.Equal(t, l.Image, page.Image.Href)
}

func TestActorFromRelayKeyID(t *testing.T) {
	r := &models.RelayModel{
		Identity:  "https://dir.example/relay",
		Name:      "relay",
		Inbox:     "https://dir.example/relay/inbox",
		PublicKey: "-----BEGIN PUBLIC KEY-----\n...",
	}
	doc := ActorFromRelay(r)
	assert.Equal(t, "https://dir.example/relay#main-key", doc.PublicKey.ID)
	assert.Equal(t, "Service", doc.Type)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"preferredUsername":"relay"`)
}
