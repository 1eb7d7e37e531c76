package httpsig

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worldindex/core/internal/pkg/keys"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	pubPEM, privPEM, err := keys.Generate()
	require.NoError(t, err)
	priv, err := keys.ParsePrivate(privPEM)
	require.NoError(t, err)
	pub, err := keys.ParsePublic(pubPEM)
	require.NoError(t, err)

	body := []byte(`{"type":"Create"}`)
	req := httptest.NewRequest("POST", "https://peer.example/relay/inbox", bytes.NewReader(body))

	require.NoError(t, Sign(req, "https://dir.example/relay#main-key", priv, body))
	assert.NotEmpty(t, req.Header.Get("Date"))
	assert.NotEmpty(t, req.Header.Get("Digest"))

	keyID, err := Verify(req, pub, body)
	require.NoError(t, err)
	assert.Equal(t, "https://dir.example/relay#main-key", keyID)
	assert.Equal(t, "https://dir.example/relay#main-key", KeyID(req))
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	pubPEM, privPEM, err := keys.Generate()
	require.NoError(t, err)
	priv, _ := keys.ParsePrivate(privPEM)
	pub, _ := keys.ParsePublic(pubPEM)

	body := []byte(`{"type":"Create"}`)
	req := httptest.NewRequest("POST", "https://peer.example/relay/inbox", bytes.NewReader(body))
	require.NoError(t, Sign(req, "k", priv, body))

	_, err = Verify(req, pub, []byte(`{"type":"Update"}`))
	assert.Error(t, err)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	_, privPEM, err := keys.Generate()
	require.NoError(t, err)
	priv, _ := keys.ParsePrivate(privPEM)
	otherPubPEM, _, err := keys.Generate()
	require.NoError(t, err)
	otherPub, _ := keys.ParsePublic(otherPubPEM)

	body := []byte(`{}`)
	req := httptest.NewRequest("POST", "https://peer.example/relay/inbox", bytes.NewReader(body))
	require.NoError(t, Sign(req, "k", priv, body))

	_, err = Verify(req, otherPub, body)
	assert.Error(t, err)
}
