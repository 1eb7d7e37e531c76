package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worldindex/core/internal/pkg/keys"
)

func TestOwnerCapabilityRoundTrip(t *testing.T) {
	pubPEM, privPEM, err := keys.Generate()
	require.NoError(t, err)
	priv, err := keys.ParsePrivate(privPEM)
	require.NoError(t, err)
	pub, err := keys.ParsePublic(pubPEM)
	require.NoError(t, err)

	token, err := MintOwner(priv, 7, "cool-world")
	require.NoError(t, err)

	claims, err := ParseOwner(pub, token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.ListingID)
	assert.Equal(t, "cool-world", claims.Slug)
}

func TestOwnerCapabilityRejectsForeignKey(t *testing.T) {
	_, privPEM, err := keys.Generate()
	require.NoError(t, err)
	priv, err := keys.ParsePrivate(privPEM)
	require.NoError(t, err)

	otherPubPEM, _, err := keys.Generate()
	require.NoError(t, err)
	otherPub, err := keys.ParsePublic(otherPubPEM)
	require.NoError(t, err)

	token, err := MintOwner(priv, 1, "a")
	require.NoError(t, err)

	_, err = ParseOwner(otherPub, token)
	assert.Error(t, err)
}

func TestScopesDoNotCross(t *testing.T) {
	pubPEM, privPEM, err := keys.Generate()
	require.NoError(t, err)
	priv, _ := keys.ParsePrivate(privPEM)
	pub, _ := keys.ParsePublic(pubPEM)

	admin, err := MintAdmin(priv)
	require.NoError(t, err)
	_, err = ParseOwner(pub, admin)
	assert.Error(t, err, "admin token must not pass as owner capability")

	owner, err := MintOwner(priv, 3, "x")
	require.NoError(t, err)
	assert.Error(t, ParseAdmin(pub, owner), "owner token must not pass as admin capability")
}
