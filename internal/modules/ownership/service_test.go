package ownership

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worldindex/core/internal/models"
	"github.com/worldindex/core/internal/pkg/capability"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *rsa.PrivateKey) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ListingModel{}))

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	svc := NewService(db, nil, key, zap.NewNop())
	return svc, db, key
}

func seedListing(t *testing.T, db *gorm.DB, id int64, url string) *models.ListingModel {
	t.Helper()
	slug := fmt.Sprintf("listing-%d", id)
	listing := &models.ListingModel{
		ID:       id,
		Identity: fmt.Sprintf("https://dir.example/beacon/%d", id),
		URL:      url,
		BaseURL:  url,
		Name:     "Listing",
		Image:    models.ImageNone,
		Visible:  true,
		Slug:     &slug,
	}
	require.NoError(t, db.Create(listing).Error)
	return listing
}

func TestRequestVerificationIssuesStableCode(t *testing.T) {
	svc, db, _ := newTestService(t)
	listing := seedListing(t, db, 0, "https://game.example/play")

	code, instruction, err := svc.RequestVerification(listing)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]{32}$`), code)
	assert.Contains(t, instruction, MetaTagName)
	assert.Contains(t, instruction, code)

	// A second request re-serves the same code.
	again, _, err := svc.RequestVerification(listing)
	require.NoError(t, err)
	assert.Equal(t, code, again)

	var stored models.ListingModel
	require.NoError(t, db.First(&stored, "id = ?", 0).Error)
	assert.Equal(t, code, stored.VerificationCode)
}

func TestVerifyRequiresIssuedCode(t *testing.T) {
	svc, db, _ := newTestService(t)
	listing := seedListing(t, db, 0, "https://game.example/play")

	_, err := svc.Verify(context.Background(), listing)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FailNoCodeIssued, verr.Kind)
}

func TestVerifyFlow(t *testing.T) {
	svc, db, key := newTestService(t)

	served := `<html><head></head></html>`
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, served)
	}))
	defer page.Close()

	listing := seedListing(t, db, 0, page.URL)
	code, _, err := svc.RequestVerification(listing)
	require.NoError(t, err)

	// No tag on the page yet.
	_, err = svc.Verify(context.Background(), listing)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FailTagMissing, verr.Kind)
	assert.Equal(t, code, verr.Expected)

	// Wrong value.
	served = fmt.Sprintf(`<html><head><meta name=%q content="wrong"></head></html>`, MetaTagName)
	_, err = svc.Verify(context.Background(), listing)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FailCodeMismatch, verr.Kind)
	assert.Equal(t, code, verr.Expected)
	assert.Equal(t, "wrong", verr.Got)

	// Corrected page verifies and mints a capability for this listing.
	served = fmt.Sprintf(`<html><head><meta name=%q content=%q></head></html>`, MetaTagName, code)
	token, err := svc.Verify(context.Background(), listing)
	require.NoError(t, err)

	claims, err := capability.ParseOwner(&key.PublicKey, token)
	require.NoError(t, err)
	assert.Equal(t, int64(0), claims.ListingID)

	var stored models.ListingModel
	require.NoError(t, db.First(&stored, "id = ?", 0).Error)
	assert.True(t, stored.Verified())

	// Re-verifying an already-verified listing re-issues.
	token2, err := svc.Verify(context.Background(), listing)
	require.NoError(t, err)
	assert.NotEmpty(t, token2)
}

func TestVerifyFetchFailure(t *testing.T) {
	svc, db, _ := newTestService(t)
	listing := seedListing(t, db, 0, "http://127.0.0.1:1/unreachable")
	_, _, err := svc.RequestVerification(listing)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), listing)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FailFetchFailed, verr.Kind)
}

func TestAuthorizeScopesToListing(t *testing.T) {
	svc, _, key := newTestService(t)

	token, err := capability.MintOwner(key, 1, "listing-1")
	require.NoError(t, err)
	claims, err := capability.ParseOwner(&key.PublicKey, token)
	require.NoError(t, err)

	assert.NoError(t, svc.Authorize(claims, 1))
	assert.Error(t, svc.Authorize(claims, 2), "capability for listing 1 must not authorize listing 2")
	assert.Error(t, svc.Authorize(nil, 1))
}

func TestFindMetaContent(t *testing.T) {
	body := []byte(`<!doctype html><html><head>
		<meta charset="utf-8">
		<meta name="description" content="a game">
		<meta name="worldindex-verification" content="abc123">
	</head><body></body></html>`)

	got, ok := findMetaContent(body, MetaTagName)
	require.True(t, ok)
	assert.Equal(t, "abc123", got)

	_, ok = findMetaContent([]byte(`<html></html>`), MetaTagName)
	assert.False(t, ok)
}
