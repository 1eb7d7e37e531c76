package ownership

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/worldindex/core/internal/models"
	"github.com/worldindex/core/internal/pkg/capability"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"gorm.io/gorm"
)

// MetaTagName is the meta element a site serves to prove control of its page.
const MetaTagName = "worldindex-verification"

const codeLength = 32

// FailureKind classifies why a verification attempt did not succeed.
type FailureKind string

const (
	FailNoCodeIssued FailureKind = "no_code_issued"
	FailFetchFailed  FailureKind = "fetch_failed"
	FailTagMissing   FailureKind = "tag_missing"
	FailCodeMismatch FailureKind = "code_mismatch"
)

// VerifyError reports a failed verification attempt. Expected/Got are only
// set for the kinds that echo codes back to the caller.
type VerifyError struct {
	Kind     FailureKind
	Expected string
	Got      string
	Err      error
}

func (e *VerifyError) Error() string {
	switch e.Kind {
	case FailNoCodeIssued:
		return "no verification code has been issued for this listing"
	case FailFetchFailed:
		return fmt.Sprintf("could not fetch the listing page: %v", e.Err)
	case FailTagMissing:
		return fmt.Sprintf("page has no %s meta tag (expected code %s)", MetaTagName, e.Expected)
	case FailCodeMismatch:
		return fmt.Sprintf("meta tag value %q does not match expected code %q", e.Got, e.Expected)
	}
	return "verification failed"
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Service walks listings through Unverified -> CodeIssued -> Verified and
// mints owner capabilities on success.
type Service struct {
	db     *gorm.DB
	client *http.Client
	key    *rsa.PrivateKey
	logger *zap.Logger
}

func NewService(db *gorm.DB, client *http.Client, key *rsa.PrivateKey, logger *zap.Logger) *Service {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Service{db: db, client: client, key: key, logger: logger}
}

// RequestVerification issues (or re-serves) the listing's challenge code and
// the instruction naming the meta tag to publish.
func (s *Service) RequestVerification(listing *models.ListingModel) (code, instruction string, err error) {
	code = listing.VerificationCode
	if code == "" {
		code, err = generateCode()
		if err != nil {
			return "", "", err
		}
		err = s.db.Model(listing).Update("verification_code", code).Error
		if err != nil {
			return "", "", err
		}
		listing.VerificationCode = code
	}
	instruction = fmt.Sprintf(
		`add <meta name="%s" content="%s"> to the page at %s, then call verify`,
		MetaTagName, code, listing.URL)
	return code, instruction, nil
}

// Verify fetches the listing page, checks the challenge meta tag and, on an
// exact match, marks the listing verified and mints a 7-day owner capability.
// Re-verifying an already-verified listing simply re-issues the capability.
func (s *Service) Verify(ctx context.Context, listing *models.ListingModel) (token string, err error) {
	if listing.VerificationCode == "" {
		return "", &VerifyError{Kind: FailNoCodeIssued}
	}

	body, err := s.fetchPage(ctx, listing.URL)
	if err != nil {
		return "", &VerifyError{Kind: FailFetchFailed, Err: err}
	}

	got, found := findMetaContent(body, MetaTagName)
	if !found {
		return "", &VerifyError{Kind: FailTagMissing, Expected: listing.VerificationCode}
	}
	if got != listing.VerificationCode {
		return "", &VerifyError{Kind: FailCodeMismatch, Expected: listing.VerificationCode, Got: got}
	}

	if !listing.Verified() {
		now := time.Now()
		if err := s.db.Model(listing).Update("verified_at", &now).Error; err != nil {
			return "", err
		}
		listing.VerifiedAt = &now
	}

	token, err = capability.MintOwner(s.key, listing.ID, listing.SlugOrID())
	if err != nil {
		return "", err
	}
	s.logger.Info("listing verified", zap.Int64("id", listing.ID))
	return token, nil
}

// Authorize checks that a validated capability is scoped to the target
// listing. A capability for listing A never authorizes listing B.
func (s *Service) Authorize(claims *capability.OwnerClaims, listingID int64) error {
	if claims == nil {
		return fmt.Errorf("no capability presented")
	}
	if claims.ListingID != listingID {
		return fmt.Errorf("capability is scoped to listing %d, not %d", claims.ListingID, listingID)
	}
	return nil
}

func (s *Service) fetchPage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// findMetaContent walks the parsed document for <meta name=... content=...>.
func findMetaContent(body []byte, name string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", false
	}

	var walk func(*html.Node) (string, bool)
	walk = func(n *html.Node) (string, bool) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var metaName, content string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "name":
					metaName = attr.Val
				case "content":
					content = attr.Val
				}
			}
			if metaName == name {
				return content, true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if v, ok := walk(c); ok {
				return v, true
			}
		}
		return "", false
	}
	return walk(doc)
}

const codeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
