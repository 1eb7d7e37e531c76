// Package capability mints and validates the signed credentials used for
// authorization: a site-wide admin capability and a per-listing owner
// capability. Both are RS256 tokens signed with the system actor's private
// key and presented via http-only cookies; nothing is stored server-side.
package capability

import (
	"crypto/rsa"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const (
	// AdminCookie carries the admin capability.
	AdminCookie = "relay-admin-token"
	// OwnerCookie carries a per-listing owner capability.
	OwnerCookie = "relay-owner-token"

	// OwnerTTL is the validity window of an owner capability.
	OwnerTTL = 7 * 24 * time.Hour
	// AdminTTL is the validity window of an admin capability.
	AdminTTL = 24 * time.Hour

	scopeAdmin = "admin"
	scopeOwner = "owner"
)

// OwnerClaims scope a capability to exactly one listing.
type OwnerClaims struct {
	Scope     string `json:"scope"`
	ListingID int64  `json:"listing_id"`
	Slug      string `json:"slug"`
	jwtlib.RegisteredClaims
}

type adminClaims struct {
	Scope string `json:"scope"`
	jwtlib.RegisteredClaims
}

// MintOwner signs a 7-day capability for the given listing.
func MintOwner(key *rsa.PrivateKey, listingID int64, slug string) (string, error) {
	claims := OwnerClaims{
		Scope:     scopeOwner,
		ListingID: listingID,
		Slug:      slug,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(OwnerTTL)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims).SignedString(key)
}

// MintAdmin signs a one-day admin capability.
func MintAdmin(key *rsa.PrivateKey) (string, error) {
	claims := adminClaims{
		Scope: scopeAdmin,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(AdminTTL)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims).SignedString(key)
}

// ParseOwner validates an owner capability and returns its claims. A valid
// signature is not sufficient on its own: callers must additionally compare
// ListingID against the target listing.
func ParseOwner(pub *rsa.PublicKey, token string) (*OwnerClaims, error) {
	claims := &OwnerClaims{}
	if err := parse(pub, token, claims); err != nil {
		return nil, err
	}
	if claims.Scope != scopeOwner {
		return nil, fmt.Errorf("capability scope %q is not owner", claims.Scope)
	}
	return claims, nil
}

// ParseAdmin validates an admin capability.
func ParseAdmin(pub *rsa.PublicKey, token string) error {
	claims := &adminClaims{}
	if err := parse(pub, token, claims); err != nil {
		return err
	}
	if claims.Scope != scopeAdmin {
		return fmt.Errorf("capability scope %q is not admin", claims.Scope)
	}
	return nil
}

func parse(pub *rsa.PublicKey, token string, claims jwtlib.Claims) error {
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return pub, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
