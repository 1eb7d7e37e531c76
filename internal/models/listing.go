package models

import (
	"strconv"
	"time"
)

// ImageNone is the sentinel meaning "no image attached" on a submission.
const ImageNone = "none"

// ListingModel is a registered external site (beacon/app/world).
//
// IDs are assigned by the application from the current row count so that the
// federation identity `{domain}/beacon/{id}` stays stable; the unique indexes
// on identity, base_url and slug are the authoritative guard against races.
type ListingModel struct {
	ID          int64      `json:"id"          gorm:"primaryKey;autoIncrement:false"`
	Identity    string     `json:"identity"    gorm:"uniqueIndex;size:191;not null"`
	URL         string     `json:"url"         gorm:"size:512;not null"`
	BaseURL     string     `json:"-"           gorm:"uniqueIndex;size:191;not null"`
	Name        string     `json:"name"`
	Description string     `json:"description" gorm:"type:text"`
	Active      bool       `json:"active"`
	Image       string     `json:"image"       gorm:"size:512"`
	Adult       bool       `json:"adult"`
	Tags        string     `json:"tags"        gorm:"type:text"`
	Visible     bool       `json:"visible"`
	Slug        *string    `json:"slug"        gorm:"uniqueIndex;size:191"`
	// VerificationCode is set once ownership verification has been requested.
	VerificationCode string     `json:"-"           gorm:"size:64"`
	VerifiedAt       *time.Time `json:"verified_at"`
	CreatedAt        time.Time  `json:"created"`
	UpdatedAt        time.Time  `json:"modified"`
}

func (ListingModel) TableName() string { return "listings" }

// SlugOrID returns the slug when one is assigned, else the decimal id. This is
// the value embedded in owner capabilities and page paths.
func (l *ListingModel) SlugOrID() string {
	if l.Slug != nil && *l.Slug != "" {
		return *l.Slug
	}
	return strconv.FormatInt(l.ID, 10)
}

// Verified reports whether ownership has been proven for this listing.
func (l *ListingModel) Verified() bool { return l.VerifiedAt != nil }
