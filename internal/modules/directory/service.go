package directory

import (
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/worldindex/core/internal/models"
	"github.com/worldindex/core/internal/modules/presence"
	"github.com/worldindex/core/internal/pkg/urlx"
	"gorm.io/gorm"
)

// Entry is a listing decorated with its live visitor count.
type Entry struct {
	models.ListingModel
	LiveCount int `json:"live_count"`
}

// Overview is the JSON directory snapshot: the busiest listings plus totals.
type Overview struct {
	Apps          []Entry `json:"apps"`
	TotalOnline   int     `json:"total_online"`
	TotalListings int64   `json:"total_listings"`
}

// Service reads the directory: single listings, the grouped index and the
// live-count leaderboard.
type Service struct {
	db        *gorm.DB
	tracker   *presence.Tracker
	showAdult bool
}

func NewService(db *gorm.DB, tracker *presence.Tracker, showAdult bool) *Service {
	return &Service{db: db, tracker: tracker, showAdult: showAdult}
}

// GetBySlugOrID resolves a path segment that may be a slug or a bare id,
// (nil, nil) when nothing matches.
func (s *Service) GetBySlugOrID(slugOrID string) (*models.ListingModel, error) {
	var listing models.ListingModel
	err := s.db.First(&listing, "slug = ?", slugOrID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		id, convErr := strconv.ParseInt(slugOrID, 10, 64)
		if convErr != nil {
			return nil, nil
		}
		err = s.db.First(&listing, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// LiveCount returns a listing's current merged visitor count.
func (s *Service) LiveCount(listing *models.ListingModel) int {
	return s.tracker.LiveCount(listing.URL, time.Now().UnixMilli())
}

// GroupedByDomain returns the visible directory keyed by site domain.
func (s *Service) GroupedByDomain() (map[string][]Entry, error) {
	listings, err := s.visible()
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()

	grouped := map[string][]Entry{}
	for i := range listings {
		domain := urlx.Domain(listings[i].URL)
		grouped[domain] = append(grouped[domain], Entry{
			ListingModel: listings[i],
			LiveCount:    s.tracker.LiveCount(listings[i].URL, now),
		})
	}
	return grouped, nil
}

// TopByLiveCount returns the busiest visible listings and the totals.
func (s *Service) TopByLiveCount(limit int) (*Overview, error) {
	listings, err := s.visible()
	if err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()

	entries := make([]Entry, 0, len(listings))
	for i := range listings {
		entries = append(entries, Entry{
			ListingModel: listings[i],
			LiveCount:    s.tracker.LiveCount(listings[i].URL, now),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LiveCount > entries[j].LiveCount
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	return &Overview{
		Apps:          entries,
		TotalOnline:   s.tracker.TotalOnline(now),
		TotalListings: int64(len(listings)),
	}, nil
}

// ResolveName maps a heartbeat URL to its listing's name, the presence
// tracker's join-notification label. Empty means "no listing".
func (s *Service) ResolveName(url string) string {
	var listing models.ListingModel
	err := s.db.First(&listing, "base_url = ?", urlx.Base(url)).Error
	if err != nil {
		return ""
	}
	return listing.Name
}

func (s *Service) visible() ([]models.ListingModel, error) {
	q := s.db.Where("visible = ?", true)
	if !s.showAdult {
		q = q.Where("adult = ?", false)
	}
	var listings []models.ListingModel
	return listings, q.Order("id ASC").Find(&listings).Error
}
