package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/worldindex/core/internal/models"
	"github.com/worldindex/core/internal/modules/federation"
	"github.com/worldindex/core/internal/pkg/urlx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service keeps the listing registry synchronized: idempotent upserts with
// change detection, ledger bookkeeping and federation fan-out.
type Service struct {
	db     *gorm.DB
	ledger *federation.Ledger
	fanout *federation.Fanout
	slugs  *SlugAllocator
	images *ImageMaterializer
	logger *zap.Logger

	baseURL string
	actor   string // local system actor identity
}

func NewService(db *gorm.DB, ledger *federation.Ledger, fanout *federation.Fanout, images *ImageMaterializer, logger *zap.Logger, baseURL string) *Service {
	s := &Service{
		db:      db,
		ledger:  ledger,
		fanout:  fanout,
		images:  images,
		logger:  logger,
		baseURL: baseURL,
		actor:   baseURL + "/relay",
	}
	s.slugs = &SlugAllocator{Exists: s.slugTaken}
	return s
}

// Upsert registers or refreshes the listing for a submission, keyed by the
// submission URL's base form. The listing write and the ledger append commit
// as one unit; fan-out runs after commit and its failures never surface.
func (s *Service) Upsert(ctx context.Context, sub Submission) (Outcome, *models.ListingModel, error) {
	base := urlx.Base(sub.URL)
	if base == "" {
		return OutcomeUnchanged, nil, fmt.Errorf("unusable url %q", sub.URL)
	}

	existing, err := s.GetByBaseURL(base)
	if err != nil {
		return OutcomeUnchanged, nil, err
	}
	if existing == nil {
		listing, err := s.create(ctx, sub, base)
		if err != nil {
			return OutcomeUnchanged, nil, err
		}
		return OutcomeCreated, listing, nil
	}
	return s.update(ctx, existing, sub)
}

func (s *Service) create(ctx context.Context, sub Submission, base string) (*models.ListingModel, error) {
	slug, err := s.slugs.Allocate(sub.Name)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&models.ListingModel{}).Count(&count).Error; err != nil {
		return nil, err
	}

	image := sub.Image
	if image == "" {
		image = models.ImageNone
	}
	image, err = s.images.Materialize(count, image)
	if err != nil {
		return nil, err
	}

	listing := models.ListingModel{
		ID:          count, // advisory; identity/base_url unique indexes backstop the race
		Identity:    fmt.Sprintf("%s/beacon/%d", s.baseURL, count),
		URL:         sub.URL,
		BaseURL:     base,
		Name:        sub.Name,
		Description: sub.Description,
		Active:      sub.Active,
		Image:       image,
		Adult:       sub.Adult,
		Tags:        sub.Tags,
		Visible:     true,
		Slug:        &slug,
	}

	var activity *models.ActivityModel
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&listing).Error; err != nil {
			return fmt.Errorf("insert listing: %w", err)
		}
		activity, err = s.ledger.Append(tx, s.baseURL, models.ActivityCreate, s.actor, listing.Identity)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, activity, &listing)
	s.logger.Info("listing created",
		zap.Int64("id", listing.ID), zap.String("base_url", base), zap.String("slug", slug))
	return &listing, nil
}

// OwnerUpdate applies a verified owner's edit to their listing, with the same
// field-wise merge, ledger append and fan-out as a resubmission. The url and
// identity stay fixed; only the descriptive fields move.
func (s *Service) OwnerUpdate(ctx context.Context, listing *models.ListingModel, sub Submission) (Outcome, *models.ListingModel, error) {
	return s.update(ctx, listing, sub)
}

// update applies the submission field-wise: an incoming value wins only when
// it differs, so a verbatim resubmission is a true no-op.
func (s *Service) update(ctx context.Context, listing *models.ListingModel, sub Submission) (Outcome, *models.ListingModel, error) {
	changed := false
	apply := func(dst *string, incoming string) {
		if incoming != *dst {
			*dst = incoming
			changed = true
		}
	}
	applyBool := func(dst *bool, incoming bool) {
		if incoming != *dst {
			*dst = incoming
			changed = true
		}
	}

	apply(&listing.Name, sub.Name)
	apply(&listing.Description, sub.Description)
	applyBool(&listing.Active, sub.Active)
	applyBool(&listing.Adult, sub.Adult)
	apply(&listing.Tags, sub.Tags)

	// Image: the sentinel never clobbers a stored image, and inline payloads
	// are materialized before the comparison.
	if sub.Image != "" && sub.Image != models.ImageNone && sub.Image != listing.Image {
		resolved, err := s.images.Materialize(listing.ID, sub.Image)
		if err != nil {
			return OutcomeUnchanged, nil, err
		}
		if resolved != listing.Image {
			listing.Image = resolved
			changed = true
		}
	}

	if !changed {
		return OutcomeUnchanged, listing, nil
	}

	var activity *models.ActivityModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(listing).Error; err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		var err error
		activity, err = s.ledger.Append(tx, s.baseURL, models.ActivityUpdate, s.actor, listing.Identity)
		return err
	})
	if err != nil {
		return OutcomeUnchanged, nil, err
	}

	s.dispatch(ctx, activity, listing)
	s.logger.Info("listing updated", zap.Int64("id", listing.ID))
	return OutcomeUpdated, listing, nil
}

// ApplyRemote writes a federated listing document into the registry. Remote
// rows keep their origin identity and never trigger fan-out of their own.
func (s *Service) ApplyRemote(ctx context.Context, page *federation.Page, actor string) error {
	base := urlx.Base(page.Content)
	if base == "" {
		return fmt.Errorf("remote page %s has unusable content url", page.ID)
	}

	image := models.ImageNone
	if page.Image != nil && page.Image.Href != "" {
		image = page.Image.Href
	}

	existing, err := s.GetByBaseURL(base)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.URL = page.Content
		existing.Name = page.Name
		existing.Description = page.Summary
		existing.Adult = page.Sensitive
		existing.Tags = page.Tags
		existing.Image = image
		return s.db.Save(existing).Error
	}

	slug, err := s.slugs.Allocate(page.Name)
	if err != nil {
		return err
	}
	var count int64
	if err := s.db.Model(&models.ListingModel{}).Count(&count).Error; err != nil {
		return err
	}
	listing := models.ListingModel{
		ID:          count,
		Identity:    page.ID,
		URL:         page.Content,
		BaseURL:     base,
		Name:        page.Name,
		Description: page.Summary,
		Active:      true,
		Image:       image,
		Adult:       page.Sensitive,
		Tags:        page.Tags,
		Visible:     true,
		Slug:        &slug,
	}
	if err := s.db.Create(&listing).Error; err != nil {
		return fmt.Errorf("insert remote listing: %w", err)
	}
	s.logger.Info("remote listing stored",
		zap.String("identity", page.ID), zap.String("actor", actor))
	return nil
}

// GetByBaseURL fetches the listing for a base url, (nil, nil) when absent.
func (s *Service) GetByBaseURL(base string) (*models.ListingModel, error) {
	var listing models.ListingModel
	if err := s.db.First(&listing, "base_url = ?", base).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &listing, nil
}

func (s *Service) slugTaken(slug string) (bool, error) {
	var n int64
	err := s.db.Model(&models.ListingModel{}).Where("slug = ?", slug).Count(&n).Error
	return n > 0, err
}

func (s *Service) dispatch(ctx context.Context, activity *models.ActivityModel, listing *models.ListingModel) {
	page := federation.PageFromListing(listing)
	if err := s.fanout.Dispatch(ctx, activity, page); err != nil {
		s.logger.Warn("fan-out failed",
			zap.String("activity", activity.Identity), zap.Error(err))
	}
}
