package services

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"

	"github.com/abrezinsky/chronolap/internal/errors"
	"github.com/abrezinsky/chronolap/internal/logger"
	"github.com/abrezinsky/chronolap/internal/models"
	"github.com/abrezinsky/chronolap/internal/repository"
)

// CategoryServiceRepository defines the repository methods needed by CategoryService
type CategoryServiceRepository interface {
	repository.RaceRepository
	repository.CategoryRepository
}

// CategoryService handles category CRUD with denormalized-field cascades
type CategoryService struct {
	log  logger.Logger
	repo CategoryServiceRepository
	race RaceServicer
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(log logger.Logger, repo CategoryServiceRepository, race RaceServicer) *CategoryService {
	return &CategoryService{
		log:  log,
		repo: repo,
		race: race,
	}
}

// CreateCategoryOptions carries the inputs for category creation
type CreateCategoryOptions struct {
	Name        string
	Description string
	Order       *int
}

// UpdateCategoryOptions carries a partial category update
type UpdateCategoryOptions struct {
	Name        models.Field[string]
	Description models.Field[string]
	Order       models.Field[int]
}

func (s *CategoryService) ensureRace(ctx context.Context, raceID string) error {
	_, err := s.repo.GetRace(ctx, raceID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound(msgRaceNotFound)
		}
		return errors.Internal(err)
	}
	return nil
}

// CreateCategory adds a category to a race. When no order is given the
// category is appended after the existing ones.
func (s *CategoryService) CreateCategory(ctx context.Context, raceID string, opts CreateCategoryOptions) (*models.Category, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, errors.Validation(msgCategoryNameRequired)
	}

	if err := s.ensureRace(ctx, raceID); err != nil {
		return nil, err
	}

	order := 0
	if opts.Order != nil {
		order = *opts.Order
	} else {
		maxOrder, err := s.repo.MaxCategoryOrder(ctx, raceID)
		if err != nil {
			return nil, errors.Internal(err)
		}
		order = maxOrder + 1
	}

	cat := models.Category{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(opts.Description),
		Order:       order,
	}

	if err := s.repo.CreateCategory(ctx, raceID, cat); err != nil {
		return nil, errors.Internal(err)
	}

	s.race.PublishState(ctx, raceID)
	return &cat, nil
}

// UpdateCategory applies a partial update. A rename cascades the new
// name onto the race's tap events.
func (s *CategoryService) UpdateCategory(ctx context.Context, raceID, categoryID string, opts UpdateCategoryOptions) (*models.Category, error) {
	cat, err := s.repo.GetCategory(ctx, raceID, categoryID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound(msgCategoryNotFound)
		}
		return nil, errors.Internal(err)
	}

	if opts.Name.IsSet() {
		name := strings.TrimSpace(opts.Name.Value())
		if name == "" {
			return nil, errors.Validation(msgCategoryNameRequired)
		}
		cat.Name = name
	}

	switch {
	case opts.Description.IsClear():
		cat.Description = ""
	case opts.Description.IsSet():
		cat.Description = strings.TrimSpace(opts.Description.Value())
	}

	if opts.Order.IsSet() {
		cat.Order = opts.Order.Value()
	}

	if err := s.repo.UpdateCategory(ctx, raceID, *cat); err != nil {
		return nil, errors.Internal(err)
	}

	s.race.PublishState(ctx, raceID)
	return cat, nil
}

// DeleteCategory removes a category. Its tap events fall back to the
// uncategorized label and its participants are detached, never deleted.
func (s *CategoryService) DeleteCategory(ctx context.Context, raceID, categoryID string) error {
	if _, err := s.repo.GetCategory(ctx, raceID, categoryID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound(msgCategoryNotFound)
		}
		return errors.Internal(err)
	}

	if err := s.repo.DeleteCategory(ctx, raceID, categoryID); err != nil {
		return errors.Internal(err)
	}

	s.log.Info("category deleted", "raceId", raceID, "categoryId", categoryID)
	s.race.PublishState(ctx, raceID)
	return nil
}
