package services

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/abrezinsky/chronolap/internal/errors"
	"github.com/abrezinsky/chronolap/internal/logger"
	"github.com/abrezinsky/chronolap/internal/models"
	"github.com/abrezinsky/chronolap/internal/repository"
)

// ParticipantServiceRepository defines the repository methods needed by ParticipantService
type ParticipantServiceRepository interface {
	repository.RaceRepository
	repository.CategoryRepository
	repository.ParticipantRepository
}

// ParticipantService handles the roster: CRUD, bib issuance and bulk import
type ParticipantService struct {
	log   logger.Logger
	repo  ParticipantServiceRepository
	race  RaceServicer
	clock clockwork.Clock
}

// NewParticipantService creates a new ParticipantService
func NewParticipantService(log logger.Logger, repo ParticipantServiceRepository, race RaceServicer, clock clockwork.Clock) *ParticipantService {
	return &ParticipantService{
		log:   log,
		repo:  repo,
		race:  race,
		clock: clock,
	}
}

// CreateParticipantOptions carries the inputs for roster entry creation
type CreateParticipantOptions struct {
	Bib        int
	Name       string
	CategoryID *string
	Team       string
	BirthDate  *int64
}

// UpdateParticipantOptions carries a partial roster entry update
type UpdateParticipantOptions struct {
	Bib        models.Field[int]
	Name       models.Field[string]
	CategoryID models.Field[string]
	Team       models.Field[string]
	BirthDate  models.Field[int64]
}

func (s *ParticipantService) now() int64 {
	return s.clock.Now().UnixMilli()
}

func (s *ParticipantService) ensureRace(ctx context.Context, raceID string) error {
	if _, err := s.repo.GetRace(ctx, raceID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound(msgRaceNotFound)
		}
		return errors.Internal(err)
	}
	return nil
}

// categoryName resolves a category's display name within a race,
// falling back to the uncategorized label
func (s *ParticipantService) categoryName(ctx context.Context, raceID, categoryID string) (string, error) {
	if categoryID == "" {
		return models.UncategorizedName, nil
	}
	cat, err := s.repo.GetCategory(ctx, raceID, categoryID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return "", errors.Validation(msgCategoryNotFound)
		}
		return "", errors.Internal(err)
	}
	return cat.Name, nil
}

// ListParticipants returns a race's roster with issuance flags resolved
func (s *ParticipantService) ListParticipants(ctx context.Context, raceID string) ([]models.Participant, error) {
	if err := s.ensureRace(ctx, raceID); err != nil {
		return nil, err
	}

	participants, err := s.repo.ListParticipants(ctx, raceID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}
	issued, err := s.repo.IssuedParticipantIDs(ctx, ids)
	if err != nil {
		return nil, errors.Internal(err)
	}
	for i := range participants {
		participants[i].IsBibIssued = issued[participants[i].ID]
	}

	if participants == nil {
		participants = []models.Participant{}
	}
	return participants, nil
}

// CreateParticipant adds a roster entry. Bibs are unique within a race.
func (s *ParticipantService) CreateParticipant(ctx context.Context, raceID string, opts CreateParticipantOptions) (*models.Participant, error) {
	if opts.Bib <= 0 {
		return nil, errors.Validation(msgBibPositive)
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, errors.Validation(msgParticipantName)
	}

	if err := s.ensureRace(ctx, raceID); err != nil {
		return nil, err
	}

	var categoryID string
	if opts.CategoryID != nil && *opts.CategoryID != "" {
		if _, err := s.categoryName(ctx, raceID, *opts.CategoryID); err != nil {
			return nil, err
		}
		categoryID = *opts.CategoryID
	}

	taken, err := s.repo.BibExists(ctx, raceID, opts.Bib, "")
	if err != nil {
		return nil, errors.Internal(err)
	}
	if taken {
		return nil, errors.Conflict(msgDuplicateBib)
	}

	p := models.Participant{
		ID:         uuid.NewString(),
		Bib:        opts.Bib,
		Name:       name,
		CategoryID: categoryID,
		Team:       strings.TrimSpace(opts.Team),
		BirthDate:  opts.BirthDate,
	}

	if err := s.repo.CreateParticipant(ctx, raceID, p); err != nil {
		return nil, errors.Internal(err)
	}

	s.race.PublishState(ctx, raceID)
	return &p, nil
}

// UpdateParticipant applies a partial update and cascades the new bib,
// name and category onto the participant's tap events
func (s *ParticipantService) UpdateParticipant(ctx context.Context, raceID, participantID string, opts UpdateParticipantOptions) (*models.Participant, error) {
	p, err := s.repo.GetParticipant(ctx, raceID, participantID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound(msgParticipantNotFound)
		}
		return nil, errors.Internal(err)
	}

	if opts.Bib.IsSet() {
		bib := opts.Bib.Value()
		if bib <= 0 {
			return nil, errors.Validation(msgBibPositive)
		}
		if bib != p.Bib {
			taken, err := s.repo.BibExists(ctx, raceID, bib, participantID)
			if err != nil {
				return nil, errors.Internal(err)
			}
			if taken {
				return nil, errors.Conflict(msgDuplicateBib)
			}
		}
		p.Bib = bib
	}

	if opts.Name.IsSet() {
		name := strings.TrimSpace(opts.Name.Value())
		if name == "" {
			return nil, errors.Validation(msgParticipantName)
		}
		p.Name = name
	}

	switch {
	case opts.CategoryID.IsClear():
		p.CategoryID = ""
	case opts.CategoryID.IsSet():
		categoryID := opts.CategoryID.Value()
		if categoryID != "" {
			if _, err := s.categoryName(ctx, raceID, categoryID); err != nil {
				return nil, err
			}
		}
		p.CategoryID = categoryID
	}

	switch {
	case opts.Team.IsClear():
		p.Team = ""
	case opts.Team.IsSet():
		p.Team = strings.TrimSpace(opts.Team.Value())
	}

	switch {
	case opts.BirthDate.IsClear():
		p.BirthDate = nil
	case opts.BirthDate.IsSet():
		birthDate := opts.BirthDate.Value()
		p.BirthDate = &birthDate
	}

	categoryName, err := s.categoryName(ctx, raceID, p.CategoryID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateParticipant(ctx, raceID, *p, categoryName); err != nil {
		return nil, errors.Internal(err)
	}

	issued, err := s.repo.IsParticipantIssued(ctx, participantID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	p.IsBibIssued = issued

	s.race.PublishState(ctx, raceID)
	return p, nil
}

// DeleteParticipants removes roster entries and their tap events
func (s *ParticipantService) DeleteParticipants(ctx context.Context, raceID string, participantIDs []string) (int, error) {
	if len(participantIDs) == 0 {
		return 0, errors.Validation(msgNoParticipantsGiven)
	}

	if err := s.ensureRace(ctx, raceID); err != nil {
		return 0, err
	}

	deleted, err := s.repo.DeleteParticipants(ctx, raceID, participantIDs)
	if err != nil {
		return 0, errors.Internal(err)
	}

	if deleted > 0 {
		if err := s.repo.TouchRace(ctx, raceID, s.now()); err != nil {
			return 0, errors.Internal(err)
		}
	}

	s.log.Info("participants deleted", "raceId", raceID, "count", deleted)
	s.race.PublishState(ctx, raceID)
	return deleted, nil
}

// SetIssued toggles a participant's bib-issuance flag. Revoking a bib
// also erases the participant's recorded laps.
func (s *ParticipantService) SetIssued(ctx context.Context, raceID, participantID string, issued bool) (*models.Participant, error) {
	p, err := s.repo.GetParticipant(ctx, raceID, participantID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound(msgParticipantNotFound)
		}
		return nil, errors.Internal(err)
	}

	if err := s.repo.SetParticipantIssued(ctx, raceID, participantID, issued, s.now()); err != nil {
		return nil, errors.Internal(err)
	}
	p.IsBibIssued = issued

	s.race.PublishState(ctx, raceID)
	return p, nil
}
