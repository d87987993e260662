package services

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/abrezinsky/chronolap/internal/broadcast"
	"github.com/abrezinsky/chronolap/internal/errors"
	"github.com/abrezinsky/chronolap/internal/logger"
	"github.com/abrezinsky/chronolap/internal/models"
	"github.com/abrezinsky/chronolap/internal/repository"
)

// RaceServiceRepository defines the repository methods needed by RaceService
type RaceServiceRepository interface {
	repository.RaceRepository
	repository.CategoryRepository
	repository.ParticipantRepository
	repository.TapRepository
}

// RaceService handles race lifecycle and state projection
type RaceService struct {
	log         logger.Logger
	repo        RaceServiceRepository
	broadcaster *broadcast.Broadcaster
	clock       clockwork.Clock
}

// NewRaceService creates a new RaceService
func NewRaceService(log logger.Logger, repo RaceServiceRepository, broadcaster *broadcast.Broadcaster, clock clockwork.Clock) *RaceService {
	return &RaceService{
		log:         log,
		repo:        repo,
		broadcaster: broadcaster,
		clock:       clock,
	}
}

// CreateRaceOptions carries the inputs for race creation
type CreateRaceOptions struct {
	Name               string
	TotalLaps          int
	TapCooldownSeconds int
	Slug               *string
}

// UpdateRaceOptions carries a partial race update. Unset fields are left
// unchanged; Slug and StartedAt can additionally be cleared.
type UpdateRaceOptions struct {
	Name               models.Field[string]
	TotalLaps          models.Field[int]
	TapCooldownSeconds models.Field[int]
	Slug               models.Field[string]
	StartedAt          models.Field[int64]
}

func (s *RaceService) now() int64 {
	return s.clock.Now().UnixMilli()
}

// CreateRace creates a race. A slug is derived from the name when none
// is supplied; either way the stored slug is normalized and unique.
func (s *RaceService) CreateRace(ctx context.Context, opts CreateRaceOptions) (*models.Race, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, errors.Validation(msgRaceNameRequired)
	}
	if opts.TotalLaps <= 0 {
		return nil, errors.Validation(msgTotalLapsPositive)
	}
	if opts.TapCooldownSeconds < 0 {
		return nil, errors.Validation(msgCooldownNonNegative)
	}

	var slug string
	if opts.Slug != nil && strings.TrimSpace(*opts.Slug) != "" {
		normalized := normalizeSlug(*opts.Slug)
		if normalized == "" {
			return nil, errors.Validation(msgSlugEmpty)
		}
		unique, err := ensureUniqueSlug(ctx, s.repo, normalized, "")
		if err != nil {
			return nil, errors.Internal(err)
		}
		slug = unique
	} else {
		base := normalizeSlug(name)
		if base == "" {
			base = randomSlug()
		}
		unique, err := ensureUniqueSlug(ctx, s.repo, base, "")
		if err != nil {
			return nil, errors.Internal(err)
		}
		slug = unique
	}

	now := s.now()
	race := models.Race{
		ID:                 uuid.NewString(),
		Name:               name,
		Slug:               &slug,
		TotalLaps:          opts.TotalLaps,
		TapCooldownSeconds: opts.TapCooldownSeconds,
		CreatedAt:          now,
		UpdatedAt:          now,
		Categories:         []models.Category{},
		Participants:       []models.Participant{},
	}

	if err := s.repo.CreateRace(ctx, race); err != nil {
		return nil, errors.Internal(err)
	}

	s.log.Info("race created", "raceId", race.ID, "slug", slug)
	s.PublishState(ctx, race.ID)
	return &race, nil
}

// GetRace returns a race with issuance flags resolved on its roster
func (s *RaceService) GetRace(ctx context.Context, raceID string) (*models.Race, error) {
	race, err := s.repo.GetRace(ctx, raceID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound(msgRaceNotFound)
		}
		return nil, errors.Internal(err)
	}

	if err := s.resolveIssuance(ctx, race); err != nil {
		return nil, errors.Internal(err)
	}
	return race, nil
}

// GetRaceBySlug resolves a race through its slug
func (s *RaceService) GetRaceBySlug(ctx context.Context, slug string) (*models.Race, error) {
	raceID, err := s.raceIDBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.GetRace(ctx, raceID)
}

func (s *RaceService) raceIDBySlug(ctx context.Context, slug string) (string, error) {
	normalized := normalizeSlug(slug)
	if normalized == "" {
		return "", errors.NotFound(msgRaceNotFound)
	}
	raceID, err := s.repo.RaceIDBySlug(ctx, normalized)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return "", errors.NotFound(msgRaceNotFound)
		}
		return "", errors.Internal(err)
	}
	return raceID, nil
}

func (s *RaceService) resolveIssuance(ctx context.Context, race *models.Race) error {
	ids := make([]string, len(race.Participants))
	for i, p := range race.Participants {
		ids[i] = p.ID
	}
	issued, err := s.repo.IssuedParticipantIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range race.Participants {
		race.Participants[i].IsBibIssued = issued[race.Participants[i].ID]
	}
	return nil
}

// ListRaces returns public summaries for all races, newest first
func (s *RaceService) ListRaces(ctx context.Context) ([]models.RaceListing, error) {
	ids, err := s.repo.ListRaceIDs(ctx)
	if err != nil {
		return nil, errors.Internal(err)
	}

	listings := make([]models.RaceListing, 0, len(ids))
	for _, id := range ids {
		race, err := s.repo.GetRace(ctx, id)
		if err != nil {
			if stderrors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, errors.Internal(err)
		}
		listings = append(listings, models.RaceListing{
			ID:                 race.ID,
			Slug:               race.Slug,
			Name:               race.Name,
			TotalLaps:          race.TotalLaps,
			TapCooldownSeconds: race.TapCooldownSeconds,
			StartedAt:          race.StartedAt,
			CreatedAt:          race.CreatedAt,
			Participants:       len(race.Participants),
			Categories:         len(race.Categories),
		})
	}
	return listings, nil
}

// UpdateRace applies a partial update to race metadata
func (s *RaceService) UpdateRace(ctx context.Context, raceID string, opts UpdateRaceOptions) (*models.Race, error) {
	race, err := s.repo.GetRace(ctx, raceID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound(msgRaceNotFound)
		}
		return nil, errors.Internal(err)
	}

	if opts.Name.IsSet() {
		name := strings.TrimSpace(opts.Name.Value())
		if name == "" {
			return nil, errors.Validation(msgRaceNameRequired)
		}
		race.Name = name
	}

	if opts.TotalLaps.IsSet() {
		if opts.TotalLaps.Value() <= 0 {
			return nil, errors.Validation(msgTotalLapsPositive)
		}
		race.TotalLaps = opts.TotalLaps.Value()
	}

	if opts.TapCooldownSeconds.IsSet() {
		if opts.TapCooldownSeconds.Value() < 0 {
			return nil, errors.Validation(msgCooldownNonNegative)
		}
		race.TapCooldownSeconds = opts.TapCooldownSeconds.Value()
	}

	switch {
	case opts.Slug.IsClear():
		race.Slug = nil
	case opts.Slug.IsSet():
		raw := strings.TrimSpace(opts.Slug.Value())
		if raw == "" {
			race.Slug = nil
		} else {
			normalized := normalizeSlug(raw)
			if normalized == "" {
				return nil, errors.Validation(msgSlugEmpty)
			}
			unique, err := ensureUniqueSlug(ctx, s.repo, normalized, raceID)
			if err != nil {
				return nil, errors.Internal(err)
			}
			race.Slug = &unique
		}
	}

	switch {
	case opts.StartedAt.IsClear():
		race.StartedAt = nil
	case opts.StartedAt.IsSet():
		startedAt := opts.StartedAt.Value()
		race.StartedAt = &startedAt
	}

	race.UpdatedAt = s.now()
	if err := s.repo.UpdateRace(ctx, *race); err != nil {
		return nil, errors.Internal(err)
	}

	s.PublishState(ctx, raceID)
	return s.GetRace(ctx, raceID)
}

// StartRace stamps the race start time. Starting an already started
// race keeps the original start time.
func (s *RaceService) StartRace(ctx context.Context, raceID string) (*models.Race, error) {
	race, err := s.repo.GetRace(ctx, raceID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound(msgRaceNotFound)
		}
		return nil, errors.Internal(err)
	}

	if race.StartedAt == nil {
		now := s.now()
		race.StartedAt = &now
		race.UpdatedAt = now
		if err := s.repo.UpdateRace(ctx, *race); err != nil {
			return nil, errors.Internal(err)
		}
		s.log.Info("race started", "raceId", raceID)
		s.PublishState(ctx, raceID)
	}

	return s.GetRace(ctx, raceID)
}

// StopRace clears the race start time. Stopping a race that has not
// started is a no-op.
func (s *RaceService) StopRace(ctx context.Context, raceID string) (*models.Race, error) {
	race, err := s.repo.GetRace(ctx, raceID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound(msgRaceNotFound)
		}
		return nil, errors.Internal(err)
	}

	if race.StartedAt != nil {
		race.StartedAt = nil
		race.UpdatedAt = s.now()
		if err := s.repo.UpdateRace(ctx, *race); err != nil {
			return nil, errors.Internal(err)
		}
		s.log.Info("race stopped", "raceId", raceID)
		s.PublishState(ctx, raceID)
	}

	return s.GetRace(ctx, raceID)
}

// DeleteRace removes a race and everything it owns, then announces the
// now-empty state so connected viewers reset
func (s *RaceService) DeleteRace(ctx context.Context, raceID string) error {
	if err := s.repo.DeleteRace(ctx, raceID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound(msgRaceNotFound)
		}
		return errors.Internal(err)
	}

	s.log.Info("race deleted", "raceId", raceID)
	s.broadcaster.Publish(models.WSMessage{
		Type: models.EventRaceState,
		Payload: models.StateEvent{
			RaceID: raceID,
			State: models.StatePayload{
				Race:       nil,
				Categories: []models.Category{},
				Riders:     []models.Rider{},
				TapEvents:  []models.TapEvent{},
			},
		},
	})
	return nil
}

// GetState assembles the canonical snapshot for a race
func (s *RaceService) GetState(ctx context.Context, raceID string) (*models.StatePayload, error) {
	race, err := s.repo.GetRace(ctx, raceID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound(msgRaceNotFound)
		}
		return nil, errors.Internal(err)
	}

	if err := s.resolveIssuance(ctx, race); err != nil {
		return nil, errors.Internal(err)
	}

	taps, err := s.repo.ListTaps(ctx, raceID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	return projectState(race, taps), nil
}

// GetStateBySlug assembles the snapshot for the race behind a slug
func (s *RaceService) GetStateBySlug(ctx context.Context, slug string) (*models.StatePayload, error) {
	raceID, err := s.raceIDBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.GetState(ctx, raceID)
}

// projectState builds the snapshot from already loaded data. It has no
// side effects: the same value is served over HTTP and broadcast.
func projectState(race *models.Race, taps []models.TapEvent) *models.StatePayload {
	categoryNames := make(map[string]string, len(race.Categories))
	for _, cat := range race.Categories {
		categoryNames[cat.ID] = cat.Name
	}

	riders := make([]models.Rider, 0, len(race.Participants))
	for _, p := range race.Participants {
		if !p.IsBibIssued {
			continue
		}
		categoryName := models.UncategorizedName
		if p.CategoryID != "" {
			if name, ok := categoryNames[p.CategoryID]; ok {
				categoryName = name
			}
		}
		riders = append(riders, models.Rider{
			Bib:        p.Bib,
			Name:       p.Name,
			Category:   categoryName,
			CategoryID: p.CategoryID,
		})
	}

	categories := race.Categories
	if categories == nil {
		categories = []models.Category{}
	}
	if taps == nil {
		taps = []models.TapEvent{}
	}

	return &models.StatePayload{
		Race: &models.RaceSummary{
			ID:                 race.ID,
			Slug:               race.Slug,
			Name:               race.Name,
			TotalLaps:          race.TotalLaps,
			TapCooldownSeconds: race.TapCooldownSeconds,
			StartedAt:          race.StartedAt,
		},
		Categories: categories,
		Riders:     riders,
		TapEvents:  taps,
	}
}

// GetResults returns the ranked leaderboard and podium groups for a race
func (s *RaceService) GetResults(ctx context.Context, raceID string) ([]models.ResultRow, []models.PodiumGroup, error) {
	state, err := s.GetState(ctx, raceID)
	if err != nil {
		return nil, nil, err
	}

	rows := BuildResults(state.Riders, state.TapEvents)
	podium := BuildPodium(state.Categories, rows)
	return rows, podium, nil
}

// GetLapsRemaining returns the head-up display summary: the current
// leader by lap count and how many laps they have left
func (s *RaceService) GetLapsRemaining(ctx context.Context, raceID string) (*models.LapsRemaining, error) {
	state, err := s.GetState(ctx, raceID)
	if err != nil {
		return nil, err
	}

	return &models.LapsRemaining{
		Race:   state.Race,
		Leader: BuildLeader(state.Race.TotalLaps, state.Riders, state.TapEvents),
	}, nil
}

// PublishState broadcasts the current snapshot of a race. Projection
// failures are logged, never surfaced: the mutation already succeeded.
func (s *RaceService) PublishState(ctx context.Context, raceID string) {
	state, err := s.GetState(ctx, raceID)
	if err != nil {
		s.log.Error("state broadcast skipped", "raceId", raceID, "error", err)
		return
	}

	s.broadcaster.Publish(models.WSMessage{
		Type:    models.EventRaceState,
		Payload: models.StateEvent{RaceID: raceID, State: *state},
	})
}
