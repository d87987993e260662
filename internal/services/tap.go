package services

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/abrezinsky/chronolap/internal/broadcast"
	"github.com/abrezinsky/chronolap/internal/errors"
	"github.com/abrezinsky/chronolap/internal/logger"
	"github.com/abrezinsky/chronolap/internal/models"
	"github.com/abrezinsky/chronolap/internal/repository"
)

// TapServiceRepository defines the repository methods needed by TapService
type TapServiceRepository interface {
	repository.RaceRepository
	repository.ParticipantRepository
	repository.TapRepository
}

// TapService is the gate in front of the tap ledger. It validates rider
// existence and bib issuance, applies the per-race cooldown, and fans the
// resulting events out.
type TapService struct {
	log         logger.Logger
	repo        TapServiceRepository
	race        RaceServicer
	broadcaster *broadcast.Broadcaster
	clock       clockwork.Clock

	mu        sync.Mutex
	raceLocks map[string]*sync.Mutex
	// attempts remembers the last submission per race/bib, recorded or
	// not, so rapid double-submissions hit the cooldown even before the
	// first tap lands.
	attempts map[string]int64
}

// NewTapService creates a new TapService
func NewTapService(log logger.Logger, repo TapServiceRepository, race RaceServicer, broadcaster *broadcast.Broadcaster, clock clockwork.Clock) *TapService {
	return &TapService{
		log:         log,
		repo:        repo,
		race:        race,
		broadcaster: broadcaster,
		clock:       clock,
		raceLocks:   make(map[string]*sync.Mutex),
		attempts:    make(map[string]int64),
	}
}

// raceLock returns the mutex serializing mutations for one race.
// Different races tap independently.
func (s *TapService) raceLock(raceID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.raceLocks[raceID]
	if !ok {
		lock = &sync.Mutex{}
		s.raceLocks[raceID] = lock
	}
	return lock
}

func attemptKey(raceID string, bib int) string {
	return raceID + "/" + strconv.Itoa(bib)
}

// RecordTap validates and records a checkpoint crossing for a bib.
// When the race has a cooldown and the bib tapped recently, the call
// returns a TapConfirmationError instead of recording; resubmitting
// with confirmed=true records unconditionally.
func (s *TapService) RecordTap(ctx context.Context, raceID string, bib int, source models.TapSource, confirmed bool) (*models.TapEvent, error) {
	if bib <= 0 {
		return nil, errors.Validation(msgInvalidBib)
	}
	if source != models.SourceSystem {
		source = models.SourceManual
	}

	lock := s.raceLock(raceID)
	lock.Lock()
	defer lock.Unlock()

	race, err := s.repo.GetRace(ctx, raceID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound(msgRaceNotFound)
		}
		return nil, errors.Internal(err)
	}

	participant, err := s.repo.GetParticipantByBib(ctx, raceID, bib)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound(msgRiderNotFound)
		}
		return nil, errors.Internal(err)
	}

	issued, err := s.repo.IsParticipantIssued(ctx, participant.ID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if !issued {
		return nil, errors.Conflict(msgBibNotIssued)
	}

	now := s.clock.Now().UnixMilli()

	if race.TapCooldownSeconds > 0 && !confirmed {
		lastRecorded, err := s.repo.LatestTapForBib(ctx, raceID, bib)
		if err != nil {
			return nil, errors.Internal(err)
		}
		last := lastRecorded
		if attempt := s.lastAttempt(raceID, bib); attempt > last {
			last = attempt
		}

		cooldownMs := int64(race.TapCooldownSeconds) * 1000
		if last > 0 && now-last < cooldownMs {
			s.rememberAttempt(raceID, bib, now)
			remainingMs := cooldownMs - (now - last)
			return nil, &TapConfirmationError{
				Bib:              bib,
				RemainingSeconds: int((remainingMs + 999) / 1000),
			}
		}
	}

	s.rememberAttempt(raceID, bib, now)

	categoryName := models.UncategorizedName
	if participant.CategoryID != "" {
		for _, cat := range race.Categories {
			if cat.ID == participant.CategoryID {
				categoryName = cat.Name
				break
			}
		}
	}

	event := models.TapEvent{
		ID:            uuid.NewString(),
		RaceID:        raceID,
		ParticipantID: participant.ID,
		Bib:           participant.Bib,
		Name:          participant.Name,
		Category:      categoryName,
		CategoryID:    participant.CategoryID,
		Timestamp:     now,
		Source:        source,
	}

	if err := s.repo.InsertTap(ctx, event); err != nil {
		return nil, errors.Internal(err)
	}
	if err := s.repo.TouchRace(ctx, raceID, now); err != nil {
		return nil, errors.Internal(err)
	}

	s.log.Info("tap recorded", "raceId", raceID, "bib", bib, "source", string(source))
	s.broadcaster.Publish(models.WSMessage{
		Type:    models.EventTapRecorded,
		Payload: models.TapRecordedEvent{RaceID: raceID, Event: event},
	})
	s.race.PublishState(ctx, raceID)
	return &event, nil
}

// CancelTap removes a tap event from the ledger. The event must belong
// to the given race.
func (s *TapService) CancelTap(ctx context.Context, raceID, eventID string) error {
	lock := s.raceLock(raceID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.DeleteTap(ctx, raceID, eventID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return errors.NotFound(msgTapNotFound)
		}
		return errors.Internal(err)
	}
	if err := s.repo.TouchRace(ctx, raceID, s.clock.Now().UnixMilli()); err != nil {
		return errors.Internal(err)
	}

	s.log.Info("tap cancelled", "raceId", raceID, "eventId", eventID)
	s.broadcaster.Publish(models.WSMessage{
		Type:    models.EventTapCancelled,
		Payload: models.TapCancelledEvent{RaceID: raceID, EventID: eventID},
	})
	s.race.PublishState(ctx, raceID)
	return nil
}

func (s *TapService) lastAttempt(raceID string, bib int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[attemptKey(raceID, bib)]
}

func (s *TapService) rememberAttempt(raceID string, bib int, ts int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attemptKey(raceID, bib)] = ts
}
