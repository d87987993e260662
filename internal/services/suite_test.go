package services_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/abrezinsky/chronolap/internal/broadcast"
	"github.com/abrezinsky/chronolap/internal/errors"
	"github.com/abrezinsky/chronolap/internal/logger"
	"github.com/abrezinsky/chronolap/internal/models"
	"github.com/abrezinsky/chronolap/internal/services"
	"github.com/abrezinsky/chronolap/internal/testutil"
)

// suite wires every service over a fresh in-memory database
type suite struct {
	clock       *clockwork.FakeClock
	broadcaster *broadcast.Broadcaster
	race        *services.RaceService
	category    *services.CategoryService
	participant *services.ParticipantService
	tap         *services.TapService
}

func newSuite(t *testing.T) *suite {
	t.Helper()

	repo := testutil.NewTestRepository(t)
	log := logger.New()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	broadcaster := broadcast.New(log)

	race := services.NewRaceService(log, repo, broadcaster, clock)
	return &suite{
		clock:       clock,
		broadcaster: broadcaster,
		race:        race,
		category:    services.NewCategoryService(log, repo, race),
		participant: services.NewParticipantService(log, repo, race, clock),
		tap:         services.NewTapService(log, repo, race, broadcaster, clock),
	}
}

// createRace makes a race with sane defaults for tests that do not care
// about its metadata
func (s *suite) createRace(t *testing.T, name string, totalLaps, cooldown int) *models.Race {
	t.Helper()

	race, err := s.race.CreateRace(context.Background(), services.CreateRaceOptions{
		Name:               name,
		TotalLaps:          totalLaps,
		TapCooldownSeconds: cooldown,
	})
	if err != nil {
		t.Fatalf("failed to create race: %v", err)
	}
	return race
}

// addRider creates a participant and issues its bib
func (s *suite) addRider(t *testing.T, raceID string, bib int, name string, categoryID *string) *models.Participant {
	t.Helper()
	ctx := context.Background()

	p, err := s.participant.CreateParticipant(ctx, raceID, services.CreateParticipantOptions{
		Bib:        bib,
		Name:       name,
		CategoryID: categoryID,
	})
	if err != nil {
		t.Fatalf("failed to create participant: %v", err)
	}
	if _, err := s.participant.SetIssued(ctx, raceID, p.ID, true); err != nil {
		t.Fatalf("failed to issue bib: %v", err)
	}
	return p
}

// collectEvents subscribes to the broadcaster and returns the captured
// messages plus an unsubscribe func
func (s *suite) collectEvents() (*[]models.WSMessage, func()) {
	var captured []models.WSMessage
	unsubscribe := s.broadcaster.Subscribe(func(msg models.WSMessage) {
		captured = append(captured, msg)
	})
	return &captured, unsubscribe
}

func assertKind(t *testing.T, err error, kind errors.Kind) {
	t.Helper()

	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	var appErr *errors.Error
	if !stderrors.As(err, &appErr) {
		t.Fatalf("expected application error, got %T: %v", err, err)
	}
	if appErr.Kind != kind {
		t.Fatalf("expected error kind %d, got %d (%v)", kind, appErr.Kind, err)
	}
}
