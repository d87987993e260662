package repository

import (
	"context"

	"github.com/abrezinsky/chronolap/internal/models"
)

// RaceRepository defines race data operations
type RaceRepository interface {
	CreateRace(ctx context.Context, race models.Race) error
	GetRace(ctx context.Context, raceID string) (*models.Race, error)
	RaceIDBySlug(ctx context.Context, slug string) (string, error)
	ListRaceIDs(ctx context.Context) ([]string, error)
	UpdateRace(ctx context.Context, race models.Race) error
	TouchRace(ctx context.Context, raceID string, updatedAt int64) error
	DeleteRace(ctx context.Context, raceID string) error
	SlugExists(ctx context.Context, slug, ignoreRaceID string) (bool, error)
}

// CategoryRepository defines category data operations
type CategoryRepository interface {
	ListCategories(ctx context.Context, raceID string) ([]models.Category, error)
	GetCategory(ctx context.Context, raceID, categoryID string) (*models.Category, error)
	MaxCategoryOrder(ctx context.Context, raceID string) (int, error)
	CreateCategory(ctx context.Context, raceID string, cat models.Category) error
	UpdateCategory(ctx context.Context, raceID string, cat models.Category) error
	DeleteCategory(ctx context.Context, raceID, categoryID string) error
}

// ParticipantRepository defines participant data operations
type ParticipantRepository interface {
	ListParticipants(ctx context.Context, raceID string) ([]models.Participant, error)
	GetParticipant(ctx context.Context, raceID, participantID string) (*models.Participant, error)
	GetParticipantByBib(ctx context.Context, raceID string, bib int) (*models.Participant, error)
	BibExists(ctx context.Context, raceID string, bib int, ignoreID string) (bool, error)
	CreateParticipant(ctx context.Context, raceID string, p models.Participant) error
	UpdateParticipant(ctx context.Context, raceID string, p models.Participant, categoryName string) error
	DeleteParticipants(ctx context.Context, raceID string, participantIDs []string) (int, error)
	IssuedParticipantIDs(ctx context.Context, participantIDs []string) (map[string]bool, error)
	IsParticipantIssued(ctx context.Context, participantID string) (bool, error)
	SetParticipantIssued(ctx context.Context, raceID, participantID string, issued bool, now int64) error
	ImportParticipants(ctx context.Context, raceID string, entries []ImportEntry, now int64) (*ImportOutcome, error)
}

// TapRepository defines tap-event data operations: the append/remove ledger
// plus the denormalized-field cascades
type TapRepository interface {
	InsertTap(ctx context.Context, event models.TapEvent) error
	GetTap(ctx context.Context, eventID string) (*models.TapEvent, error)
	DeleteTap(ctx context.Context, raceID, eventID string) error
	ListTaps(ctx context.Context, raceID string) ([]models.TapEvent, error)
	LatestTapForBib(ctx context.Context, raceID string, bib int) (int64, error)
}

// FullRepository combines all repository interfaces.
// Use this when a service needs access to multiple domains.
type FullRepository interface {
	RaceRepository
	CategoryRepository
	ParticipantRepository
	TapRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
