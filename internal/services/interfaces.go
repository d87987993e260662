package services

import (
	"context"
	"io"

	"github.com/abrezinsky/chronolap/internal/models"
)

// RaceServicer defines race lifecycle and projection operations
type RaceServicer interface {
	CreateRace(ctx context.Context, opts CreateRaceOptions) (*models.Race, error)
	GetRace(ctx context.Context, raceID string) (*models.Race, error)
	GetRaceBySlug(ctx context.Context, slug string) (*models.Race, error)
	ListRaces(ctx context.Context) ([]models.RaceListing, error)
	UpdateRace(ctx context.Context, raceID string, opts UpdateRaceOptions) (*models.Race, error)
	StartRace(ctx context.Context, raceID string) (*models.Race, error)
	StopRace(ctx context.Context, raceID string) (*models.Race, error)
	DeleteRace(ctx context.Context, raceID string) error
	GetState(ctx context.Context, raceID string) (*models.StatePayload, error)
	GetStateBySlug(ctx context.Context, slug string) (*models.StatePayload, error)
	GetResults(ctx context.Context, raceID string) ([]models.ResultRow, []models.PodiumGroup, error)
	GetLapsRemaining(ctx context.Context, raceID string) (*models.LapsRemaining, error)
	PublishState(ctx context.Context, raceID string)
}

// CategoryServicer defines category operations
type CategoryServicer interface {
	CreateCategory(ctx context.Context, raceID string, opts CreateCategoryOptions) (*models.Category, error)
	UpdateCategory(ctx context.Context, raceID, categoryID string, opts UpdateCategoryOptions) (*models.Category, error)
	DeleteCategory(ctx context.Context, raceID, categoryID string) error
}

// ParticipantServicer defines roster operations
type ParticipantServicer interface {
	ListParticipants(ctx context.Context, raceID string) ([]models.Participant, error)
	CreateParticipant(ctx context.Context, raceID string, opts CreateParticipantOptions) (*models.Participant, error)
	UpdateParticipant(ctx context.Context, raceID, participantID string, opts UpdateParticipantOptions) (*models.Participant, error)
	DeleteParticipants(ctx context.Context, raceID string, participantIDs []string) (int, error)
	SetIssued(ctx context.Context, raceID, participantID string, issued bool) (*models.Participant, error)
	ImportParticipantsCSV(ctx context.Context, raceID string, file io.Reader) (*ImportResult, error)
}

// TapServicer defines tap admission and cancellation
type TapServicer interface {
	RecordTap(ctx context.Context, raceID string, bib int, source models.TapSource, confirmed bool) (*models.TapEvent, error)
	CancelTap(ctx context.Context, raceID, eventID string) error
}

// Compile-time interface checks
var (
	_ RaceServicer        = (*RaceService)(nil)
	_ CategoryServicer    = (*CategoryService)(nil)
	_ ParticipantServicer = (*ParticipantService)(nil)
	_ TapServicer         = (*TapService)(nil)
)
