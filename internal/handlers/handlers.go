package handlers

import (
	"github.com/abrezinsky/chronolap/internal/auth"
	"github.com/abrezinsky/chronolap/internal/services"
	"github.com/abrezinsky/chronolap/internal/websocket"
)

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Race        services.RaceServicer
	Category    services.CategoryServicer
	Participant services.ParticipantServicer
	Tap         services.TapServicer
	Auth        *auth.Auth
	Hub         *websocket.Hub
	Log         HTTPLogger

	// baseURL is the externally reachable address used for share links
	baseURL string
}

// HTTPLogger is an interface for loggers that support HTTP logging control
type HTTPLogger interface {
	IsHTTPLoggingEnabled() bool
}

// New creates a new Handlers instance with all dependencies
func New(
	race services.RaceServicer,
	category services.CategoryServicer,
	participant services.ParticipantServicer,
	tap services.TapServicer,
	adminAuth *auth.Auth,
	hub *websocket.Hub,
	log HTTPLogger,
	baseURL string,
) *Handlers {
	return &Handlers{
		Race:        race,
		Category:    category,
		Participant: participant,
		Tap:         tap,
		Auth:        adminAuth,
		Hub:         hub,
		Log:         log,
		baseURL:     baseURL,
	}
}

// NoopHTTPLogger is a test logger that always returns false for HTTP logging
type NoopHTTPLogger struct{}

func (NoopHTTPLogger) IsHTTPLoggingEnabled() bool { return false }

// NewForTesting creates a Handlers instance with a fixed admin password
func NewForTesting(
	race services.RaceServicer,
	category services.CategoryServicer,
	participant services.ParticipantServicer,
	tap services.TapServicer,
) *Handlers {
	return &Handlers{
		Race:        race,
		Category:    category,
		Participant: participant,
		Tap:         tap,
		Auth:        auth.New("test-password"),
		Log:         NoopHTTPLogger{},
		baseURL:     "http://localhost:8080",
	}
}
