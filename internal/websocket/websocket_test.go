package websocket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abrezinsky/chronolap/internal/broadcast"
	"github.com/abrezinsky/chronolap/internal/logger"
	"github.com/abrezinsky/chronolap/internal/models"
	"github.com/abrezinsky/chronolap/internal/services"
)

// mockRaceService implements services.RaceServicer for hub tests. Only
// GetState matters here; the rest are stubs.
type mockRaceService struct {
	states map[string]*models.StatePayload
}

func newMockRaceService() *mockRaceService {
	return &mockRaceService{states: make(map[string]*models.StatePayload)}
}

func (m *mockRaceService) addRace(raceID, name string) {
	m.states[raceID] = &models.StatePayload{
		Race:       &models.RaceSummary{ID: raceID, Name: name, TotalLaps: 5},
		Categories: []models.Category{},
		Riders:     []models.Rider{},
		TapEvents:  []models.TapEvent{},
	}
}

func (m *mockRaceService) GetState(ctx context.Context, raceID string) (*models.StatePayload, error) {
	state, ok := m.states[raceID]
	if !ok {
		return nil, io.EOF
	}
	return state, nil
}

func (m *mockRaceService) CreateRace(ctx context.Context, opts services.CreateRaceOptions) (*models.Race, error) {
	return nil, nil
}
func (m *mockRaceService) GetRace(ctx context.Context, raceID string) (*models.Race, error) {
	return nil, nil
}
func (m *mockRaceService) GetRaceBySlug(ctx context.Context, slug string) (*models.Race, error) {
	return nil, nil
}
func (m *mockRaceService) ListRaces(ctx context.Context) ([]models.RaceListing, error) {
	return nil, nil
}
func (m *mockRaceService) UpdateRace(ctx context.Context, raceID string, opts services.UpdateRaceOptions) (*models.Race, error) {
	return nil, nil
}
func (m *mockRaceService) StartRace(ctx context.Context, raceID string) (*models.Race, error) {
	return nil, nil
}
func (m *mockRaceService) StopRace(ctx context.Context, raceID string) (*models.Race, error) {
	return nil, nil
}
func (m *mockRaceService) DeleteRace(ctx context.Context, raceID string) error { return nil }
func (m *mockRaceService) GetStateBySlug(ctx context.Context, slug string) (*models.StatePayload, error) {
	return nil, nil
}
func (m *mockRaceService) GetResults(ctx context.Context, raceID string) ([]models.ResultRow, []models.PodiumGroup, error) {
	return nil, nil, nil
}
func (m *mockRaceService) GetLapsRemaining(ctx context.Context, raceID string) (*models.LapsRemaining, error) {
	return nil, nil
}
func (m *mockRaceService) PublishState(ctx context.Context, raceID string) {}

func newTestHub(t *testing.T) (*Hub, *mockRaceService, *broadcast.Broadcaster) {
	t.Helper()

	log := logger.New()
	race := newMockRaceService()
	broadcaster := broadcast.New(log)
	hub := New(log, race, broadcaster)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub, race, broadcaster
}

func TestNew_CreatesHubWithDependencies(t *testing.T) {
	log := logger.New()
	race := newMockRaceService()
	broadcaster := broadcast.New(log)

	hub := New(log, race, broadcaster)
	if hub == nil {
		t.Fatal("expected hub to be created")
	}
	if hub.clients == nil {
		t.Error("expected clients map to be initialized")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("expected channels to be initialized")
	}
}

func TestEventRaceID(t *testing.T) {
	tests := []struct {
		name string
		msg  models.WSMessage
		want string
	}{
		{"state event", models.WSMessage{Type: models.EventRaceState, Payload: models.StateEvent{RaceID: "r1"}}, "r1"},
		{"tap recorded", models.WSMessage{Type: models.EventTapRecorded, Payload: models.TapRecordedEvent{RaceID: "r2"}}, "r2"},
		{"tap cancelled", models.WSMessage{Type: models.EventTapCancelled, Payload: models.TapCancelledEvent{RaceID: "r3"}}, "r3"},
		{"unknown payload", models.WSMessage{Type: "other", Payload: "raw"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventRaceID(tt.msg); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestStartStop_DetachesFromBroadcaster(t *testing.T) {
	log := logger.New()
	race := newMockRaceService()
	broadcaster := broadcast.New(log)
	hub := New(log, race, broadcaster)

	hub.Start()
	if broadcaster.ListenerCount() != 1 {
		t.Fatalf("expected 1 listener after Start, got %d", broadcaster.ListenerCount())
	}

	hub.Stop()
	if broadcaster.ListenerCount() != 0 {
		t.Fatalf("expected 0 listeners after Stop, got %d", broadcaster.ListenerCount())
	}
}

func TestPublish_DoesNotBlockWithoutClients(t *testing.T) {
	_, _, broadcaster := newTestHub(t)

	done := make(chan bool)
	go func() {
		for i := 0; i < 100; i++ {
			broadcaster.Publish(models.WSMessage{
				Type:    models.EventTapRecorded,
				Payload: models.TapRecordedEvent{RaceID: "r1"},
			})
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("publishing blocked with no connected clients")
	}
}

func TestServeWs_UnknownRaceRejectedBeforeUpgrade(t *testing.T) {
	hub, _, _ := newTestHub(t)

	req := httptest.NewRequest(http.MethodGet, "/ws/races/missing", nil)
	rec := httptest.NewRecorder()
	hub.ServeWs(rec, req, "missing")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown race, got %d", rec.Code)
	}
}

// wsEnvelope mirrors the wire shape of a push message
type wsEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dialTestHub(t *testing.T, hub *Hub, raceID string) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWs(w, r, raceID)
	}))

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		server.Close()
		t.Fatalf("failed to dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var env wsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	return env
}

func TestServeWs_SendsInitialSnapshot(t *testing.T) {
	hub, race, _ := newTestHub(t)
	race.addRace("r1", "Гонка")

	conn, cleanup := dialTestHub(t, hub, "r1")
	defer cleanup()

	env := readEnvelope(t, conn)
	if env.Type != models.EventRaceState {
		t.Fatalf("expected %s as the first message, got %s", models.EventRaceState, env.Type)
	}
	var event struct {
		RaceID string `json:"raceId"`
		State  struct {
			Race struct {
				Name string `json:"name"`
			} `json:"race"`
		} `json:"state"`
	}
	if err := json.Unmarshal(env.Payload, &event); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if event.RaceID != "r1" || event.State.Race.Name != "Гонка" {
		t.Errorf("expected the r1 snapshot, got %+v", event)
	}
}

func TestServeWs_FiltersOtherRaces(t *testing.T) {
	hub, race, broadcaster := newTestHub(t)
	race.addRace("r1", "Первая")
	race.addRace("r2", "Вторая")

	conn, cleanup := dialTestHub(t, hub, "r1")
	defer cleanup()

	// Skip the initial snapshot.
	if env := readEnvelope(t, conn); env.Type != models.EventRaceState {
		t.Fatalf("expected the initial snapshot, got %s", env.Type)
	}

	// An event for another race must not reach this viewer; the r1
	// event published after it must be the next frame.
	broadcaster.Publish(models.WSMessage{
		Type:    models.EventTapRecorded,
		Payload: models.TapRecordedEvent{RaceID: "r2", Event: models.TapEvent{ID: "foreign"}},
	})
	broadcaster.Publish(models.WSMessage{
		Type:    models.EventTapRecorded,
		Payload: models.TapRecordedEvent{RaceID: "r1", Event: models.TapEvent{ID: "own"}},
	})

	env := readEnvelope(t, conn)
	if env.Type != models.EventTapRecorded {
		t.Fatalf("expected a tap event, got %s", env.Type)
	}
	var event struct {
		RaceID string `json:"raceId"`
		Event  struct {
			ID string `json:"id"`
		} `json:"event"`
	}
	if err := json.Unmarshal(env.Payload, &event); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if event.RaceID != "r1" || event.Event.ID != "own" {
		t.Errorf("expected only the r1 event, got %+v", event)
	}
}
