package models

// UncategorizedName is the display name used for riders and tap events
// whose category is missing or was deleted.
const UncategorizedName = "Без категории"

// TapSource identifies how a tap event was produced
type TapSource string

const (
	SourceManual TapSource = "manual"
	SourceSystem TapSource = "system"
)

// Race is a timed multi-lap race together with its categories and roster.
// All timestamps are epoch milliseconds; StartedAt is nil until the race
// has been started.
type Race struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Slug               *string       `json:"slug"`
	TotalLaps          int           `json:"totalLaps"`
	TapCooldownSeconds int           `json:"tapCooldownSeconds"`
	CreatedAt          int64         `json:"createdAt"`
	UpdatedAt          int64         `json:"updatedAt"`
	StartedAt          *int64        `json:"startedAt"`
	Categories         []Category    `json:"categories"`
	Participants       []Participant `json:"participants"`
}

// Category groups riders for podium display. Order defines display and
// podium precedence within a race.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
}

// Participant is a roster entry. A participant becomes visible to the
// timing views only once their bib has been issued.
type Participant struct {
	ID          string `json:"id"`
	Bib         int    `json:"bib"`
	Name        string `json:"name"`
	CategoryID  string `json:"categoryId,omitempty"`
	Team        string `json:"team,omitempty"`
	BirthDate   *int64 `json:"birthDate"`
	IsBibIssued bool   `json:"isBibIssued"`
}

// Rider is the timing-facing view of an issued participant
type Rider struct {
	Bib        int    `json:"bib"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	CategoryID string `json:"categoryId,omitempty"`
}

// TapEvent is one recorded checkpoint crossing. Bib, Name, CategoryID and
// Category are denormalized from the participant at tap time; category and
// participant edits cascade into them.
type TapEvent struct {
	ID            string    `json:"id"`
	RaceID        string    `json:"-"`
	ParticipantID string    `json:"-"`
	Bib           int       `json:"bib"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	CategoryID    string    `json:"categoryId,omitempty"`
	Timestamp     int64     `json:"timestamp"`
	Source        TapSource `json:"source"`
}

// RaceSummary is the race header embedded in state payloads
type RaceSummary struct {
	ID                 string  `json:"id"`
	Slug               *string `json:"slug"`
	Name               string  `json:"name"`
	TotalLaps          int     `json:"totalLaps"`
	TapCooldownSeconds int     `json:"tapCooldownSeconds"`
	StartedAt          *int64  `json:"startedAt"`
}

// StatePayload is the canonical race snapshot. The same value is served
// over HTTP and broadcast over the push channel; Race is nil only after
// the race has been deleted.
type StatePayload struct {
	Race       *RaceSummary `json:"race"`
	Categories []Category   `json:"categories"`
	Riders     []Rider      `json:"riders"`
	TapEvents  []TapEvent   `json:"tapEvents"`
}

// ResultRow is a ranked leaderboard entry produced by the ranking engine
type ResultRow struct {
	Position int    `json:"position"`
	Bib      int    `json:"bib"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Laps     int    `json:"laps"`
	LastTap  *int64 `json:"lastTap"`
	Gap      string `json:"gap"`
}

// PodiumGroup is the top of the ranking within a single category
type PodiumGroup struct {
	Category string      `json:"category"`
	Riders   []ResultRow `json:"riders"`
}

// Leader summarizes the rider with the most laps for the head-up display
type Leader struct {
	Bib           int    `json:"bib"`
	Name          string `json:"name"`
	LapsCompleted int    `json:"lapsCompleted"`
	LapsRemaining int    `json:"lapsRemaining"`
}

// LapsRemaining is the response of the laps-remaining projection. Leader
// is nil while the race has no riders.
type LapsRemaining struct {
	Race   *RaceSummary `json:"race"`
	Leader *Leader      `json:"leader,omitempty"`
}

// RaceListing is a public race summary with roster counts
type RaceListing struct {
	ID                 string  `json:"id"`
	Slug               *string `json:"slug"`
	Name               string  `json:"name"`
	TotalLaps          int     `json:"totalLaps"`
	TapCooldownSeconds int     `json:"tapCooldownSeconds"`
	StartedAt          *int64  `json:"startedAt"`
	CreatedAt          int64   `json:"createdAt"`
	Participants       int     `json:"participants"`
	Categories         int     `json:"categories"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Push channel message types
const (
	EventRaceState    = "race:state"
	EventTapRecorded  = "race:tap-recorded"
	EventTapCancelled = "race:tap-cancelled"
)

// StateEvent carries a full race snapshot after any mutation
type StateEvent struct {
	RaceID string       `json:"raceId"`
	State  StatePayload `json:"state"`
}

// TapRecordedEvent carries a freshly recorded tap
type TapRecordedEvent struct {
	RaceID string   `json:"raceId"`
	Event  TapEvent `json:"event"`
}

// TapCancelledEvent announces a tap removal
type TapCancelledEvent struct {
	RaceID  string `json:"raceId"`
	EventID string `json:"eventId"`
}
