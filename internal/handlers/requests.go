package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/abrezinsky/chronolap/internal/models"
)

// decodeField fills a tri-state field from a present JSON value:
// null clears, anything else sets
func decodeField[T any](raw json.RawMessage, out *models.Field[T]) error {
	if string(raw) == "null" {
		*out = models.Clear[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*out = models.Set(v)
	return nil
}

// decodeTimestampField accepts epoch milliseconds or an RFC 3339 string
func decodeTimestampField(raw json.RawMessage, out *models.Field[int64]) error {
	if string(raw) == "null" {
		*out = models.Clear[int64]()
		return nil
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		*out = models.Set(ms)
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("timestamp must be a number or a string")
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q", s)
	}
	*out = models.Set(parsed.UnixMilli())
	return nil
}

// LoginRequest is the request body for admin login
type LoginRequest struct {
	Password string `json:"password"`
}

// CreateRaceRequest is the request body for race creation
type CreateRaceRequest struct {
	Name               string  `json:"name"`
	TotalLaps          int     `json:"totalLaps"`
	TapCooldownSeconds int     `json:"tapCooldownSeconds"`
	Slug               *string `json:"slug"`
}

// UpdateRaceRequest is a partial race update. Absent keys leave the
// field unchanged; explicit null clears slug or startedAt.
type UpdateRaceRequest struct {
	Name               models.Field[string]
	TotalLaps          models.Field[int]
	TapCooldownSeconds models.Field[int]
	Slug               models.Field[string]
	StartedAt          models.Field[int64]
}

func (req *UpdateRaceRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for key, value := range raw {
		var err error
		switch key {
		case "name":
			err = decodeField(value, &req.Name)
		case "totalLaps":
			err = decodeField(value, &req.TotalLaps)
		case "tapCooldownSeconds":
			err = decodeField(value, &req.TapCooldownSeconds)
		case "slug":
			err = decodeField(value, &req.Slug)
		case "startedAt":
			err = decodeTimestampField(value, &req.StartedAt)
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	return nil
}

// CreateCategoryRequest is the request body for category creation
type CreateCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       *int   `json:"order"`
}

// UpdateCategoryRequest is a partial category update
type UpdateCategoryRequest struct {
	Name        models.Field[string]
	Description models.Field[string]
	Order       models.Field[int]
}

func (req *UpdateCategoryRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for key, value := range raw {
		var err error
		switch key {
		case "name":
			err = decodeField(value, &req.Name)
		case "description":
			err = decodeField(value, &req.Description)
		case "order":
			err = decodeField(value, &req.Order)
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	return nil
}

// CreateParticipantRequest is the request body for roster entry creation
type CreateParticipantRequest struct {
	Bib        int     `json:"bib"`
	Name       string  `json:"name"`
	CategoryID *string `json:"categoryId"`
	Team       string  `json:"team"`
	BirthDate  *int64  `json:"birthDate"`
}

// UpdateParticipantRequest is a partial roster entry update
type UpdateParticipantRequest struct {
	Bib        models.Field[int]
	Name       models.Field[string]
	CategoryID models.Field[string]
	Team       models.Field[string]
	BirthDate  models.Field[int64]
}

func (req *UpdateParticipantRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for key, value := range raw {
		var err error
		switch key {
		case "bib":
			err = decodeField(value, &req.Bib)
		case "name":
			err = decodeField(value, &req.Name)
		case "categoryId":
			err = decodeField(value, &req.CategoryID)
		case "team":
			err = decodeField(value, &req.Team)
		case "birthDate":
			err = decodeTimestampField(value, &req.BirthDate)
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	return nil
}

// DeleteParticipantsRequest is the request body for bulk roster deletion
type DeleteParticipantsRequest struct {
	IDs []string `json:"ids"`
}

// SetIssuedRequest toggles a participant's bib issuance
type SetIssuedRequest struct {
	Issued bool `json:"issued"`
}

// TapRequest is the request body for recording a tap
type TapRequest struct {
	Bib       int    `json:"bib"`
	Source    string `json:"source"`
	Confirmed bool   `json:"confirmed"`
}
