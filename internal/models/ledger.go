package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type Observation struct {
	ID          int            `json:"id"`
	ImageID     int            `json:"image_id"`
	UserID      int            `json:"user_id"`
	Username    string         `json:"username"`
	SpeciesID   int            `json:"species_id"`
	SpeciesName string         `json:"species"`
	Count       int            `json:"count"`
	Notes       string         `json:"notes"`
	Overlay     map[string]any `json:"overlay,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

func (o Observation) String() string {
	return fmt.Sprintf("%s=%d %s @ %s", o.SpeciesName, o.Count, o.Username, o.Timestamp.Format(time.RFC3339))
}

type Talk struct {
	ID        int       `json:"id"`
	ImageID   int       `json:"image_id"`
	UserID    int       `json:"user_id"`
	Username  string    `json:"username"`
	Notes     string    `json:"notes"`
	Timestamp time.Time `json:"timestamp"`
}

// ObservationFilter narrows observation listings. Zero fields match everything.
type ObservationFilter struct {
	UserID    int
	ImageID   int
	SpeciesID int
	Offset    int
	Limit     int
}

type TalkFilter struct {
	UserID  int
	ImageID int
}

// FormValue accepts a field submitted as either a JSON number or a string,
// keeping the raw text. Form posts always send strings; JSON clients may not.
type FormValue string

func (c *FormValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = FormValue(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	*c = FormValue(data)
	return nil
}

type ObservationRequest struct {
	Species FormValue      `json:"species" form:"species"`
	Count   FormValue      `json:"count" form:"count"`
	Notes   string         `json:"notes" form:"notes"`
	Overlay map[string]any `json:"overlay"`
}

type TalkRequest struct {
	Notes string `json:"notes" form:"notes"`
}

// LedgerEvent is published after every successful change to the ledger.
type LedgerEvent struct {
	Event       string       `json:"event"`
	Observation *Observation `json:"observation,omitempty"`
	Talk        *Talk        `json:"talk,omitempty"`
	Timestamp   int64        `json:"timestamp"`
}

const (
	EventObservationRecorded = "observation.recorded"
	EventObservationDeleted  = "observation.deleted"
	EventTalkAdded           = "talk.added"
	EventTalkDeleted         = "talk.deleted"
)
