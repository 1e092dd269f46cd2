package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Property is the result of asking a species whether it has a named attribute.
type Property int8

const (
	PropertyUnknown Property = iota
	PropertyFalse
	PropertyTrue
)

func (p Property) String() string {
	switch p {
	case PropertyTrue:
		return "true"
	case PropertyFalse:
		return "false"
	default:
		return "unknown"
	}
}

func (p Property) MarshalJSON() ([]byte, error) {
	if p == PropertyUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(p == PropertyTrue)
}

type Species struct {
	ID         int             `json:"id"`
	Name       string          `json:"name"`
	Slug       string          `json:"slug"`
	RefURL     string          `json:"ref_url"`
	Attributes map[string]bool `json:"attributes"`
}

// HasProperty looks up an attribute. Absent keys are PropertyUnknown, not false.
func (s Species) HasProperty(name string) Property {
	v, ok := s.Attributes[name]
	if !ok {
		return PropertyUnknown
	}
	if v {
		return PropertyTrue
	}
	return PropertyFalse
}

type Image struct {
	ID        int       `json:"id"`
	BaseURL   string    `json:"base_url"`
	FilePath  string    `json:"filepath"`
	Site      string    `json:"site"`
	Timestamp time.Time `json:"timestamp"`
}

// URL joins the base URL and the relative file path with a single slash
func (i Image) URL() string {
	if i.BaseURL == "" {
		return i.FilePath
	}
	return strings.TrimRight(i.BaseURL, "/") + "/" + strings.TrimLeft(i.FilePath, "/")
}

func (i Image) MarshalJSON() ([]byte, error) {
	type image Image
	return json.Marshal(struct {
		image
		URL string `json:"url"`
	}{image(i), i.URL()})
}

// SpeciesRequest creates or edits a species. On edit, nil fields and an empty
// name keep the stored value.
type SpeciesRequest struct {
	Name       string          `json:"name"`
	RefURL     *string         `json:"ref_url"`
	Attributes map[string]bool `json:"attributes"`
}
