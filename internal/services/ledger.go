package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jefmud/species-ident/internal/models"
	"github.com/jefmud/species-ident/internal/utils"
)

// ParseCount coerces a submitted count to a non-negative integer that fits the
// ledger's 32-bit count column. Anything unparseable, negative or out of range
// becomes 0.
func ParseCount(raw string) int {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if err != nil || n < 0 {
		return 0
	}
	return int(n)
}

// LedgerService records and removes observations and talk notes.
type LedgerService struct {
	ledger  LedgerStore
	catalog *CatalogService
	sinks   []EventSink
	now     func() time.Time
}

func NewLedgerService(ledger LedgerStore, catalog *CatalogService, sinks ...EventSink) *LedgerService {
	return &LedgerService{ledger: ledger, catalog: catalog, sinks: sinks, now: time.Now}
}

// AddSink registers another receiver of ledger events.
func (s *LedgerService) AddSink(sink EventSink) {
	s.sinks = append(s.sinks, sink)
}

func (s *LedgerService) publish(ctx context.Context, ev models.LedgerEvent) {
	ev.Timestamp = s.now().Unix()
	for _, sink := range s.sinks {
		utils.LogError(sink.Publish(ctx, ev), "publish "+ev.Event)
	}
}

// Record appends an observation of speciesRef (id or name) on an image.
func (s *LedgerService) Record(ctx context.Context, actor models.Actor, imageID int, req models.ObservationRequest) (models.Observation, error) {
	img, err := s.catalog.GetImage(ctx, imageID)
	if err != nil {
		return models.Observation{}, err
	}

	sp, err := s.catalog.ResolveSpecies(ctx, string(req.Species))
	if err != nil {
		return models.Observation{}, err
	}

	obs := models.Observation{
		ImageID:     img.ID,
		UserID:      actor.UserID,
		Username:    actor.Username,
		SpeciesID:   sp.ID,
		SpeciesName: sp.Name,
		Count:       ParseCount(string(req.Count)),
		Notes:       req.Notes,
		Overlay:     req.Overlay,
		Timestamp:   s.now(),
	}
	if err := s.ledger.InsertObservation(ctx, &obs); err != nil {
		return models.Observation{}, err
	}

	s.publish(ctx, models.LedgerEvent{Event: models.EventObservationRecorded, Observation: &obs})
	return obs, nil
}

// Delete removes an observation owned by the actor, or any observation for admins.
func (s *LedgerService) Delete(ctx context.Context, observationID int, actor models.Actor) (models.Observation, error) {
	obs, err := s.ledger.DeleteObservation(ctx, observationID, func(o models.Observation) error {
		if !actor.CanModify(o.UserID) {
			return models.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return models.Observation{}, err
	}

	s.publish(ctx, models.LedgerEvent{Event: models.EventObservationDeleted, Observation: &obs})
	return obs, nil
}

func (s *LedgerService) GetObservation(ctx context.Context, id int) (models.Observation, error) {
	return s.ledger.GetObservation(ctx, id)
}

func (s *LedgerService) ListObservations(ctx context.Context, f models.ObservationFilter) ([]models.Observation, error) {
	return s.ledger.ListObservations(ctx, f)
}

func (s *LedgerService) AddTalk(ctx context.Context, actor models.Actor, imageID int, notes string) (models.Talk, error) {
	if strings.TrimSpace(notes) == "" {
		return models.Talk{}, &models.ValidationError{Field: "notes", Message: "notes are required"}
	}
	img, err := s.catalog.GetImage(ctx, imageID)
	if err != nil {
		return models.Talk{}, err
	}

	talk := models.Talk{
		ImageID:   img.ID,
		UserID:    actor.UserID,
		Username:  actor.Username,
		Notes:     notes,
		Timestamp: s.now(),
	}
	if err := s.ledger.InsertTalk(ctx, &talk); err != nil {
		return models.Talk{}, err
	}

	s.publish(ctx, models.LedgerEvent{Event: models.EventTalkAdded, Talk: &talk})
	return talk, nil
}

func (s *LedgerService) DeleteTalk(ctx context.Context, talkID int, actor models.Actor) (models.Talk, error) {
	talk, err := s.ledger.DeleteTalk(ctx, talkID, func(t models.Talk) error {
		if !actor.CanModify(t.UserID) {
			return models.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return models.Talk{}, err
	}

	s.publish(ctx, models.LedgerEvent{Event: models.EventTalkDeleted, Talk: &talk})
	return talk, nil
}

func (s *LedgerService) ListTalk(ctx context.Context, f models.TalkFilter) ([]models.Talk, error) {
	return s.ledger.ListTalk(ctx, f)
}
