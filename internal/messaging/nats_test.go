package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"

	"github.com/jefmud/species-ident/internal/models"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "species.observation.recorded", NewPublisher(nil, "species").Subject(models.EventObservationRecorded))
	assert.Equal(t, "talk.added", NewPublisher(nil, "").Subject(models.EventTalkAdded))
}

func TestPublishWithoutConnection(t *testing.T) {
	p := NewPublisher(nil, "species")
	err := p.Publish(context.Background(), models.LedgerEvent{Event: models.EventObservationRecorded})
	assert.True(t, errors.Is(err, nats.ErrConnectionClosed))
}

func TestConnectUnreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "species")
	assert.Error(t, err)
}

func TestCloseWithoutConnection(t *testing.T) {
	assert.NotPanics(t, func() { NewPublisher(nil, "species").Close() })
}
