package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
)

func TestPublishReachesTypeAndWildcardSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	var typed, wildcard []interfaces.EventType
	require.NoError(t, svc.Subscribe(interfaces.EventJobCompleted, func(ctx context.Context, e interfaces.Event) error {
		typed = append(typed, e.Type)
		return nil
	}))
	require.NoError(t, svc.Subscribe(interfaces.EventTypeAll, func(ctx context.Context, e interfaces.Event) error {
		wildcard = append(wildcard, e.Type)
		return nil
	}))

	svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventJobStarted, JobID: "a"})
	svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventJobCompleted, JobID: "a"})

	assert.Equal(t, []interfaces.EventType{interfaces.EventJobCompleted}, typed)
	assert.Equal(t, []interfaces.EventType{interfaces.EventJobStarted, interfaces.EventJobCompleted}, wildcard)
}

func TestSubscribeRejectsNilHandler(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	assert.Error(t, svc.Subscribe(interfaces.EventJobStarted, nil))
}

func TestHandlerErrorDoesNotStopDelivery(t *testing.T) {
	svc := NewService(arbor.NewLogger())

	delivered := false
	svc.Subscribe(interfaces.EventJobStarted, func(ctx context.Context, e interfaces.Event) error {
		return errors.New("boom")
	})
	svc.Subscribe(interfaces.EventJobStarted, func(ctx context.Context, e interfaces.Event) error {
		delivered = true
		return nil
	})

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventJobStarted}))
	assert.True(t, delivered)
}
