package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/pkg/platform/events"
	"lifeline/pkg/platform/events/store/memory"
	"lifeline/pkg/requestcontext"
)

func TestPublisher_FillsMetadata(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := events.NewPublisher(store)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	ctx = requestcontext.WithActor(ctx, requestcontext.ActorInfo{ID: "lab-7", Role: "lab"})

	err := pub.Emit(ctx, events.Event{Kind: events.KindUnitScreened, EntityID: "BU-1", To: "available"})
	require.NoError(t, err)

	got, err := pub.List(ctx, events.EntityUnit, "BU-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEqual(t, "", got[0].ID.String())
	assert.Equal(t, now, got[0].Timestamp)
	assert.Equal(t, "req-1", got[0].RequestID)
	assert.Equal(t, "lab-7", got[0].ActorID)
}

func TestPublisher_RejectsIncompleteEvents(t *testing.T) {
	pub := events.NewPublisher(memory.NewInMemoryStore())
	assert.Error(t, pub.Emit(context.Background(), events.Event{EntityID: "BU-1"}))
	assert.Error(t, pub.Emit(context.Background(), events.Event{Kind: events.KindUnitCreated}))
}

type failingStore struct{ events.Store }

func (failingStore) Append(context.Context, events.Event) error { return errors.New("disk full") }

func TestPublisher_FailClosed(t *testing.T) {
	pub := events.NewPublisher(failingStore{})
	err := pub.Emit(context.Background(), events.Event{Kind: events.KindUnitCreated, EntityID: "BU-1"})
	require.Error(t, err)
}

func TestKindEntityAndTopic(t *testing.T) {
	assert.Equal(t, events.EntityRequest, events.KindTrackingStarted.Entity())
	assert.Equal(t, events.EntityUnit, events.KindUnitSeparated.Entity())
	assert.Equal(t, "lifeline.requests", events.EntityRequest.Topic())
}
