package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryDispatcher_Publish(t *testing.T) {
	t.Parallel()

	d := NewInMemoryDispatcher()
	var calls []string
	boom := errors.New("boom")

	d.Subscribe(EventUserRegistered, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.UserID)
		return boom
	})
	d.Subscribe(EventUserRegistered, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.UserID)
		return nil
	})
	d.Subscribe(EventUserVerified, func(context.Context, Event) error {
		calls = append(calls, "verified")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventUserRegistered, UserID: "u1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first:u1", "second:u1"}, calls)
}

func TestInMemoryDispatcher_NoListeners(t *testing.T) {
	t.Parallel()

	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventUserVerified}))
}

func TestInMemoryDispatcher_StampsEvent(t *testing.T) {
	t.Parallel()

	d := NewInMemoryDispatcher()
	var got Event
	d.Subscribe(EventUserRegistered, func(_ context.Context, e Event) error {
		got = e
		return nil
	})

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventUserRegistered}))
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventUserRegistered, ID: "fixed"}))
	assert.Equal(t, "fixed", got.ID)
}

func TestInMemoryDispatcher_RecoversPanics(t *testing.T) {
	t.Parallel()

	d := NewInMemoryDispatcher()
	ran := false
	d.Subscribe(EventUserVerified, func(context.Context, Event) error {
		panic("smtp exploded")
	})
	d.Subscribe(EventUserVerified, func(context.Context, Event) error {
		ran = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventUserVerified})
	assert.ErrorContains(t, err, "smtp exploded")
	assert.True(t, ran)
}
