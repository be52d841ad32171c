package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/fonoterapia-backend/internal/models"
)

func TestLocalBrokerDeliversOnlyToThatUser(t *testing.T) {
	b := NewLocalBroker()
	ana, unsubAna := b.Subscribe(1)
	defer unsubAna()
	luis, unsubLuis := b.Subscribe(2)
	defer unsubLuis()

	session := &models.TherapySession{ID: 7, UserID: 1, TherapyType: models.TherapyWords,
		Status: models.StatusActive, TotalQuestions: 4, CorrectAnswers: 3}
	require.NoError(t, b.Publish(context.Background(), newProgressEvent(EventAnswerRecorded, session)))

	select {
	case evt := <-ana:
		assert.Equal(t, EventAnswerRecorded, evt.Type)
		assert.Equal(t, int64(7), evt.SessionID)
		assert.Equal(t, 75.0, evt.Accuracy)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case evt := <-luis:
		t.Fatalf("unexpected event for another user: %+v", evt)
	default:
	}
}

func TestLocalBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewLocalBroker()
	ch, unsubscribe := b.Subscribe(1)

	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
	assert.NoError(t, b.Publish(context.Background(), ProgressEvent{UserID: 1}))
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewLocalBroker()
	_, unsubscribe := b.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			_ = b.Publish(context.Background(), ProgressEvent{UserID: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestProgressChannel(t *testing.T) {
	assert.Equal(t, "therapy:user:42", progressChannel(42))
}

func TestSleepCtxStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.False(t, sleepCtx(ctx, 30*time.Second))
	assert.Less(t, time.Since(start), time.Second)

	assert.True(t, sleepCtx(context.Background(), time.Millisecond))
}
