package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/fonoterapia-backend/internal/metrics"
	"github.com/AnshRaj112/fonoterapia-backend/internal/models"
)

const (
	EventSessionStarted = "session_started"
	EventAnswerRecorded = "answer_recorded"
	EventSessionEnded   = "session_ended"
)

// ProgressEvent is broadcast to live listeners of a user's practice.
type ProgressEvent struct {
	Type           string               `json:"type"`
	UserID         int64                `json:"user_id"`
	SessionID      int64                `json:"session_id"`
	TherapyType    models.TherapyType   `json:"therapy_type"`
	Status         models.SessionStatus `json:"status"`
	TotalQuestions int                  `json:"total_questions"`
	CorrectAnswers int                  `json:"correct_answers"`
	Accuracy       float64              `json:"accuracy"`
	Timestamp      time.Time            `json:"timestamp"`
}

func newProgressEvent(eventType string, s *models.TherapySession) ProgressEvent {
	return ProgressEvent{
		Type:           eventType,
		UserID:         s.UserID,
		SessionID:      s.ID,
		TherapyType:    s.TherapyType,
		Status:         s.Status,
		TotalQuestions: s.TotalQuestions,
		CorrectAnswers: s.CorrectAnswers,
		Accuracy:       models.Round2(models.Accuracy(s.CorrectAnswers, s.TotalQuestions)),
		Timestamp:      time.Now().UTC(),
	}
}

// Publisher delivers progress events.
type Publisher interface {
	Publish(ctx context.Context, event ProgressEvent) error
}

// ProgressBroker publishes events and lets live connections subscribe to
// one user's stream.
type ProgressBroker interface {
	Publisher
	Subscribe(userID int64) (<-chan ProgressEvent, func())
}

// progressHub fans events out to local subscribers.
type progressHub struct {
	mu   sync.RWMutex
	subs map[int64]map[chan ProgressEvent]struct{}
}

func newProgressHub() *progressHub {
	return &progressHub{subs: make(map[int64]map[chan ProgressEvent]struct{})}
}

const subscriberBuffer = 16

func (h *progressHub) subscribe(userID int64) (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan ProgressEvent]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// fanOut never blocks; a subscriber whose buffer is full misses the event.
func (h *progressHub) fanOut(event ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[event.UserID] {
		select {
		case ch <- event:
		default:
			slog.Warn("dropping progress event for slow subscriber", "user_id", event.UserID, "type", event.Type)
		}
	}
}

// LocalBroker delivers events within this process only.
type LocalBroker struct {
	hub *progressHub
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{hub: newProgressHub()}
}

func (b *LocalBroker) Publish(ctx context.Context, event ProgressEvent) error {
	b.hub.fanOut(event)
	return nil
}

func (b *LocalBroker) Subscribe(userID int64) (<-chan ProgressEvent, func()) {
	return b.hub.subscribe(userID)
}

const progressChannelPrefix = "therapy:user:"

func progressChannel(userID int64) string {
	return progressChannelPrefix + strconv.FormatInt(userID, 10)
}

// RedisBroker publishes through Redis Pub/Sub so every instance sees every
// event; one pattern subscriber per instance feeds the local hub.
type RedisBroker struct {
	client *redis.Client
	hub    *progressHub
	start  sync.Once
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client, hub: newProgressHub()}
}

func (b *RedisBroker) Publish(ctx context.Context, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, progressChannel(event.UserID), data).Err()
}

func (b *RedisBroker) Subscribe(userID int64) (<-chan ProgressEvent, func()) {
	return b.hub.subscribe(userID)
}

// Start launches the shared subscriber; it returns immediately and the
// subscriber runs until ctx is cancelled.
func (b *RedisBroker) Start(ctx context.Context) {
	b.start.Do(func() {
		go b.run(ctx)
	})
}

func (b *RedisBroker) run(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := b.client.PSubscribe(ctx, progressChannelPrefix+"*")
			defer pubsub.Close()

			slog.Info("✅ Progress Redis subscriber started", "pattern", progressChannelPrefix+"*")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					slog.Error("progress subscriber error", "error", err, "retry_in", backoff)
					if !sleepCtx(ctx, backoff) {
						return
					}
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}
				backoff = time.Second

				var event ProgressEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.Warn("failed to unmarshal progress event", "channel", msg.Channel, "error", err)
					continue
				}
				if !strings.HasSuffix(msg.Channel, ":"+strconv.FormatInt(event.UserID, 10)) {
					continue
				}
				b.hub.fanOut(event)
			}
		}()
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// publishBestEffort never fails the caller; a lost event only affects live
// viewers, never persisted state.
func publishBestEffort(ctx context.Context, p Publisher, event ProgressEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		slog.Warn("failed to publish progress event", "type", event.Type, "session_id", event.SessionID, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
}
