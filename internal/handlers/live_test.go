package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/fonoterapia-backend/internal/database"
	"github.com/AnshRaj112/fonoterapia-backend/internal/handlers"
	"github.com/AnshRaj112/fonoterapia-backend/internal/models"
	"github.com/AnshRaj112/fonoterapia-backend/internal/routes"
	"github.com/AnshRaj112/fonoterapia-backend/internal/services"
)

func TestLiveProgressStreamsEvents(t *testing.T) {
	store := database.NewMemoryStore()
	broker := services.NewLocalBroker()
	therapy := services.NewTherapyService(store, broker)
	h := handlers.New(services.NewUserService(store, services.BcryptCredentials{}), therapy,
		services.NewProgressService(store), broker)
	r := chi.NewRouter()
	routes.SetupRoutes(r, h, store)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx := context.Background()
	user, err := store.CreateUser(ctx, "Ana", "ana@x.com", "hash")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/therapy/user/" + itoa(user.ID) + "/live"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	s, err := therapy.StartSession(ctx, user.ID, models.TherapyWords, nil)
	require.NoError(t, err)
	_, err = therapy.RecordAnswer(ctx, s.ID, models.NewAnswer{
		QuestionText: "q", ExpectedAnswer: "uno", UserAnswer: "uno", PronunciationScore: 80, IsCorrect: true,
	})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var started, answered services.ProgressEvent
	require.NoError(t, conn.ReadJSON(&started))
	require.NoError(t, conn.ReadJSON(&answered))

	assert.Equal(t, services.EventSessionStarted, started.Type)
	assert.Equal(t, user.ID, started.UserID)
	assert.Equal(t, services.EventAnswerRecorded, answered.Type)
	assert.Equal(t, 1, answered.CorrectAnswers)
	assert.Equal(t, 100.0, answered.Accuracy)
}

func TestLiveProgressRejectsBadUserID(t *testing.T) {
	srv := newTestServer(t)

	status, env := do(t, srv, http.MethodGet, "/therapy/user/zero/live", "")

	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
}
