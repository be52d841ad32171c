// Package handlers implements the HTTP API: registration and login, the
// therapy session lifecycle and the progress queries.
package handlers

import (
	"github.com/AnshRaj112/fonoterapia-backend/internal/services"
)

// Handler holds the services behind the HTTP endpoints.
type Handler struct {
	users    *services.UserService
	therapy  *services.TherapyService
	progress *services.ProgressService
	broker   services.ProgressBroker
}

func New(users *services.UserService, therapy *services.TherapyService, progress *services.ProgressService, broker services.ProgressBroker) *Handler {
	return &Handler{users: users, therapy: therapy, progress: progress, broker: broker}
}
