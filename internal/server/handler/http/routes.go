package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/atinyakov/CovertKeeper/internal/middleware"
)

// NewRouter constructs the HTTP handler serving the API under /api.
//
// Routes:
//
//	POST   /api/profile                  → profiles.Touch
//	GET    /api/profile                  → profiles.Get
//	PATCH  /api/profile                  → profiles.Update
//	POST   /api/setup                    → profiles.Setup
//	POST   /api/profile/contacts         → profiles.AddContact
//	DELETE /api/profile/contacts/{index} → profiles.RemoveContact
//	GET    /api/notes                    → notes.List
//	POST   /api/notes                    → notes.Create
//	GET    /api/notes/{id}               → notes.Get
//	PUT    /api/notes/{id}               → notes.Update
//	DELETE /api/notes/{id}               → notes.Delete
//	POST   /api/location                 → locations.Resolve
//	POST   /api/sos                      → sos.Trigger
//
// Middleware chain (applied in order):
//  1. RequestID and Recoverer
//  2. AllowContentType("application/json") rejects non-JSON bodies
//  3. WithRequestLogging(logger) logs each request
//  4. DeviceAuth resolves the device identifier or answers 401
func NewRouter(
	profiles *ProfileHandler,
	notes *NoteHandler,
	locations *LocationHandler,
	sos *SOSHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.AllowContentType("application/json"))
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(middleware.DeviceAuth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/setup", profiles.Setup)

		r.Route("/profile", func(r chi.Router) {
			r.Post("/", profiles.Touch)
			r.Get("/", profiles.Get)
			r.Patch("/", profiles.Update)
			r.Post("/contacts", profiles.AddContact)
			r.Delete("/contacts/{index}", profiles.RemoveContact)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", notes.List)
			r.Post("/", notes.Create)
			r.Get("/{id}", notes.Get)
			r.Put("/{id}", notes.Update)
			r.Delete("/{id}", notes.Delete)
		})

		r.Post("/location", locations.Resolve)
		r.Post("/sos", sos.Trigger)
	})

	return r
}
