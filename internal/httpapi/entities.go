package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fleetd/internal/catalog"
	"fleetd/internal/entityset"
)

// entityReader is the read side of an entity set.
type entityReader[T any] interface {
	All(ctx context.Context) []T
	TryGet(ctx context.Context, id uuid.UUID) (T, bool)
}

// mountEntity registers list/get/add/update/remove routes for one catalog.
// Reads are open; writes need an admin caller.
func mountEntity[T entityset.Entity[T]](r chi.Router, h *handlers, path string, set func(*catalog.Catalog) entityReader[T]) {
	r.Route(path, func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			items := set(h.svc.Catalog()).All(r.Context())
			if items == nil {
				items = []T{}
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := parseID(w, r)
			if !ok {
				return
			}
			e, found := set(h.svc.Catalog()).TryGet(r.Context(), id)
			if !found {
				writeJSONError(w, http.StatusNotFound, "not found")
				return
			}
			writeJSON(w, http.StatusOK, e)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/", func(w http.ResponseWriter, r *http.Request) {
				var e T
				if !decodeJSON(w, r, &e, false) {
					return
				}
				if err := h.dispatch(r, entityset.AddCommand[T]{Entity: e}); err != nil {
					h.fail(w, r, err)
					return
				}
				writeJSON(w, http.StatusCreated, e)
			})
			r.Put("/{id}", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r)
				if !ok {
					return
				}
				var e, zero T
				if !decodeJSON(w, r, &e, false) {
					return
				}
				if e != zero && e.EntityID() != id {
					writeJSONError(w, http.StatusBadRequest, "body id does not match path id")
					return
				}
				if err := h.dispatch(r, entityset.UpdateCommand[T]{Entity: e}); err != nil {
					h.fail(w, r, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
			r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
				id, ok := parseID(w, r)
				if !ok {
					return
				}
				if err := h.dispatch(r, entityset.RemoveCommand[T]{ID: id}); err != nil {
					h.fail(w, r, err)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			})
		})
	})
}
