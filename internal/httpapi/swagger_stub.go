//go:build !swagger

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountSwagger answers /swagger/ with a 404 explaining how to get the UI.
// Build with -tags=swagger to serve it.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "swagger UI not built in; rebuild fleetd with -tags=swagger")
	})
}
