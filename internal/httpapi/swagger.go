//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// swaggerDoc is the minimal document served until `swag init` output is
// registered under the same name.
const swaggerDoc = `{
  "swagger": "2.0",
  "info": {"title": "fleetd API", "version": "1.0", "description": "Fleet coordinator API."},
  "basePath": "/",
  "paths": {}
}`

type staticDoc string

func (d staticDoc) ReadDoc() string { return string(d) }

func init() {
	if _, err := swag.ReadDoc(swag.Name); err != nil {
		swag.Register(swag.Name, staticDoc(swaggerDoc))
	}
}

// MountSwagger serves the Swagger UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
