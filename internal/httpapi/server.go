// Package httpapi exposes the coordinator over HTTP. Every mutation is
// turned into a hub command; reads go through the same commands or the
// catalog caches.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetd/internal/catalog"
	"fleetd/internal/fleet"
	"fleetd/pkg/types"
)

// loginHeader carries the caller's login name. It is trusted as sent: fleetd
// does no authentication of its own, so deployments that expose the API put
// an authenticating proxy in front that sets this header.
const loginHeader = "X-Fleet-Login"

// Service is what the HTTP layer needs from the coordinator.
type Service interface {
	Ready() bool
	Status() types.StatusResponse
	// Dispatch executes one hub command.
	Dispatch(ctx context.Context, cmd any) error
	// Caller resolves a login name to a query scope. Never nil.
	Caller(login string) *fleet.Caller
	Catalog() *catalog.Catalog
	Handlers() []types.HandlerInfo
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})
	r.Get("/debug/handlers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"handlers": svc.Handlers()})
	})

	h := &handlers{svc: svc}
	r.Route("/api", func(r chi.Router) {
		r.Use(InflightMiddleware)
		r.Post("/nodes/query", h.queryNodes)
		r.Post("/nodes/report", h.reportNode)
		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Patch("/nodes", h.updateNodesField)
			r.Patch("/nodes/{id}", h.updateNodeField)
			r.Delete("/nodes/{id}", h.removeNode)
		})

		mountEntity(r, h, "/kernel-inputs", func(c *catalog.Catalog) entityReader[*catalog.KernelInput] { return c.KernelInputs })
		mountEntity(r, h, "/groups", func(c *catalog.Catalog) entityReader[*catalog.Group] { return c.Groups })
		mountEntity(r, h, "/works", func(c *catalog.Catalog) entityReader[*catalog.Work] { return c.Works })
		mountEntity(r, h, "/coins", func(c *catalog.Catalog) entityReader[*catalog.Coin] { return c.Coins })
	})

	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

// dispatch runs cmd under the request context joined with the server base
// context, bounded by the command timeout when one is set.
func (h *handlers) dispatch(r *http.Request, cmd any) error {
	ctx, cancel := commandContext(r)
	defer cancel()
	return h.svc.Dispatch(ctx, cmd)
}

// fail writes err with its mapped status and logs server-side failures.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 && zlog != nil {
		ev := zlog.Error().Err(err).Str("path", routePatternOrPath(r))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			ev = ev.Str("request_id", rid)
		}
		ev.Msg("command failed")
	}
	writeJSONError(w, status, err.Error())
}

// requireAdmin admits callers whose login header names a configured admin.
func (h *handlers) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login := r.Header.Get(loginHeader)
		if login == "" {
			IncrementRejected("unauthenticated")
			writeJSONError(w, http.StatusUnauthorized, loginHeader+" header is required")
			return
		}
		if !h.svc.Caller(login).IsAdmin {
			IncrementRejected("forbidden")
			writeJSONError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// decodeJSON reads a size-limited JSON body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		// Oversized bodies get the same 400 so the limit is not disclosed.
		IncrementRejected("bad_body")
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// queryNodes godoc
// @Summary      Query nodes
// @Description  Filters, sorts and pages the fleet. Non-admin callers only see their own nodes. A page_size of 0 returns totals and coin snapshots without nodes.
// @Tags         nodes
// @Accept       json
// @Produce      json
// @Param        X-Fleet-Login  header  string                   true  "Caller login"
// @Param        request        body    types.QueryNodesRequest  false "Filters"
// @Success      200  {object}  types.QueryNodesResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      401  {object}  types.ErrorResponse
// @Router       /api/nodes/query [post]
func (h *handlers) queryNodes(w http.ResponseWriter, r *http.Request) {
	login := r.Header.Get(loginHeader)
	if login == "" {
		IncrementRejected("unauthenticated")
		writeJSONError(w, http.StatusUnauthorized, loginHeader+" header is required")
		return
	}
	var req types.QueryNodesRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	var resp types.QueryNodesResponse
	cmd := fleet.QueryNodesCommand{Caller: h.svc.Caller(login), Request: req, Reply: &resp}
	if err := h.dispatch(r, cmd); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// reportNode godoc
// @Summary      Report node state
// @Description  Agents push their state here. Nodes are matched by client id.
// @Tags         nodes
// @Accept       json
// @Param        request  body  types.Node  true  "Node state"
// @Success      204
// @Failure      400  {object}  types.ErrorResponse
// @Router       /api/nodes/report [post]
func (h *handlers) reportNode(w http.ResponseWriter, r *http.Request) {
	var n types.Node
	if !decodeJSON(w, r, &n, false) {
		return
	}
	if n.MinerIP == "" {
		n.MinerIP = remoteHost(r)
	}
	if err := h.dispatch(r, fleet.ReportNodeCommand{Node: n}); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// updateNodeField godoc
// @Summary      Update one node field
// @Tags         nodes
// @Accept       json
// @Param        id       path    string                        true  "Node id"
// @Param        request  body    types.UpdateNodeFieldRequest  true  "Field and value"
// @Success      204
// @Failure      400  {object}  types.ErrorResponse
// @Failure      403  {object}  types.ErrorResponse
// @Router       /api/nodes/{id} [patch]
func (h *handlers) updateNodeField(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateNodeFieldRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if err := fleet.CheckField(req.Field); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	cmd := fleet.UpdateNodeFieldCommand{ID: chi.URLParam(r, "id"), Field: req.Field, Value: req.Value}
	if err := h.dispatch(r, cmd); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// updateNodesField godoc
// @Summary      Update one field on many nodes
// @Tags         nodes
// @Accept       json
// @Param        request  body  types.UpdateNodesFieldRequest  true  "Field and per-node values"
// @Success      204
// @Failure      400  {object}  types.ErrorResponse
// @Failure      403  {object}  types.ErrorResponse
// @Router       /api/nodes [patch]
func (h *handlers) updateNodesField(w http.ResponseWriter, r *http.Request) {
	var req types.UpdateNodesFieldRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if err := fleet.CheckField(req.Field); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.dispatch(r, fleet.UpdateNodeFieldsCommand{Field: req.Field, Values: req.Values}); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// removeNode godoc
// @Summary      Remove a node
// @Tags         nodes
// @Param        id  path  string  true  "Node id"
// @Success      204
// @Failure      403  {object}  types.ErrorResponse
// @Router       /api/nodes/{id} [delete]
func (h *handlers) removeNode(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatch(r, fleet.RemoveNodeCommand{ID: chi.URLParam(r, "id")}); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// remoteHost is the caller address without its port.
func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
