package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fleetd/pkg/types"
)

// Handler serves the agent's local API: the liveness probe used by the
// coordinator in pull mode, the current state and the job commands.
func (a *Agent) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.State())
	})
	r.Post("/mining/start", func(w http.ResponseWriter, r *http.Request) {
		var spec KernelSpec
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&spec); err != nil {
			writeJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "invalid JSON body", Code: http.StatusBadRequest})
			return
		}
		a.exec(w, r, StartMiningCommand{Spec: spec})
	})
	r.Post("/mining/stop", func(w http.ResponseWriter, r *http.Request) {
		a.exec(w, r, StopMiningCommand{})
	})
	r.Post("/close", func(w http.ResponseWriter, r *http.Request) {
		// Fire and forget; the UI loop runs it.
		a.exec(w, r, CloseAgentCommand{Reason: "remote"})
	})
	return r
}

func (a *Agent) exec(w http.ResponseWriter, r *http.Request, cmd any) {
	if err := a.hub.Execute(r.Context(), cmd); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errNoCommand) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, types.ErrorResponse{Error: err.Error(), Code: status})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve runs Handler on addr until ctx is done.
func (a *Agent) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: a.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
