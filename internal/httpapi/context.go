package httpapi

import (
	"context"
	"net/http"
)

// shutdownCtx ends every in-flight command when the coordinator stops.
var shutdownCtx = context.Background()

// SetBaseContext installs the context whose cancellation aborts running
// commands. Nil restores Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx = ctx
}

// commandContext is the context a hub command runs under. It is canceled when
// the client goes away, when the server shuts down, or after commandTimeout.
func commandContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(shutdownCtx, cancel)
	release := func() {
		stop()
		cancel()
	}
	if commandTimeout <= 0 {
		return ctx, release
	}
	tctx, tcancel := context.WithTimeout(ctx, commandTimeout)
	return tctx, func() {
		tcancel()
		release()
	}
}
