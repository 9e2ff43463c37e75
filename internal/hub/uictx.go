package hub

import "context"

// UIAffine is implemented by commands that must run on the single designated
// UI execution context.
type UIAffine interface {
	UIAffine() bool
}

// UIRunner marshals work onto the UI execution context. Post must not block
// until fn has run.
type UIRunner interface {
	Post(fn func(ctx context.Context))
}

type uiContextKey struct{}

// MarkUIContext returns a context flagged as running on the UI execution
// context. UI runners pass such a context to every posted function.
func MarkUIContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, uiContextKey{}, true)
}

// InUIContext reports whether ctx was produced by MarkUIContext.
func InUIContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(uiContextKey{}).(bool)
	return v
}

func isUIAffine(msg any) bool {
	u, ok := msg.(UIAffine)
	return ok && u.UIAffine()
}

func isCritical(msg any) bool {
	c, ok := msg.(Critical)
	return ok && c.Critical()
}
