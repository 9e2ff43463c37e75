package fleet

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleetd/pkg/types"
)

// field is a typed accessor pair for one updatable Node field.
type field struct {
	coerce func(raw any) (any, error)
	equal  func(n *types.Node, v any) bool
	set    func(n *types.Node, v any)
}

func typed[V any](ptr func(*types.Node) *V, coerce func(any) (V, error), eq func(a, b V) bool) field {
	return field{
		coerce: func(raw any) (any, error) { return coerce(raw) },
		equal:  func(n *types.Node, v any) bool { return eq(*ptr(n), v.(V)) },
		set:    func(n *types.Node, v any) { *ptr(n) = v.(V) },
	}
}

func same[V comparable](a, b V) bool { return a == b }

func stringField(ptr func(*types.Node) *string) field  { return typed(ptr, toString, same[string]) }
func boolField(ptr func(*types.Node) *bool) field      { return typed(ptr, toBool, same[bool]) }
func floatField(ptr func(*types.Node) *float64) field  { return typed(ptr, toFloat, same[float64]) }
func uuidField(ptr func(*types.Node) *uuid.UUID) field { return typed(ptr, toUUID, same[uuid.UUID]) }
func timeField(ptr func(*types.Node) *time.Time) field {
	return typed(ptr, toTime, func(a, b time.Time) bool { return a.Equal(b) })
}

// nodeFields lists every field updatable by name. ID and ClientID are the
// index keys and are deliberately absent.
var nodeFields = map[string]field{
	"LoginName":         stringField(func(n *types.Node) *string { return &n.LoginName }),
	"GroupID":           uuidField(func(n *types.Node) *uuid.UUID { return &n.GroupID }),
	"WorkID":            uuidField(func(n *types.Node) *uuid.UUID { return &n.WorkID }),
	"IsMining":          boolField(func(n *types.Node) *bool { return &n.IsMining }),
	"IsOnline":          boolField(func(n *types.Node) *bool { return &n.IsOnline }),
	"MinerName":         stringField(func(n *types.Node) *string { return &n.MinerName }),
	"WorkerName":        stringField(func(n *types.Node) *string { return &n.WorkerName }),
	"MinerIP":           stringField(func(n *types.Node) *string { return &n.MinerIP }),
	"Version":           stringField(func(n *types.Node) *string { return &n.Version }),
	"MainCoinCode":      stringField(func(n *types.Node) *string { return &n.MainCoinCode }),
	"MainCoinPool":      stringField(func(n *types.Node) *string { return &n.MainCoinPool }),
	"MainCoinWallet":    stringField(func(n *types.Node) *string { return &n.MainCoinWallet }),
	"MainCoinSpeed":     floatField(func(n *types.Node) *float64 { return &n.MainCoinSpeed }),
	"IsDualCoinEnabled": boolField(func(n *types.Node) *bool { return &n.IsDualCoinEnabled }),
	"DualCoinCode":      stringField(func(n *types.Node) *string { return &n.DualCoinCode }),
	"DualCoinPool":      stringField(func(n *types.Node) *string { return &n.DualCoinPool }),
	"DualCoinWallet":    stringField(func(n *types.Node) *string { return &n.DualCoinWallet }),
	"DualCoinSpeed":     floatField(func(n *types.Node) *float64 { return &n.DualCoinSpeed }),
	"Kernel":            stringField(func(n *types.Node) *string { return &n.Kernel }),
	"AESPassword":       stringField(func(n *types.Node) *string { return &n.AESPassword }),
	"ReportedOn":        timeField(func(n *types.Node) *time.Time { return &n.ReportedOn }),
}

// IsField reports whether name can be passed to UpdateField.
func IsField(name string) bool {
	_, ok := nodeFields[name]
	return ok
}

// Fields returns the updatable field names, sorted.
func Fields() []string {
	out := make([]string, 0, len(nodeFields))
	for name := range nodeFields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func coerceErr(raw any, to string) error {
	return fmt.Errorf("%w: %T to %s", ErrCoerce, raw, to)
}

func toString(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	}
	return "", coerceErr(raw, "string")
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, coerceErr(raw, "bool")
		}
		return b, nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	}
	return false, coerceErr(raw, "bool")
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, coerceErr(raw, "float64")
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, coerceErr(raw, "float64")
		}
		return f, nil
	}
	return 0, coerceErr(raw, "float64")
}

func toUUID(raw any) (uuid.UUID, error) {
	switch v := raw.(type) {
	case nil:
		return uuid.Nil, nil
	case uuid.UUID:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return uuid.Nil, nil
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, coerceErr(raw, "uuid")
		}
		return id, nil
	}
	return uuid.Nil, coerceErr(raw, "uuid")
}

func toTime(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, coerceErr(raw, "time")
		}
		return t, nil
	case int64:
		return time.Unix(v, 0), nil
	case float64:
		return time.Unix(int64(v), 0), nil
	}
	return time.Time{}, coerceErr(raw, "time")
}
