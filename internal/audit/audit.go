// Package audit appends structured, immutable records of privileged
// mutations: who did what, to which entity, with what change detail.
// Records are written best-effort relative to the mutation they describe;
// a failed or dropped audit write never fails the mutation.
package audit

import (
	"context"
	"strings"
	"time"
)

// Actor identifies who performed the audited action. Empty fields are
// absent and never serialized.
type Actor struct {
	ID    string
	Email string
	Role  string
}

func (a Actor) isZero() bool {
	return a.ID == "" && a.Email == "" && a.Role == ""
}

// Entry is one immutable audit record.
type Entry struct {
	ID        string
	Action    string
	Actor     Actor
	Details   map[string]any
	RequestID string
	Timestamp time.Time
}

// Fields flattens the entry into the serialized shape: action, actor
// (omitted entirely when unknown), change details spread at the top level,
// and the timestamp. Absent values have already been pruned.
func (e Entry) Fields() map[string]any {
	fields := make(map[string]any, len(e.Details)+4)
	fields["action"] = e.Action
	if !e.Actor.isZero() {
		actor := make(map[string]any, 3)
		if e.Actor.ID != "" {
			actor["id"] = e.Actor.ID
		}
		if e.Actor.Email != "" {
			actor["email"] = e.Actor.Email
		}
		if e.Actor.Role != "" {
			actor["role"] = e.Actor.Role
		}
		fields["actor"] = actor
	}
	for k, v := range e.Details {
		fields[k] = v
	}
	if e.RequestID != "" {
		fields["request_id"] = e.RequestID
	}
	fields["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	return fields
}

// Sink receives completed audit entries. Emit must not block indefinitely
// and must never panic; the dispatcher treats it as fire-and-forget.
type Sink interface {
	Emit(ctx context.Context, entry Entry)
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context so audit
// records can be correlated with request logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Prune returns a copy of m with every absent (nil) value removed,
// recursively: nested maps are pruned and dropped entirely when they end up
// empty, and map elements inside arrays are pruned in place. Values that are
// present but empty (empty string, zero) are kept; only nil is absent.
func Prune(m map[string]any) map[string]any {
	if len(m) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		pruned, keep := pruneValue(v)
		if keep {
			out[k] = pruned
		}
	}
	return out
}

func pruneValue(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		nested := Prune(t)
		if len(nested) == 0 {
			return nil, false
		}
		return nested, true
	case []any:
		items := make([]any, 0, len(t))
		for _, item := range t {
			if nested, ok := item.(map[string]any); ok {
				items = append(items, Prune(nested))
				continue
			}
			if item == nil {
				continue
			}
			items = append(items, item)
		}
		return items, true
	case []map[string]any:
		items := make([]any, 0, len(t))
		for _, item := range t {
			items = append(items, Prune(item))
		}
		return items, true
	default:
		return v, true
	}
}
