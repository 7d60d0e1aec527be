package audit

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestPruneDropsAbsentValuesAtEveryDepth(t *testing.T) {
	in := map[string]any{
		"kept":    "value",
		"empty":   "",
		"zero":    0,
		"absent":  nil,
		"nested":  map[string]any{"id": "r1", "name": nil},
		"vanish":  map[string]any{"a": nil, "b": map[string]any{"c": nil}},
		"items":   []any{"x", nil, map[string]any{"k": "v", "gone": nil}},
		"records": []map[string]any{{"id": "1", "label": nil}},
	}

	got := Prune(in)

	want := map[string]any{
		"kept":    "value",
		"empty":   "",
		"zero":    0,
		"nested":  map[string]any{"id": "r1"},
		"items":   []any{"x", map[string]any{"k": "v"}},
		"records": []any{map[string]any{"id": "1"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Prune mismatch:\n got: %#v\nwant: %#v", got, want)
	}
}

func assertNoNil(t *testing.T, path string, v any) {
	t.Helper()
	switch tv := v.(type) {
	case map[string]any:
		for k, inner := range tv {
			if inner == nil {
				t.Fatalf("nil survived pruning at %s.%s", path, k)
			}
			assertNoNil(t, path+"."+k, inner)
		}
	case []any:
		for i, inner := range tv {
			if inner == nil {
				t.Fatalf("nil survived pruning at %s[%d]", path, i)
			}
			assertNoNil(t, path, inner)
		}
	}
}

func TestPruneLeavesNoNilAnywhere(t *testing.T) {
	in := map[string]any{
		"a": nil,
		"b": map[string]any{"c": nil, "d": map[string]any{"e": nil, "f": "ok"}},
		"g": []any{nil, map[string]any{"h": nil}, []any{nil, "x"}},
	}
	out := Prune(in)
	assertNoNil(t, "root", out)
}

func TestEntryFields(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	entry := Entry{
		ID:        "a1",
		Action:    "ROLE_CREATED",
		Actor:     Actor{ID: "u1", Role: "role-admin"},
		Details:   map[string]any{"role": map[string]any{"id": "role-auditor"}},
		RequestID: "req-1",
		Timestamp: ts,
	}

	fields := entry.Fields()
	if fields["action"] != "ROLE_CREATED" {
		t.Fatalf("missing action: %+v", fields)
	}
	actor, ok := fields["actor"].(map[string]any)
	if !ok {
		t.Fatalf("missing actor: %+v", fields)
	}
	if actor["id"] != "u1" || actor["role"] != "role-admin" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
	if _, present := actor["email"]; present {
		t.Fatal("empty actor email must be omitted")
	}
	if fields["request_id"] != "req-1" {
		t.Fatalf("missing request id: %+v", fields)
	}
	if fields["timestamp"] != ts.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp: %v", fields["timestamp"])
	}
	if _, present := fields["role"]; !present {
		t.Fatal("details must be spread at the top level")
	}
}

func TestEntryFieldsOmitsUnknownActor(t *testing.T) {
	fields := Entry{Action: "USER_REGISTERED", Timestamp: time.Now()}.Fields()
	if _, present := fields["actor"]; present {
		t.Fatal("unknown actor must be omitted entirely")
	}
}

func TestLoggerDeliversInOrder(t *testing.T) {
	sink := &MemorySink{}
	l := New(sink)

	for _, action := range []string{"A", "B", "C"} {
		l.Record(context.Background(), action, Actor{ID: "u1"}, nil)
	}
	l.Close()

	entries := sink.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"A", "B", "C"} {
		if entries[i].Action != want {
			t.Fatalf("order broken at %d: %s", i, entries[i].Action)
		}
	}
	if entries[0].ID == "" {
		t.Fatal("entries must carry generated ids")
	}
}

func TestLoggerCarriesRequestID(t *testing.T) {
	sink := &MemorySink{}
	l := New(sink)

	ctx := WithRequestID(context.Background(), "req-42")
	l.Record(ctx, "USER_DELETED", Actor{ID: "u1"}, nil)
	l.Close()

	entries := sink.Entries()
	if len(entries) != 1 || entries[0].RequestID != "req-42" {
		t.Fatalf("request id not carried: %+v", entries)
	}
}

// blockingSink holds the dispatcher so the queue fills up.
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, Entry) {
	<-s.release
}

func TestLoggerDropsWhenQueueFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	l := New(sink, WithBuffer(1))

	// First record occupies the dispatcher, second fills the buffer, the
	// rest must be dropped and counted.
	for i := 0; i < 5; i++ {
		l.Record(context.Background(), "ACTION", Actor{ID: "u1"}, nil)
	}
	if dropped := l.Dropped(); dropped == 0 {
		t.Fatal("expected drops once the queue filled")
	}
	close(sink.release)
	l.Close()
}

func TestLoggerIgnoresRecordsAfterClose(t *testing.T) {
	sink := &MemorySink{}
	l := New(sink)
	l.Close()

	l.Record(context.Background(), "LATE", Actor{}, nil)
	if got := len(sink.Entries()); got != 0 {
		t.Fatalf("record after close must be discarded, got %d entries", got)
	}
}

func TestRecordPrunesDetails(t *testing.T) {
	sink := &MemorySink{}
	l := New(sink)

	l.Record(context.Background(), "USER_LOGGED_IN", Actor{ID: "u1"}, map[string]any{
		"role": map[string]any{"id": "role-admin", "name": nil},
	})
	l.Close()

	entries := sink.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	role := entries[0].Details["role"].(map[string]any)
	if _, present := role["name"]; present {
		t.Fatal("nil detail survived pruning")
	}
}
