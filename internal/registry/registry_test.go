package registry

import (
	"context"
	"errors"
	"testing"

	"conductor/internal/api"
	"conductor/internal/bus"
)

type testModule struct {
	meta api.Metadata
}

func (m *testModule) Metadata() api.Metadata { return m.meta }

func newTestModule(name string, deps ...string) *testModule {
	return &testModule{meta: api.Metadata{Name: name, Version: "1.0.0", Dependencies: deps}}
}

func collectEvents(b *bus.Bus, pattern string) *[]api.Event {
	var events []api.Event
	b.Subscribe(pattern, func(ctx context.Context, ev api.Event) error {
		events = append(events, ev)
		return nil
	})
	return &events
}

func TestAddAndDuplicate(t *testing.T) {
	r := New(bus.New())

	if err := r.Add("db", nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !r.Has("db") {
		t.Error("Has(db) = false after Add")
	}

	err := r.Add("db", nil)
	if err == nil {
		t.Fatal("duplicate Add succeeded")
	}
	if !api.IsDuplicate(err) {
		t.Errorf("expected DuplicateError, got %T", err)
	}

	state, err := r.State("db")
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state != api.StateNotInstalled {
		t.Errorf("fresh entry state = %s, want not_installed", state)
	}
}

func TestAttachInstancePublishesLoadedEvents(t *testing.T) {
	b := bus.New()
	events := collectEvents(b, "module.*")
	r := New(b)
	ctx := context.Background()

	r.Add("db", nil)
	if err := r.AttachInstance(ctx, "db", newTestModule("db")); err != nil {
		t.Fatalf("AttachInstance failed: %v", err)
	}

	state, _ := r.State("db")
	if state != api.StateLoaded {
		t.Errorf("state = %s, want loaded", state)
	}

	if len(*events) != 2 {
		t.Fatalf("got %d events, want 2 (state_changed + loaded): %v", len(*events), *events)
	}
	if (*events)[0].Type != api.EventModuleStateChanged {
		t.Errorf("first event = %s, want module.state_changed", (*events)[0].Type)
	}
	if (*events)[1].Type != api.EventModuleLoaded {
		t.Errorf("second event = %s, want module.loaded", (*events)[1].Type)
	}

	snap, err := r.Get("db")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if snap.Metadata.Version != "1.0.0" {
		t.Errorf("metadata not cached: %+v", snap.Metadata)
	}
}

func TestSetStateRejectsIllegalTransitions(t *testing.T) {
	r := New(bus.New())
	ctx := context.Background()

	r.Add("db", nil)
	r.AttachInstance(ctx, "db", newTestModule("db"))

	// LOADED -> STARTED skips install.
	err := r.SetState(ctx, "db", api.StateStarted)
	if err == nil {
		t.Fatal("illegal transition accepted")
	}
	if !api.IsTransitionError(err) {
		t.Errorf("expected TransitionError, got %T", err)
	}

	state, _ := r.State("db")
	if state != api.StateLoaded {
		t.Errorf("state changed by failed transition: %s", state)
	}
}

func TestTransitionEventSequence(t *testing.T) {
	b := bus.New()
	r := New(b)
	ctx := context.Background()

	var specific []string
	b.Subscribe("module.*", func(ctx context.Context, ev api.Event) error {
		if ev.Type != api.EventModuleStateChanged {
			specific = append(specific, ev.Type)
		}
		return nil
	})

	r.Add("db", nil)
	r.AttachInstance(ctx, "db", newTestModule("db"))
	r.SetState(ctx, "db", api.StateInstalled)
	r.SetState(ctx, "db", api.StateStarted)
	r.SetState(ctx, "db", api.StateStopped)
	r.SetState(ctx, "db", api.StateStarted)
	r.SetState(ctx, "db", api.StateStopped)
	r.SetState(ctx, "db", api.StateLoaded)
	r.SetState(ctx, "db", api.StateNotInstalled)

	expected := []string{
		api.EventModuleLoaded,
		api.EventModuleInstalled,
		api.EventModuleStarted,
		api.EventModuleStopped,
		api.EventModuleStarted,
		api.EventModuleStopped,
		api.EventModuleUninstalled,
		api.EventModuleUnloaded,
	}
	if len(specific) != len(expected) {
		t.Fatalf("got %d specific events %v, want %d", len(specific), specific, len(expected))
	}
	for i := range expected {
		if specific[i] != expected[i] {
			t.Errorf("event %d = %s, want %s", i, specific[i], expected[i])
		}
	}
}

func TestRecordErrorAndReset(t *testing.T) {
	b := bus.New()
	errorEvents := collectEvents(b, api.EventModuleError)
	r := New(b)
	ctx := context.Background()

	r.Add("db", nil)
	r.AttachInstance(ctx, "db", newTestModule("db"))
	r.SetState(ctx, "db", api.StateInstalled)

	cause := errors.New("install blew up")
	r.RecordError(ctx, "db", cause)

	snap, _ := r.Get("db")
	if snap.State != api.StateError {
		t.Errorf("state = %s, want error", snap.State)
	}
	if snap.LastStable != api.StateInstalled {
		t.Errorf("last stable = %s, want installed", snap.LastStable)
	}
	if !errors.Is(snap.Err, cause) {
		t.Errorf("recorded error = %v, want %v", snap.Err, cause)
	}
	if len(*errorEvents) != 1 {
		t.Fatalf("got %d module.error events, want 1", len(*errorEvents))
	}

	if err := r.ResetError(ctx, "db"); err != nil {
		t.Fatalf("ResetError failed: %v", err)
	}
	snap, _ = r.Get("db")
	if snap.State != api.StateInstalled {
		t.Errorf("reset state = %s, want installed (last stable)", snap.State)
	}
	if snap.Err != nil {
		t.Errorf("error not cleared on reset: %v", snap.Err)
	}

	// Resetting a module that is not in ERROR fails.
	if err := r.ResetError(ctx, "db"); err == nil {
		t.Error("ResetError succeeded on a stable module")
	}
}

func TestConfigLifecycle(t *testing.T) {
	r := New(bus.New())
	ctx := context.Background()

	r.Add("db", nil)
	r.AttachInstance(ctx, "db", newTestModule("db"))

	snap, _ := r.Get("db")
	if snap.Config != nil {
		t.Errorf("fresh entry has config: %v", snap.Config)
	}

	cfg := map[string]interface{}{"port": 5432}
	r.SetConfig("db", cfg)
	snap, _ = r.Get("db")
	if snap.Config["port"] != 5432 {
		t.Errorf("config not stored: %v", snap.Config)
	}

	r.SetConfig("db", nil)
	snap, _ = r.Get("db")
	if snap.Config != nil {
		t.Errorf("config not cleared: %v", snap.Config)
	}
}

func TestRemoveAndNotFound(t *testing.T) {
	r := New(bus.New())
	ctx := context.Background()

	r.Add("db", nil)
	r.AttachInstance(ctx, "db", newTestModule("db"))

	if err := r.Remove("db"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if r.Has("db") {
		t.Error("entry still present after Remove")
	}

	if err := r.Remove("db"); !api.IsNotFound(err) {
		t.Errorf("second Remove error = %v, want NotFoundError", err)
	}
	if _, err := r.Get("db"); !api.IsNotFound(err) {
		t.Errorf("Get after Remove error = %v, want NotFoundError", err)
	}
	if _, err := r.Instance("db"); !api.IsNotFound(err) {
		t.Errorf("Instance after Remove error = %v, want NotFoundError", err)
	}
}

func TestListIsSorted(t *testing.T) {
	r := New(bus.New())
	r.Add("zeta", nil)
	r.Add("alpha", nil)
	r.Add("mid", nil)

	snaps := r.List()
	if len(snaps) != 3 {
		t.Fatalf("List returned %d entries", len(snaps))
	}
	if snaps[0].Name != "alpha" || snaps[1].Name != "mid" || snaps[2].Name != "zeta" {
		t.Errorf("List not sorted: %s %s %s", snaps[0].Name, snaps[1].Name, snaps[2].Name)
	}
}
