package core

import "testing"

func TestEventSystemFireOrder(t *testing.T) {
	es := NewEventSystem()

	var calls []string
	first, second := new(int), new(int)
	if !es.Register(EVENT_CODE_TEXTURE_LOADED, first, func(EventContext) bool {
		calls = append(calls, "first")
		return false
	}) {
		t.Fatal("Register: unexpected failure")
	}
	es.Register(EVENT_CODE_TEXTURE_LOADED, second, func(EventContext) bool {
		calls = append(calls, "second")
		return true
	})

	if !es.Fire(EventContext{Type: EVENT_CODE_TEXTURE_LOADED}) {
		t.Fatal("Fire: expected event to be handled")
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("Fire: unexpected call order %v", calls)
	}

	// Duplicate listener must be rejected.
	if es.Register(EVENT_CODE_TEXTURE_LOADED, first, func(EventContext) bool { return false }) {
		t.Fatal("Register: duplicate listener accepted")
	}
}

func TestEventSystemUnregister(t *testing.T) {
	es := NewEventSystem()
	a, b := new(int), new(int)
	var got []*int
	es.Register(EVENT_CODE_SKYBOX_CONVERTED, a, func(EventContext) bool { got = append(got, a); return false })
	es.Register(EVENT_CODE_SKYBOX_CONVERTED, b, func(EventContext) bool { got = append(got, b); return false })

	if !es.Unregister(EVENT_CODE_SKYBOX_CONVERTED, a) {
		t.Fatal("Unregister: listener not found")
	}
	if es.Unregister(EVENT_CODE_SKYBOX_CONVERTED, a) {
		t.Fatal("Unregister: removed the same listener twice")
	}

	if es.Fire(EventContext{Type: EVENT_CODE_SKYBOX_CONVERTED}) {
		t.Fatal("Fire: no listener should have handled the event")
	}
	if len(got) != 1 || got[0] != b {
		t.Fatalf("Fire: expected only the remaining listener, got %d calls", len(got))
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want LogLevel
		err  bool
	}{
		{"debug", LogLevelDebug, false},
		{" INFO ", LogLevelInfo, false},
		{"warn", LogLevelWarn, false},
		{"loud", LogLevelInfo, true},
	} {
		got, err := ParseLogLevel(tc.in)
		if (err != nil) != tc.err {
			t.Fatalf("ParseLogLevel(%q): unexpected error state: %v", tc.in, err)
		}
		if tc.err {
			if !Is(err, ErrInvalidConfig) {
				t.Fatalf("ParseLogLevel(%q): expected ErrInvalidConfig, got %v", tc.in, err)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.010)
	}
	if got := m.FrameTime(); got < 9.99 || got > 10.01 {
		t.Fatalf("FrameTime = %f, want ~10ms", got)
	}
}
