package options

import "testing"

type testHost struct {
	submitted []*Option
	values    map[string]any
	changed   bool
	hidden    map[string]bool
}

func newTestHost() *testHost {
	return &testHost{values: make(map[string]any), hidden: make(map[string]bool)}
}

func (h *testHost) SetOptions(opts []*Option) { h.submitted = opts }
func (h *testHost) Value(key string) any      { return h.values[key] }

func (h *testHost) Changed() bool {
	c := h.changed
	h.changed = false
	return c
}

func (h *testHost) SetVisible(key string, visible bool) { h.hidden[key] = !visible }

func (h *testHost) set(key string, v any) {
	h.values[key] = v
	h.changed = true
}

func testRegistry() *Registry {
	return New("core_", []*Option{
		{
			Key:   "overclock",
			Label: "Overclock CPU",
			Info:  "May glitch with some programs.",
			Choices: []Value{
				{V: false, Label: "OFF"},
				{V: true, Label: "ON"},
			},
			Default: false,
		},
		{
			Key:   "frameskip",
			Label: "Frame skipping",
			Choices: []Value{
				{V: 0, Label: "None"},
				{V: 1, Label: "One frame"},
				{V: 2, Label: "Two frames"},
			},
			Default: 1,
		},
		{
			Key:   "midi_device",
			Label: "MIDI output device",
		},
	})
}

func TestDefaults(t *testing.T) {
	r := testRegistry()
	if g := r.Bool("overclock"); g != false {
		t.Errorf("overclock default is %v, want false", g)
	}
	if g := r.Int("frameskip"); g != 1 {
		t.Errorf("frameskip default is %d, want 1", g)
	}
}

func TestDefaultNotAChoice(t *testing.T) {
	r := New("core_", []*Option{{
		Key:     "speed",
		Label:   "Speed",
		Choices: []Value{{V: 10}, {V: 20}},
		Default: 30,
	}})
	if g := r.Int("speed"); g != 10 {
		t.Errorf("invalid default resolved to %d, want first choice 10", g)
	}
}

func TestKeyPrefix(t *testing.T) {
	r := testRegistry()
	if g, w := r.Option("overclock").FullKey(), "core_overclock"; g != w {
		t.Errorf("full key is %q, want %q", g, w)
	}
}

func TestHostValues(t *testing.T) {
	r := testRegistry()
	h := newTestHost()
	r.Option("midi_device").SetChoices([]Value{{V: "none"}, {V: "fluidsynth"}}, "none")
	r.SetHost(h)

	if g := len(h.submitted); g != 3 {
		t.Fatalf("host received %d options, want 3", g)
	}
	if r.Changed() {
		t.Error("Changed() true before any host change")
	}

	h.set("core_overclock", true)
	h.set("core_frameskip", 2)
	if !r.Changed() {
		t.Error("Changed() false after host change")
	}
	if r.Changed() {
		t.Error("Changed() did not clear")
	}
	if g := r.Bool("overclock"); g != true {
		t.Errorf("overclock is %v, want true", g)
	}
	if g := r.Int("frameskip"); g != 2 {
		t.Errorf("frameskip is %d, want 2", g)
	}
	if g := r.String("midi_device"); g != "none" {
		t.Errorf("midi_device is %q, want default %q", g, "none")
	}
}

func TestUnsubmittableOption(t *testing.T) {
	r := New("core_", []*Option{{Key: "empty", Label: "No values"}})
	h := newTestHost()
	r.SetHost(h)
	if g := len(h.submitted); g != 0 {
		t.Errorf("host received %d options, want 0", g)
	}
}

func TestSetVisible(t *testing.T) {
	r := testRegistry()
	h := newTestHost()
	r.SetHost(h)
	r.SetVisible(false, "overclock", "frameskip")
	if !h.hidden["core_overclock"] || !h.hidden["core_frameskip"] {
		t.Error("options not hidden on the host")
	}
}

func TestValueCoercion(t *testing.T) {
	for _, c := range []struct {
		v Value
		b bool
		i int
		s string
	}{
		{Value{V: true}, true, 1, "true"},
		{Value{V: false}, false, 0, "false"},
		{Value{V: 3}, true, 3, "3"},
		{Value{V: 0}, false, 0, "0"},
		{Value{V: "true"}, true, 0, "true"},
		{Value{V: "42"}, false, 42, "42"},
	} {
		if g := c.v.Bool(); g != c.b {
			t.Errorf("%v.Bool() = %v, want %v", c.v.V, g, c.b)
		}
		if g := c.v.Int(); g != c.i {
			t.Errorf("%v.Int() = %d, want %d", c.v.V, g, c.i)
		}
		if g := c.v.String(); g != c.s {
			t.Errorf("%v.String() = %q, want %q", c.v.V, g, c.s)
		}
	}
}
