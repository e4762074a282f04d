// Package options implements the core-options registry: named,
// enumerated settings that are declared once by the core, submitted to
// the host as early as possible, and queried for live values
// thereafter.
//
// Queries run on whichever thread currently owns execution; nothing
// here may run concurrently with emulation.
package options

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// Value is one permitted choice for an option: a bool, int or string,
// with an optional display label.
type Value struct {
	V     any
	Label string
}

// Bool coerces the value to a bool.
func (v Value) Bool() bool {
	switch v := v.V.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// Int coerces the value to an int.
func (v Value) Int() int {
	switch v := v.V.(type) {
	case bool:
		if v {
			return 1
		}
		return 0
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func (v Value) String() string {
	return fmt.Sprint(v.V)
}

// Option defines one core option. Key is given without the registry
// prefix; the full key is set when the registry is built. Default must
// be one of Choices, otherwise the first choice is used.
type Option struct {
	Key     string
	Label   string
	Info    string
	Choices []Value
	Default any

	fullKey string
}

// FullKey returns the option's key with the registry prefix applied.
func (o *Option) FullKey() string { return o.fullKey }

// SetChoices replaces the option's choices; for options whose values
// can only be constructed at run time. Must be called before the
// registry is submitted to the host.
func (o *Option) SetChoices(choices []Value, def any) {
	o.Choices = choices
	o.Default = def
	o.validate()
}

func (o *Option) validate() {
	for _, c := range o.Choices {
		if c.V == o.Default {
			return
		}
	}
	if len(o.Choices) > 0 {
		o.Default = o.Choices[0].V
	}
}

// Host is what the registry talks to. The frontend implements it.
type Host interface {
	// SetOptions submits the option definitions. Called once.
	SetOptions(opts []*Option)
	// Value returns the live value for the full key, or nil if the
	// host has none.
	Value(key string) any
	// Changed reports whether any value changed since the last call,
	// and clears the flag.
	Changed() bool
	// SetVisible shows or hides an option.
	SetVisible(key string, visible bool)
}

// Registry holds a session's options.
type Registry struct {
	prefix string
	opts   []*Option
	byKey  map[string]*Option
	host   Host
}

// New builds a registry. Every option key is prefixed with prefix;
// lookups use the unprefixed key.
func New(prefix string, opts []*Option) *Registry {
	r := &Registry{
		prefix: prefix,
		opts:   opts,
		byKey:  make(map[string]*Option, len(opts)),
	}
	for _, o := range opts {
		o.fullKey = prefix + o.Key
		o.validate()
		r.byKey[o.Key] = o
	}
	return r
}

// Option returns the definition for the given unprefixed key, or nil.
func (r *Registry) Option(key string) *Option { return r.byKey[key] }

// SetHost submits the registry to the host. Options still without
// choices at this point are dropped with a log line.
func (r *Registry) SetHost(h Host) {
	submit := r.opts[:0:0]
	for _, o := range r.opts {
		if len(o.Choices) == 0 {
			log.Printf("options: %s has no values, not submitted", o.fullKey)
			continue
		}
		submit = append(submit, o)
	}
	r.host = h
	h.SetOptions(submit)
}

// Changed reports whether the host changed any value since last asked.
func (r *Registry) Changed() bool {
	return r.host != nil && r.host.Changed()
}

// SetVisible shows or hides the given options.
func (r *Registry) SetVisible(visible bool, keys ...string) {
	if r.host == nil {
		return
	}
	for _, key := range keys {
		if o := r.byKey[key]; o != nil {
			r.host.SetVisible(o.fullKey, visible)
		}
	}
}

// value returns the live value for key, falling back to the default.
func (r *Registry) value(key string) Value {
	o := r.byKey[key]
	if o == nil {
		log.Printf("options: query for unknown option %q", key)
		return Value{}
	}
	if r.host != nil {
		if v := r.host.Value(o.fullKey); v != nil {
			return Value{V: v}
		}
	}
	return Value{V: o.Default}
}

// Bool returns the current value of the option as a bool.
func (r *Registry) Bool(key string) bool { return r.value(key).Bool() }

// Int returns the current value of the option as an int.
func (r *Registry) Int(key string) int { return r.value(key).Int() }

// String returns the current value of the option as a string.
func (r *Registry) String(key string) string { return r.value(key).String() }
