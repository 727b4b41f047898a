/*Package control is a typed model of the settings a camera exposes.

A tree is made of Nodes.  Node is a closed set: *Group, *Button, *Choice,
*Range, *Text, *Toggle and *Date.  Every node embeds a Base carrying its
path, device id, label, description and read-only flag; the per-kind payload
lives on the concrete type.  Use Kind or a type switch to branch on it.

Choice, Range, Text and Toggle are Watchable: callbacks registered with
Watch run after every SetValue.  Button and Date have no change hook.

Trees are not safe for concurrent use.
*/
package control

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrReadOnly is returned when setting the value of a read only node
	ErrReadOnly = errors.New("control is read only")

	// ErrOutOfRange is returned when a Range is set outside of [Min, Max]
	ErrOutOfRange = errors.New("value outside of the range of the control")
)

// Kind enumerates the node types
type Kind int

const (
	KindGroup Kind = iota
	KindButton
	KindChoice
	KindRange
	KindText
	KindToggle
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindButton:
		return "button"
	case KindChoice:
		return "choice"
	case KindRange:
		return "range"
	case KindText:
		return "text"
	case KindToggle:
		return "toggle"
	case KindDate:
		return "date"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Base is the envelope shared by all nodes
type Base struct {
	// Path is the slash joined names from the root, unique within a tree
	Path string `json:"path"`

	// ID is assigned by the device and identifies the setting when
	// writing it back
	ID int `json:"id"`

	Label    string `json:"label"`
	Info     string `json:"info"`
	ReadOnly bool   `json:"readonly"`
}

// Common returns the envelope
func (b *Base) Common() *Base { return b }

// Node is one element of a control tree
type Node interface {
	Kind() Kind
	Common() *Base
	node()
}

// Watchable nodes notify callbacks when their value is set
type Watchable interface {
	Node
	// Watch registers fn and returns a function that removes it
	Watch(fn func(Node)) (unwatch func())
}

// watchers is an ordered list of callbacks
type watchers struct {
	mu   sync.Mutex
	next int
	fns  []watcher
}

type watcher struct {
	id int
	fn func(Node)
}

func (w *watchers) add(fn func(Node)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.next
	w.next++
	w.fns = append(w.fns, watcher{id, fn})
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		for i, x := range w.fns {
			if x.id == id {
				w.fns = append(w.fns[:i:i], w.fns[i+1:]...)
				return
			}
		}
	}
}

func (w *watchers) notify(n Node) {
	w.mu.Lock()
	fns := append([]watcher(nil), w.fns...)
	w.mu.Unlock()
	for _, x := range fns {
		x.fn(n)
	}
}

// Group holds children in device order
type Group struct {
	Base
	children []Node
}

func (*Group) Kind() Kind { return KindGroup }
func (*Group) node()      {}

// Add appends a child
func (g *Group) Add(n Node) { g.children = append(g.children, n) }

// Count returns the number of children
func (g *Group) Count() int { return len(g.children) }

// Get returns the i-th child, or nil if out of bounds
func (g *Group) Get(i int) Node {
	if i < 0 || i >= len(g.children) {
		return nil
	}
	return g.children[i]
}

// Children returns a copy of the child list
func (g *Group) Children() []Node {
	return append([]Node(nil), g.children...)
}

// Button is a momentary action with no value
type Button struct {
	Base
}

func (*Button) Kind() Kind { return KindButton }
func (*Button) node()      {}

// Choice selects one of a list of strings
type Choice struct {
	Base
	Choices []string `json:"choices"`
	value   string
	w       watchers
}

func (*Choice) Kind() Kind { return KindChoice }
func (*Choice) node()      {}

// Value returns the current selection
func (c *Choice) Value() string { return c.value }

// SetValue changes the selection and notifies watchers
func (c *Choice) SetValue(v string) error {
	if c.ReadOnly {
		return ErrReadOnly
	}
	c.value = v
	c.w.notify(c)
	return nil
}

func (c *Choice) Watch(fn func(Node)) func() { return c.w.add(fn) }

// Range is a float bounded by Min and Max
type Range struct {
	Base
	Min   float32 `json:"min"`
	Max   float32 `json:"max"`
	Step  float32 `json:"step"`
	value float32
	w     watchers
}

func (*Range) Kind() Kind { return KindRange }
func (*Range) node()      {}

// Value returns the current value
func (r *Range) Value() float32 { return r.value }

// SetValue changes the value and notifies watchers
func (r *Range) SetValue(v float32) error {
	if r.ReadOnly {
		return ErrReadOnly
	}
	if v < r.Min || v > r.Max {
		return fmt.Errorf("%w: %g not in [%g, %g]", ErrOutOfRange, v, r.Min, r.Max)
	}
	r.value = v
	r.w.notify(r)
	return nil
}

func (r *Range) Watch(fn func(Node)) func() { return r.w.add(fn) }

// Text is a free form string
type Text struct {
	Base
	value string
	w     watchers
}

func (*Text) Kind() Kind { return KindText }
func (*Text) node()      {}

// Value returns the current value
func (t *Text) Value() string { return t.value }

// SetValue changes the value and notifies watchers
func (t *Text) SetValue(v string) error {
	if t.ReadOnly {
		return ErrReadOnly
	}
	t.value = v
	t.w.notify(t)
	return nil
}

func (t *Text) Watch(fn func(Node)) func() { return t.w.add(fn) }

// Toggle is an on/off setting
type Toggle struct {
	Base
	value bool
	w     watchers
}

func (*Toggle) Kind() Kind { return KindToggle }
func (*Toggle) node()      {}

// Value returns the current state
func (t *Toggle) Value() bool { return t.value }

// SetValue changes the state and notifies watchers
func (t *Toggle) SetValue(v bool) error {
	if t.ReadOnly {
		return ErrReadOnly
	}
	t.value = v
	t.w.notify(t)
	return nil
}

func (t *Toggle) Watch(fn func(Node)) func() { return t.w.add(fn) }

// Date is a timestamp, displayed but never written back
type Date struct {
	Base
	value int
}

func (*Date) Kind() Kind { return KindDate }
func (*Date) node()      {}

// Value returns the timestamp in seconds since the epoch
func (d *Date) Value() int { return d.value }
