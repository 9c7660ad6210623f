// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package cuckoo

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MaxProperties bounds the plugin property registry: a small, fixed-size
// surface describing the solver's tunables to an embedder, not a general
// key/value store.
const MaxProperties = 32

// MaxPropertyNameLen and MaxPropertyDescriptionLen bound the two string
// fields of a PropertyDescriptor.
const (
	MaxPropertyNameLen        = 64
	MaxPropertyDescriptionLen = 256
)

var (
	// ErrTooManyProperties is returned once MaxProperties descriptors are
	// already registered and name is not one of them.
	ErrTooManyProperties = fmt.Errorf("cuckoo: cannot register more than %d properties", MaxProperties)

	// ErrPropertyNameTooLong is returned by Register when Name exceeds
	// MaxPropertyNameLen.
	ErrPropertyNameTooLong = fmt.Errorf("cuckoo: property name exceeds %d bytes", MaxPropertyNameLen)

	// ErrPropertyDescriptionTooLong is returned by Register when
	// Description exceeds MaxPropertyDescriptionLen.
	ErrPropertyDescriptionTooLong = fmt.Errorf("cuckoo: property description exceeds %d bytes", MaxPropertyDescriptionLen)

	// ErrPropertyRangeInvalid is returned by Register when Default falls
	// outside [Min, Max].
	ErrPropertyRangeInvalid = fmt.Errorf("cuckoo: property default must fall within [min, max]")
)

// PropertyDescriptor describes one named solver tunable: its bounds and
// default, and whether it must be set identically on every device in a
// multi-device solve or may vary per device.
type PropertyDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     uint32 `json:"default"`
	Min         uint32 `json:"min"`
	Max         uint32 `json:"max"`
	PerDevice   bool   `json:"per_device"`
}

func (d PropertyDescriptor) validate() error {
	if len(d.Name) > MaxPropertyNameLen {
		return ErrPropertyNameTooLong
	}
	if len(d.Description) > MaxPropertyDescriptionLen {
		return ErrPropertyDescriptionTooLong
	}
	if d.Default < d.Min || d.Default > d.Max {
		return ErrPropertyRangeInvalid
	}
	return nil
}

// PropertyRegistry is a small, JSON-array-serializable table of named
// tunable descriptors, keyed by name and kept in registration order.
type PropertyRegistry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]PropertyDescriptor
}

// NewPropertyRegistry returns an empty registry.
func NewPropertyRegistry() *PropertyRegistry {
	return &PropertyRegistry{byName: make(map[string]PropertyDescriptor)}
}

// DefaultPropertyRegistry returns a registry pre-populated with
// descriptors for this package's solver tunables, using a representative
// typical-size Params (EdgeBits=29) to compute their default values.
func DefaultPropertyRegistry() *PropertyRegistry {
	p := NewParams(29)
	r := NewPropertyRegistry()

	must := func(d PropertyDescriptor) {
		if err := r.Register(d); err != nil {
			panic(err) // only reachable if the descriptors below are malformed
		}
	}

	must(PropertyDescriptor{
		Name:        "EdgeBits",
		Description: "log2 of the number of candidate edges in the graph",
		Default:     uint32(p.EdgeBits),
		Min:         MinEdgeBits,
		Max:         63,
	})
	must(PropertyDescriptor{
		Name:        "NumTrims",
		Description: "number of scheduled leaf-pruning rounds run after edge generation",
		Default:     p.NumTrims,
		Min:         8,
		Max:         1 << 20,
		PerDevice:   true,
	})
	must(PropertyDescriptor{
		Name:        "NumThreads",
		Description: "worker goroutine pool size for the trimming pipeline",
		Default:     uint32(p.NumThreads),
		Min:         1,
		Max:         1024,
		PerDevice:   true,
	})
	must(PropertyDescriptor{
		Name:        "CompressRound",
		Description: "round at which the first per-tile rename ladder runs",
		Default:     p.CompressRound,
		Min:         1,
		Max:         1 << 20,
	})
	must(PropertyDescriptor{
		Name:        "ExpandRound",
		Description: "round after which both sides are addressed as plain graph endpoints",
		Default:     p.ExpandRound,
		Min:         1,
		Max:         1 << 20,
	})

	return r
}

// Register adds or replaces a named property descriptor, validating its
// field lengths and default/min/max range.
func (r *PropertyRegistry) Register(d PropertyDescriptor) error {
	if err := d.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[d.Name]; !exists {
		if len(r.order) >= MaxProperties {
			return ErrTooManyProperties
		}
		r.order = append(r.order, d.Name)
	}
	r.byName[d.Name] = d
	return nil
}

// Get returns the named property descriptor, if registered.
func (r *PropertyRegistry) Get(name string) (PropertyDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// Delete removes a named property, if present.
func (r *PropertyRegistry) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Names returns the registered property names in registration order.
func (r *PropertyRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// MarshalJSON encodes the registry as a JSON array of descriptors, in
// registration order.
func (r *PropertyRegistry) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]PropertyDescriptor, len(r.order))
	for i, name := range r.order {
		descs[i] = r.byName[name]
	}
	return json.Marshal(descs)
}

// UnmarshalJSON replaces the registry's contents from a JSON array of
// descriptors, subject to the same MaxProperties cap and per-descriptor
// validation as Register.
func (r *PropertyRegistry) UnmarshalJSON(data []byte) error {
	var descs []PropertyDescriptor
	if err := json.Unmarshal(data, &descs); err != nil {
		return err
	}
	if len(descs) > MaxProperties {
		return ErrTooManyProperties
	}
	for _, d := range descs {
		if err := d.validate(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName = make(map[string]PropertyDescriptor, len(descs))
	r.order = r.order[:0]
	for _, d := range descs {
		r.byName[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return nil
}
