// Package profile holds the data model for profile bisection: immutable
// item-name to payload configurations and the functional overlays the search
// engines probe with. Parsing a raw profile format into items happens upstream;
// the interchange form here is a JSON object mapping names to payload text.
package profile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// Configuration maps item names (e.g. function names) to opaque payload blobs
// for one experiment endpoint. Configurations are treated as immutable once
// loaded; probes are built with Overlay/Union, never by mutating a baseline.
type Configuration map[string]string

// Load reads a JSON object file into a Configuration.
func Load(path string) (Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return cfg, nil
}

// WriteText serializes the configuration to the textual artifact form the
// external decider consumes: each item's name immediately followed by its
// payload, in sorted name order.
func (c Configuration) WriteText(w io.Writer) error {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := io.WriteString(w, name); err != nil {
			return err
		}
		if _, err := io.WriteString(w, c[name]); err != nil {
			return err
		}
	}
	return nil
}

// Common returns the sorted list of item names present in both configurations.
// Only these items can be bisected over.
func Common(good, bad Configuration) []string {
	var names []string
	for name := range good {
		if _, ok := bad[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Overlay returns a copy of base with donor's payloads substituted for the
// given item names. base and donor are left untouched.
func Overlay(base, donor Configuration, names []string) Configuration {
	out := make(Configuration, len(base))
	for name, payload := range base {
		out[name] = payload
	}
	for _, name := range names {
		out[name] = donor[name]
	}
	return out
}

// Union returns a copy of base extended with every donor item that base
// lacks. Items present in both keep base's payload.
func Union(base, donor Configuration) Configuration {
	out := make(Configuration, len(base)+len(donor))
	for name, payload := range donor {
		out[name] = payload
	}
	for name, payload := range base {
		out[name] = payload
	}
	return out
}
