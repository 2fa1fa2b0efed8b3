package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// RoundTrace is the canonical record of what the accumulator did during one
// round: which passes merged, which were replaced or rejected, and what was
// serialized.
//
// It carries no timestamps, round IDs or error strings, so two builds of
// the same inputs produce byte-identical canonical JSON regardless of the
// order in which passes completed.
//
// GraphHash identifies the inputs of the round (the chunk graph hashes of
// the participating passes).
type RoundTrace struct {
	GraphHash string
	Events    []Event
}

// EventKind discriminates Event. The string values are part of the
// canonical bytes; do not rename.
type EventKind string

const (
	EventPassMerged      EventKind = "PassMerged"
	EventPassReplaced    EventKind = "PassReplaced"
	EventPassRejected    EventKind = "PassRejected"
	EventRoundSerialized EventKind = "RoundSerialized"
)

// Event is a single accumulator decision.
type Event struct {
	Kind EventKind

	// PassID is required for pass events.
	PassID string

	// Reason is a stable reason code, e.g. "PassFailed" or "StageFailed".
	Reason string

	// File is the artifact name of a RoundSerialized event.
	File string

	// Keys are the manifest keys a pass contributed. Sorted on encoding.
	Keys []string
}

// Validate checks basic invariants.
func (t *RoundTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.GraphHash == "" {
		return errors.New("graphHash is required")
	}
	for i := range t.Events {
		e := t.Events[i]
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if isPassEvent(e.Kind) && e.PassID == "" {
			return fmt.Errorf("events[%d].passId is required for kind %q", i, e.Kind)
		}
		if e.Kind == EventRoundSerialized && e.File == "" {
			return fmt.Errorf("events[%d].file is required for kind %q", i, e.Kind)
		}
		for j, k := range e.Keys {
			if k == "" {
				return fmt.Errorf("events[%d].keys[%d] is empty", i, j)
			}
		}
	}
	return nil
}

func isPassEvent(kind EventKind) bool {
	switch kind {
	case EventPassMerged, EventPassReplaced, EventPassRejected:
		return true
	default:
		return false
	}
}

// Canonicalize sorts keys within events and events by
// (passId, kind, reason, file, keys). Empty Keys become nil.
func (t *RoundTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		if len(t.Events[i].Keys) == 0 {
			t.Events[i].Keys = nil
			continue
		}
		keys := make([]string, len(t.Events[i].Keys))
		copy(keys, t.Events[i].Keys)
		sort.Strings(keys)
		t.Events[i].Keys = keys
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a := t.Events[i]
		b := t.Events[j]

		if a.PassID != b.PassID {
			return a.PassID < b.PassID
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return compareStringSlices(a.Keys, b.Keys)
	})
}

func kindOrder(k EventKind) int {
	switch k {
	case EventPassMerged:
		return 10
	case EventPassReplaced:
		return 20
	case EventPassRejected:
		return 30
	case EventRoundSerialized:
		return 40
	default:
		return 1000
	}
}

func compareStringSlices(a, b []string) bool {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			continue
		}
		return a[i] < b[i]
	}
	return len(a) < len(b)
}

// CanonicalJSON returns the canonical JSON encoding of the trace without
// mutating t.
func (t RoundTrace) CanonicalJSON() ([]byte, error) {
	c := RoundTrace{GraphHash: t.GraphHash}
	c.Events = make([]Event, len(t.Events))
	copy(c.Events, t.Events)
	c.Canonicalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&c)
}

// Hash returns the blake3 hex hash of the canonical JSON.
func (t RoundTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// MarshalJSON fixes field order. It does not sort; use CanonicalJSON.
func (t RoundTrace) MarshalJSON() ([]byte, error) {
	if t.GraphHash == "" {
		return nil, errors.New("graphHash is required")
	}
	var buf bytes.Buffer
	buf.WriteString("{\"graphHash\":")
	gh, _ := json.Marshal(t.GraphHash)
	buf.Write(gh)
	buf.WriteString(",\"events\":[")
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes field order and omits empty optional fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var keys []string
	if len(e.Keys) > 0 {
		keys = make([]string, len(e.Keys))
		copy(keys, e.Keys)
		sort.Strings(keys)
	}

	var buf bytes.Buffer
	buf.WriteString("{\"kind\":")
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)

	writeString := func(name, v string) {
		if v == "" {
			return
		}
		buf.WriteString(",\"" + name + "\":")
		b, _ := json.Marshal(v)
		buf.Write(b)
	}
	writeString("passId", e.PassID)
	writeString("reason", e.Reason)
	writeString("file", e.File)

	if len(keys) > 0 {
		buf.WriteString(",\"keys\":")
		b, _ := json.Marshal(keys)
		buf.Write(b)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
