package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/forgecrew/foreman/internal/constants"
	foremanerrors "github.com/forgecrew/foreman/internal/errors"
)

// EncodeState serializes the state document to indented JSON.
//
// Timestamps serialize as RFC 3339 with nanosecond precision in UTC, so a
// persist/reload cycle reproduces identical time values with no zone drift.
// Encoding normalizes every timestamp to UTC first; decoding verifies the
// schema version. This is the only encode/decode pair for the aggregate
// document; callers never hand-marshal State.
func EncodeState(st *State) ([]byte, error) {
	if st == nil {
		return nil, fmt.Errorf("failed to encode state: state %w", foremanerrors.ErrEmptyValue)
	}
	st.SchemaVersion = constants.StateSchemaVersion
	normalizeTimestamps(st)

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

// DecodeState parses a state document and validates its schema version.
func DecodeState(data []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode state: corrupted document: %w", err)
	}
	if st.SchemaVersion != constants.StateSchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d",
			foremanerrors.ErrSchemaVersion, st.SchemaVersion, constants.StateSchemaVersion)
	}
	return &st, nil
}

// CloneState deep-copies a state document through the codec. The recovery
// manager uses this to snapshot state without sharing any mutable slices or
// maps with the live document.
func CloneState(st *State) (*State, error) {
	data, err := EncodeState(st)
	if err != nil {
		return nil, err
	}
	return DecodeState(data)
}

// normalizeTimestamps converts every timestamp in the document to UTC so the
// round-trip property holds regardless of the host zone.
func normalizeTimestamps(st *State) {
	st.CreatedAt = st.CreatedAt.UTC()
	st.UpdatedAt = st.UpdatedAt.UTC()
	for _, m := range st.Milestones {
		m.StartedAt = toUTC(m.StartedAt)
		m.CompletedAt = toUTC(m.CompletedAt)
	}
	for _, t := range st.Tasks {
		t.CreatedAt = t.CreatedAt.UTC()
		t.StartedAt = toUTC(t.StartedAt)
		t.CompletedAt = toUTC(t.CompletedAt)
	}
	for _, m := range st.Metrics {
		m.LastActiveAt = toUTC(m.LastActiveAt)
	}
	for i := range st.ErrorLog {
		st.ErrorLog[i].Timestamp = st.ErrorLog[i].Timestamp.UTC()
	}
}

// toUTC converts an optional timestamp to UTC, preserving nil.
func toUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
