package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotArray is returned when a persisted log is valid JSON but not an array.
var ErrNotArray = errors.New("record: snapshot log is not a JSON array")

// MarshalLog serialises a snapshot log.
func MarshalLog(snaps []Snapshot) ([]byte, error) {
	if snaps == nil {
		snaps = []Snapshot{}
	}
	return json.Marshal(snaps)
}

// UnmarshalLog deserialises a snapshot log. Empty input is an empty log.
func UnmarshalLog(data []byte) ([]Snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] != '[' {
		return nil, ErrNotArray
	}
	var snaps []Snapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// MarshalFields serialises the fields of a snapshot. Two snapshots hold
// the same content exactly when their MarshalFields output is identical.
func MarshalFields(fields []Field) ([]byte, error) {
	if fields == nil {
		fields = []Field{}
	}
	return json.Marshal(fields)
}

// MarshalCandidate serialises a candidate artifact.
func MarshalCandidate(c *Candidate) ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalCandidate deserialises a candidate artifact.
func UnmarshalCandidate(data []byte) (*Candidate, error) {
	var c Candidate
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	for i, d := range c.Diffs {
		switch d.Action {
		case ActionInsert, ActionUpdate, ActionDelete:
		default:
			return nil, fmt.Errorf("record: diff %d: unknown action %q", i, d.Action)
		}
	}
	return &c, nil
}
