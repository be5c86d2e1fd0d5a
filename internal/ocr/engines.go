// internal/ocr/engines.go
package ocr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

type EngineState struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Enabled   bool    `json:"enabled"`
	Available bool    `json:"available"`
	Reason    *string `json:"reason"`
}

// NormalizeEngines accepts the engine list as a bare array, as
// {"engines": [...]}, or as an object of engine records keyed by id.
func NormalizeEngines(body []byte) ([]EngineState, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty engine list response")
	}

	var engines []EngineState
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &engines); err != nil {
			return nil, fmt.Errorf("malformed engine list: %w", err)
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, fmt.Errorf("malformed engine list: %w", err)
		}
		if inner, ok := obj["engines"]; ok {
			return NormalizeEngines(inner)
		}
		var err error
		if engines, err = enginesFromRecords(obj); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("engine list is neither an array nor an object")
	}

	if engines == nil {
		engines = []EngineState{}
	}
	for i, e := range engines {
		if e.ID == "" {
			return nil, fmt.Errorf("engine at position %d has no id", i)
		}
	}
	return engines, nil
}

func enginesFromRecords(obj map[string]json.RawMessage) ([]EngineState, error) {
	ids := make([]string, 0, len(obj))
	for id := range obj {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	engines := make([]EngineState, 0, len(ids))
	for _, id := range ids {
		var e EngineState
		if err := json.Unmarshal(obj[id], &e); err != nil {
			return nil, fmt.Errorf("malformed engine record %q: %w", id, err)
		}
		if e.ID == "" {
			e.ID = id
		}
		engines = append(engines, e)
	}
	return engines, nil
}
