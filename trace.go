package flags

import (
	"encoding/json"
)

// Trace records which override layers supplied a value for a path, weakest
// first.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how a specific scope contributed to a traced path.
type Provenance struct {
	Scope   Scope  `json:"scope"`
	Source  string `json:"source,omitempty"`
	Path    string `json:"path"`
	Value   any    `json:"value,omitempty"`
	Applied bool   `json:"applied"`
}

// Effective returns the strongest layer whose value was applied.
func (t Trace) Effective() (Provenance, bool) {
	for i := len(t.Layers) - 1; i >= 0; i-- {
		if t.Layers[i].Applied {
			return t.Layers[i], true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
