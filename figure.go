package plotview

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Trace is a single Plotly trace, e.g. {"type": "scatter", "x": [...], "y": [...]}.
type Trace map[string]any

// Figure is the Plotly figure representation. Any other value that encodes to
// the same JSON shape may be passed to Widget.SetFigure instead.
type Figure struct {
	Data   []Trace          `json:"data"`
	Layout map[string]any   `json:"layout,omitempty"`
	Frames []map[string]any `json:"frames,omitempty"`
	Config map[string]any   `json:"config,omitempty"`
}

// Marshal encodes a figure for the page. The result is always a JSON object;
// anything else is reported as ErrSerialization.
func Marshal(fig any) ([]byte, error) {
	b, err := json.Marshal(fig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if len(b) == 0 || b[0] != '{' {
		return nil, fmt.Errorf("%w: figure must encode to a JSON object, got %.20s", ErrSerialization, b)
	}
	return b, nil
}

// ParseFigure decodes a figure. Numbers are kept as json.Number so that values
// survive a round trip without precision loss.
func ParseFigure(b []byte) (Figure, error) {
	var fig Figure
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&fig); err != nil {
		return Figure{}, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return fig, nil
}
