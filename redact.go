package plotview

import "encoding/json"

// Fields Plotly attaches to events that point back at full trace, axis,
// layout or DOM objects. They are cyclic in the page and meaningless on the
// host.
var redactedFields = [...]string{"fullData", "xaxis", "yaxis", "xaxes", "yaxes", "fullLayout", "node", "frames"}

// Redact strips back-reference fields from an event payload and from each
// element of its "points" array. Payloads that are not JSON objects are
// returned unchanged.
func Redact(payload string) string {
	var event map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &event); err != nil || event == nil {
		return payload
	}
	changed := redactFields(event)

	if raw, ok := event["points"]; ok {
		var points []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &points); err == nil {
			redactedPoints := false
			for _, p := range points {
				if redactFields(p) {
					redactedPoints = true
				}
			}
			if redactedPoints {
				b, err := json.Marshal(points)
				if err != nil {
					return payload
				}
				event["points"] = b
				changed = true
			}
		}
	}

	if !changed {
		return payload
	}
	b, err := json.Marshal(event)
	if err != nil {
		return payload
	}
	return string(b)
}

func redactFields(m map[string]json.RawMessage) bool {
	var changed bool
	for _, k := range redactedFields {
		if _, ok := m[k]; ok {
			delete(m, k)
			changed = true
		}
	}
	return changed
}
