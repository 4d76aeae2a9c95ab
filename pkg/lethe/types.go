package lethe

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the outcome of one anonymization request.
type Result struct {
	Original   string   `json:"original"`
	Anonymized string   `json:"anonymized"`
	Entities   []Entity `json:"entities"`
	// Synthetic is nil unless synthetic generation was requested and the
	// service returned a text.
	Synthetic *string `json:"synthetic,omitempty"`
	// Replacements maps each original value to its fictional stand-in.
	// Only set alongside Synthetic.
	Replacements map[string]string `json:"replacements,omitempty"`
	// Filename is echoed by the file endpoint only.
	Filename string `json:"filename,omitempty"`
}

// HasSynthetic reports whether the service returned a synthetic text.
func (r Result) HasSynthetic() bool {
	return r.Synthetic != nil
}

// Entity is a detected span of personal data.
//
// Text and Label are always present in service output. Start, End, Source
// and Confidence are filled when the service sends them; any other field is
// kept verbatim in Extra. Encoding an Entity that came from the service
// writes back the same object: absent fields stay absent, and known fields
// received as null or "" are re-emitted as received.
type Entity struct {
	Text       string
	Label      string
	Start      *int
	End        *int
	Source     string   // "regex" or "llm"
	Confidence *float64 // 1.0 for rule-based matches

	// Extra holds every other field, keyed exactly as received.
	Extra map[string]json.RawMessage

	// blank keeps known fields that arrived as null or "", so they
	// survive a round trip.
	blank map[string]json.RawMessage
}

// Span returns the entity's offsets. ok is false unless both are set.
func (e Entity) Span() (start, end int, ok bool) {
	if e.Start == nil || e.End == nil {
		return 0, 0, false
	}
	return *e.Start, *e.End, true
}

// WithSpan returns a copy of e with its offsets set.
func (e Entity) WithSpan(start, end int) Entity {
	e.Start, e.End = &start, &end
	return e
}

// UnmarshalJSON decodes the known fields by exact key and keeps every other
// key in Extra.
func (e *Entity) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var out Entity
	fields := []struct {
		key string
		dst any
	}{
		{"text", &out.Text},
		{"label", &out.Label},
		{"start", &out.Start},
		{"end", &out.End},
		{"source", &out.Source},
		{"confidence", &out.Confidence},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		delete(raw, f.key)
		if err := json.Unmarshal(v, f.dst); err != nil {
			return fmt.Errorf("entity %s: %w", f.key, err)
		}
		if isBlank(v) {
			if out.blank == nil {
				out.blank = make(map[string]json.RawMessage)
			}
			out.blank[f.key] = v
		}
	}
	if len(raw) > 0 {
		out.Extra = raw
	}
	*e = out
	return nil
}

// MarshalJSON writes Extra with the known fields laid over it. A known field
// is written when set; otherwise it is written only if it was received
// blank.
func (e Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+6)
	for k, v := range e.Extra {
		out[k] = v
	}
	put := func(key string, set bool, v any) {
		switch {
		case set:
			out[key] = v
		case e.blank[key] != nil:
			out[key] = e.blank[key]
		default:
			delete(out, key)
		}
	}
	put("text", e.Text != "", e.Text)
	put("label", e.Label != "", e.Label)
	put("start", e.Start != nil, e.Start)
	put("end", e.End != nil, e.End)
	put("source", e.Source != "", e.Source)
	put("confidence", e.Confidence != nil, e.Confidence)
	return json.Marshal(out)
}

// isBlank reports whether v is JSON null or an empty string.
func isBlank(v json.RawMessage) bool {
	s := strings.TrimSpace(string(v))
	return s == "null" || s == `""`
}

// HealthStatus is returned by GET /api/health.
type HealthStatus struct {
	Status  string `json:"status"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// OK reports whether the service declared itself healthy.
func (h HealthStatus) OK() bool {
	return h.Status == "ok"
}

// SynthesisResult is returned by POST /api/synthetic.
type SynthesisResult struct {
	Synthetic    *string           `json:"synthetic,omitempty"`
	Replacements map[string]string `json:"replacements,omitempty"`
}

// ---------- wire types ----------

type anonymizeRequest struct {
	Text              string `json:"text"`
	GenerateSynthetic bool   `json:"generateSynthetic"`
}

type batchRequest struct {
	Texts             []string `json:"texts"`
	GenerateSynthetic bool     `json:"generateSynthetic"`
}

type synthesizeRequest struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities"`
}

// resultWire mirrors the service response. Pointer and nil-able fields tell
// an absent (or null) field apart from an empty one.
type resultWire struct {
	Original     *string           `json:"original"`
	Anonymized   *string           `json:"anonymized"`
	Entities     []Entity          `json:"entities"`
	Synthetic    *string           `json:"synthetic"`
	Replacements map[string]string `json:"replacements"`
	Filename     *string           `json:"filename"`
}

type batchResponse struct {
	Results []resultWire `json:"results"`
}

// result applies the field defaults. original is used when the service did
// not echo the input back.
func (w resultWire) result(original string) Result {
	r := Result{
		Original:     original,
		Entities:     w.Entities,
		Synthetic:    w.Synthetic,
		Replacements: w.Replacements,
	}
	if w.Original != nil {
		r.Original = *w.Original
	}
	if w.Anonymized != nil {
		r.Anonymized = *w.Anonymized
	}
	if r.Entities == nil {
		r.Entities = []Entity{}
	}
	if w.Filename != nil {
		r.Filename = *w.Filename
	}
	return r
}
