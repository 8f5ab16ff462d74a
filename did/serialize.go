package did

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// dateFormat is the wire form of every timestamp: UTC, second precision,
// trailing Z. Emission always uses this form; parsing additionally accepts
// any RFC 3339 time and normalizes it.
const dateFormat = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(dateFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC().Truncate(time.Second), nil
}

// marshalOptions selects between the two canonical renderings. The
// normalized form spells out every field; the compact form applies the
// omission rules and renders DIDURLs relative to ref. forSigning drops
// the proof so the output is exactly the bytes a signature covers.
type marshalOptions struct {
	normalized bool
	forSigning bool
	ref        DID
}

func renderURL(id DIDURL, opts marshalOptions) string {
	if !opts.normalized {
		return id.StringWithRef(opts.ref)
	}
	return id.String()
}

// stringEntry decodes a JSON array element that may be either a plain
// string reference or an inline object. It returns the string and true
// for the former.
func stringEntry(entry json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(entry, &s); err != nil {
		return "", false
	}
	return s, true
}

// rawSubject serializes a credential subject with the subject id first
// and every claim after it in ascending key order. Nested objects are
// ordered by encoding/json's own map-key sorting, so the whole subject
// marshals deterministically.
type rawSubject struct {
	ID     string
	Claims map[string]interface{}
}

func (s *rawSubject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if s.ID != "" {
		buf.WriteString(`"id":`)
		id, err := json.Marshal(s.ID)
		if err != nil {
			return nil, err
		}
		buf.Write(id)
	}
	keys := make([]string, 0, len(s.Claims))
	for k := range s.Claims {
		if k == "id" {
			continue
		}
		keys = append(keys, k)
	}
	slices.SortFunc(keys, strings.Compare)
	for _, k := range keys {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(s.Claims[k])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *rawSubject) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return err
	}
	if id, ok := m["id"].(string); ok {
		s.ID = id
		delete(m, "id")
	}
	s.Claims = m
	return nil
}

func cloneClaims(claims map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(claims))
	for k, v := range claims {
		out[k] = cloneClaimValue(v)
	}
	return out
}

func cloneClaimValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneClaims(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneClaimValue(e)
		}
		return out
	default:
		return v
	}
}
