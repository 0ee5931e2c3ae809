// Package models defines the schemaless document shape stored in every
// collection, plus the nested video comment record.
package models

import "time"

// Reserved field names managed by the store rather than by callers.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldComments  = "comments"
)

// Document is one entity of a collection: a mapping of named fields to
// scalar, string-array, or nested-object values. The application id lives
// under "id" and is assigned by the client; "createdAt" is assigned by the
// store at insertion.
type Document map[string]any

// ID returns the application id, or "" when unset.
func (d Document) ID() string {
	s, _ := d[FieldID].(string)
	return s
}

// StringField returns the named field if it holds a non-empty string.
func (d Document) StringField(name string) (string, bool) {
	s, ok := d[name].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// StringSlice returns the named field coerced to a string slice. JSON
// decoding yields []any, so both representations are accepted.
func (d Document) StringSlice(name string) []string {
	switch v := d[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Clone returns a shallow copy. Nested values are shared; callers that
// mutate nested state must copy it themselves.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Comment is one append-only video comment. Comments are never edited or
// individually deleted.
type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
