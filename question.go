package mooceditor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Question is one record of a quiz document. Common keys live in named
// fields, the type-specific keys in Payload, and keys this package does
// not know about in Extra so they survive a load/save cycle.
type Question struct {
	Type    Type
	Text    string
	Hint    string
	Media   *Media
	Lesson  *Lesson
	Payload Payload
	Extra   map[string]json.RawMessage

	decodeErr error
}

// DecodeErr returns the error hit while decoding the payload of a known
// type. Such a question keeps its raw keys and cannot be edited.
func (q *Question) DecodeErr() error {
	return q.decodeErr
}

// MarshalJSON writes one flat object with sorted keys and no HTML escaping.
func (q Question) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(q.Extra)+8)
	for k, v := range q.Extra {
		fields[k] = v
	}

	if q.Payload != nil && q.decodeErr == nil {
		raw, err := encodeJSON(q.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", q.Type, err)
		}
		var payloadFields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &payloadFields); err != nil {
			return nil, fmt.Errorf("failed to split %s payload: %w", q.Type, err)
		}
		for k, v := range payloadFields {
			fields[k] = v
		}
	}

	if q.Type != "" {
		fields["type"] = mustString(string(q.Type))
	}
	// an empty or null prompt read from the file is still in Extra
	if _, kept := fields["question"]; q.Text != "" || (!kept && q.Type != TypeMultiQuestions) {
		fields["question"] = mustString(q.Text)
	}
	if q.Hint != "" {
		fields["hint"] = mustString(q.Hint)
	}
	switch {
	case q.Media != nil:
		raw, err := encodeJSON(q.Media)
		if err != nil {
			return nil, fmt.Errorf("failed to encode media: %w", err)
		}
		fields["media"] = raw
	case q.Payload != nil && q.Type != TypeMultiQuestions:
		if _, kept := fields["media"]; !kept {
			fields["media"] = json.RawMessage("null")
		}
	}
	if q.Lesson != nil {
		raw, err := encodeJSON(q.Lesson)
		if err != nil {
			return nil, fmt.Errorf("failed to encode lesson: %w", err)
		}
		fields["lesson"] = raw
	}

	return encodeSorted(fields)
}

// UnmarshalJSON decodes a question object. Unknown types and payloads
// that fail to decode are kept verbatim rather than rejected.
func (q *Question) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("question must be a JSON object: %w", err)
	}
	if fields == nil {
		return errors.New("question must be a JSON object, got null")
	}

	*q = Question{}
	if s, ok := takeString(fields, "type"); ok {
		q.Type = Type(s)
	}
	q.Text = takeText(fields, "question")
	q.Hint = takeText(fields, "hint")
	if raw, ok := fields["media"]; ok {
		var m *Media
		if err := json.Unmarshal(raw, &m); err == nil {
			q.Media = m
			delete(fields, "media")
		}
	}
	if raw, ok := fields["lesson"]; ok {
		var l *Lesson
		if err := json.Unmarshal(raw, &l); err == nil {
			q.Lesson = l
			delete(fields, "lesson")
		}
	}

	if p := newPayload(q.Type); p != nil {
		if err := json.Unmarshal(data, p); err != nil {
			q.decodeErr = fmt.Errorf("failed to decode %s payload: %w", q.Type, err)
		} else {
			p.fillDefaults()
			q.Payload = p
			for _, key := range payloadKeys(p) {
				delete(fields, key)
			}
		}
	}

	if len(fields) > 0 {
		q.Extra = fields
	}
	return nil
}

// Clone returns a deep copy of q.
func (q *Question) Clone() (*Question, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to copy question: %w", err)
	}
	var out Question
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to copy question: %w", err)
	}
	return &out, nil
}

// Editable returns ErrUnknownType or ErrUndecoded when q has no usable payload.
func (q *Question) Editable() error {
	if q.decodeErr != nil {
		return fmt.Errorf("%w: %v", ErrUndecoded, q.decodeErr)
	}
	if q.Payload == nil {
		return fmt.Errorf("%w: %q", ErrUnknownType, q.Type)
	}
	return nil
}

func payloadKeys(p Payload) []string {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// takeText moves a non-empty string out of fields. Empty strings and
// nulls stay behind so they are written back as they were.
func takeText(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return ""
	}
	delete(fields, key)
	return s
}

func takeString(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	delete(fields, key)
	if s == nil {
		return "", true
	}
	return *s, true
}

// encodeJSON marshals v without HTML escaping and without the trailing
// newline json.Encoder appends.
func encodeJSON(v interface{}) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// decodeObject decodes data into known, which must not have its own
// UnmarshalJSON, and returns the keys known does not model. A null value
// stays in the returned keys even for a modelled key so that it is not
// written back as a zero value.
func decodeObject(data []byte, known interface{}, keys ...string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if raw, ok := fields[k]; ok && !isNull(raw) {
			delete(fields, k)
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// encodeObject writes known merged with extra. Modelled keys win, except
// that a kept null replaces an empty or missing value.
func encodeObject(known interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	raw, err := encodeJSON(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return raw, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range extra {
		cur, ok := fields[k]
		if !ok || (isNull(v) && string(cur) == `""`) {
			fields[k] = v
		}
	}
	return encodeSorted(fields)
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func encodeSorted(fields map[string]json.RawMessage) ([]byte, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(mustString(k))
		buf.WriteByte(':')
		buf.Write(fields[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func mustString(s string) json.RawMessage {
	raw, err := encodeJSON(s)
	if err != nil {
		return json.RawMessage(`""`)
	}
	return raw
}
