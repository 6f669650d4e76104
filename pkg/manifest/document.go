package manifest

import (
	"bytes"
	"encoding/json"
	"reflect"
	"slices"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/matzehuels/npmunifier/pkg/errors"
)

// Document is a package manifest: an ordered mapping of top-level keys to
// JSON values. Key order is preserved from parse to write, and nested values
// are kept verbatim, so hand-authored manifests round-trip unchanged.
type Document struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{values: make(map[string]json.RawMessage)}
}

// Parse decodes a JSON object into a Document.
// Anything other than a single JSON object fails with MANIFEST_PARSE_ERROR.
func Parse(data []byte) (*Document, error) {
	d := NewDocument()
	l := jlexer.Lexer{Data: data}
	d.UnmarshalEasyJSON(&l)
	if err := l.Error(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeManifestParse, err, "invalid manifest JSON")
	}
	return d, nil
}

// UnmarshalEasyJSON implements easyjson.Unmarshaler.
func (d *Document) UnmarshalEasyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	if d.values == nil {
		d.values = make(map[string]json.RawMessage)
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.String()
		in.WantColon()
		raw := in.Raw()
		if in.Ok() {
			d.setRaw(key, bytes.Clone(raw))
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

// MarshalEasyJSON implements easyjson.Marshaler.
func (d *Document) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	for i, k := range d.keys {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(k)
		w.RawByte(':')
		w.Raw(d.values[k], nil)
	}
	w.RawByte('}')
}

// MarshalJSON returns the compact JSON encoding, keys in document order.
// Characters such as '&' and '>' are written as is.
func (d *Document) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{NoEscapeHTML: true}
	d.MarshalEasyJSON(&w)
	return w.BuildBytes()
}

// Marshal encodes v as compact JSON without HTML escaping, so shell
// operators and version ranges keep their literal spelling.
func Marshal(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON replaces the document's content.
func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}

// Bytes returns the document as indented JSON (two spaces, trailing
// newline), the layout npm itself writes.
func (d *Document) Bytes() ([]byte, error) {
	compact, err := d.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode manifest")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "indent manifest")
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Keys returns the top-level keys in document order.
func (d *Document) Keys() []string { return slices.Clone(d.keys) }

// Len returns the number of top-level keys.
func (d *Document) Len() int { return len(d.keys) }

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Raw returns the verbatim JSON value for key.
func (d *Document) Raw(key string) (json.RawMessage, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Get decodes the value for key into a generic JSON value.
func (d *Document) Get(key string) (any, bool) {
	raw, ok := d.values[key]
	if !ok {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

// Decode unmarshals the value for key into v. Missing keys leave v untouched.
func (d *Document) Decode(key string, v any) error {
	raw, ok := d.values[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidManifest, err, "decode %q", key)
	}
	return nil
}

// StringField returns a top-level string field, or "" when absent or not a string.
func (d *Document) StringField(key string) string {
	var s string
	if err := d.Decode(key, &s); err != nil {
		return ""
	}
	return s
}

// Name returns the "name" field.
func (d *Document) Name() string { return d.StringField("name") }

// Version returns the "version" field.
func (d *Document) Version() string { return d.StringField("version") }

// Scripts returns the "scripts" mapping.
func (d *Document) Scripts() map[string]string {
	var s map[string]string
	_ = d.Decode("scripts", &s)
	return s
}

// Set encodes v and stores it under key. New keys are appended; existing
// keys keep their position.
func (d *Document) Set(key string, v any) error {
	raw, err := Marshal(v)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidManifest, err, "encode %q", key)
	}
	d.setRaw(key, raw)
	return nil
}

// SetRaw stores a pre-encoded JSON value under key.
func (d *Document) SetRaw(key string, raw json.RawMessage) error {
	if !json.Valid(raw) {
		return errors.New(errors.ErrCodeInvalidManifest, "invalid JSON value for %q", key)
	}
	d.setRaw(key, bytes.Clone(raw))
	return nil
}

// Delete removes key.
func (d *Document) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	d.keys = slices.DeleteFunc(d.keys, func(k string) bool { return k == key })
}

// Merge copies every top-level key of src into d, replacing values that
// differ and appending keys d lacks. Keys present only in d are preserved.
// It returns the keys whose value changed, in src order.
func (d *Document) Merge(src *Document) []string {
	var changed []string
	for _, k := range src.keys {
		raw := src.values[k]
		if old, ok := d.values[k]; ok && jsonEqual(old, raw) {
			continue
		}
		d.setRaw(k, bytes.Clone(raw))
		changed = append(changed, k)
	}
	return changed
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := &Document{
		keys:   slices.Clone(d.keys),
		values: make(map[string]json.RawMessage, len(d.values)),
	}
	for k, v := range d.values {
		c.values[k] = bytes.Clone(v)
	}
	return c
}

// Equal reports whether both documents hold the same keys, order and values.
func (d *Document) Equal(other *Document) bool {
	if !slices.Equal(d.keys, other.keys) {
		return false
	}
	for k, v := range d.values {
		if !jsonEqual(v, other.values[k]) {
			return false
		}
	}
	return true
}

func (d *Document) setRaw(key string, raw json.RawMessage) {
	if d.values == nil {
		d.values = make(map[string]json.RawMessage)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = raw
}

// jsonEqual reports whether two JSON values decode to the same value, so
// whitespace and string escapes ("\u0026" vs "&") do not count as changes.
// Numbers compare by their literal text.
func jsonEqual(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	va, errA := decodeValue(a)
	vb, errB := decodeValue(b)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Ensure Document implements the easyjson codec interfaces.
var (
	_ easyjson.Marshaler   = (*Document)(nil)
	_ easyjson.Unmarshaler = (*Document)(nil)
)
