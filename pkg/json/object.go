package json

import (
	"bytes"
	"fmt"
	"io"
	"math"

	gojson "github.com/goccy/go-json"
)

// ObjectWriter appends one flat JSON object at a time, keeping fields in the
// order they are added.
type ObjectWriter struct {
	buf    []byte
	fields int
}

// Begin starts a new object, discarding any previous one.
func (w *ObjectWriter) Begin() {
	w.buf = append(w.buf[:0], '{')
	w.fields = 0
}

// Null adds key with a null value.
func (w *ObjectWriter) Null(key string) error {
	if err := w.key(key); err != nil {
		return err
	}
	w.buf = append(w.buf, "null"...)
	return nil
}

// Value adds key with v marshalled by goccy/go-json.
func (w *ObjectWriter) Value(key string, v interface{}) error {
	if err := w.key(key); err != nil {
		return err
	}
	data, err := gojson.Marshal(v)
	if err != nil {
		return err
	}
	w.buf = append(w.buf, data...)
	return nil
}

// Float adds key with f. Integral values keep a trailing ".0" so readers
// infer a float column; NaN and infinities are written as null.
func (w *ObjectWriter) Float(key string, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return w.Null(key)
	}
	if err := w.key(key); err != nil {
		return err
	}
	data, err := gojson.Marshal(f)
	if err != nil {
		return err
	}
	w.buf = append(w.buf, data...)
	if !bytes.ContainsAny(data, ".eE") {
		w.buf = append(w.buf, ".0"...)
	}
	return nil
}

// End closes the object and writes it followed by a newline.
func (w *ObjectWriter) End(out io.Writer) error {
	w.buf = append(w.buf, '}', '\n')
	_, err := out.Write(w.buf)
	return err
}

func (w *ObjectWriter) key(key string) error {
	if w.fields > 0 {
		w.buf = append(w.buf, ',')
	}
	w.fields++
	data, err := gojson.Marshal(key)
	if err != nil {
		return err
	}
	w.buf = append(w.buf, data...)
	w.buf = append(w.buf, ':')
	return nil
}

// Member is one key/value pair of a flat object. Value is nil, bool,
// string or json.Number.
type Member struct {
	Key   string
	Value interface{}
}

// ErrNested is returned by ReadObject when a member holds an object or array.
var ErrNested = fmt.Errorf("nested values are not supported")

// ReadObject reads the next flat object from dec and returns its members in
// document order. It returns io.EOF when the input is exhausted.
func ReadObject(dec *gojson.Decoder) ([]Member, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(gojson.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected an object, found %v", tok)
	}

	var members []Member
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return nil, unexpected(err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected an object key, found %v", tok)
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, unexpected(err)
		}
		if _, ok := tok.(gojson.Delim); ok {
			return nil, fmt.Errorf("member %q: %w", key, ErrNested)
		}
		members = append(members, Member{Key: key, Value: tok})
	}

	tok, err = dec.Token()
	if err != nil {
		return nil, unexpected(err)
	}
	if d, ok := tok.(gojson.Delim); !ok || d != '}' {
		return nil, fmt.Errorf("expected the end of an object, found %v", tok)
	}
	return members, nil
}

// unexpected reports end of input inside an object as truncation.
func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
