package schema

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Pair is a user-supplied (column name, type name) declaration.
type Pair struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// Field is one resolved column of a Schema.
type Field struct {
	Name  string
	DType DType
}

// Schema is an ordered set of uniquely named columns. The zero value is an
// empty schema ready for use.
type Schema struct {
	fields []Field
	index  map[string]int
}

// New returns a schema holding fields in order. Later duplicates overwrite the
// dtype of the first occurrence.
func New(fields ...Field) *Schema {
	s := &Schema{}
	for _, f := range fields {
		s.Set(f.Name, f.DType)
	}
	return s
}

// Resolve converts ordered (name, type-name) pairs into a Schema. A name that
// appears more than once keeps the position of its first occurrence and the
// dtype of its last. Any unknown type name fails the whole call.
func Resolve(pairs []Pair) (*Schema, error) {
	s := &Schema{}
	for _, p := range pairs {
		dt, err := ParseDType(p.Type)
		if err != nil {
			return nil, err
		}
		s.Set(p.Name, dt)
	}
	return s, nil
}

// Set inserts or overwrites a column.
func (s *Schema) Set(name string, dt DType) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[name]; ok {
		s.fields[i].DType = dt
		return
	}
	s.index[name] = len(s.fields)
	s.fields = append(s.fields, Field{Name: name, DType: dt})
}

// Lookup returns the dtype declared for name.
func (s *Schema) Lookup(name string) (DType, bool) {
	if s == nil || s.index == nil {
		return DType{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return DType{}, false
	}
	return s.fields[i].DType, true
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

// Fields returns a copy of the columns in order.
func (s *Schema) Fields() []Field {
	if s == nil {
		return nil
	}
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns the column names in order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// ArrowSchema returns the Arrow schema for s; every column is nullable.
func (s *Schema) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, s.Len())
	for i, f := range s.Fields() {
		fields[i] = arrow.Field{Name: f.Name, Type: f.DType.ArrowType(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// String renders the schema as "name: type" lines.
func (s *Schema) String() string {
	var b strings.Builder
	for i, f := range s.Fields() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.DType.String())
	}
	return b.String()
}

// FromArrowSchema converts an Arrow schema. Columns whose type falls outside
// the dtype set are reported in the second result and omitted.
func FromArrowSchema(as *arrow.Schema) (*Schema, []string) {
	s := &Schema{}
	var unsupported []string
	for _, f := range as.Fields() {
		dt, ok := FromArrow(f.Type)
		if !ok {
			unsupported = append(unsupported, f.Name)
			continue
		}
		s.Set(f.Name, dt)
	}
	return s, unsupported
}
