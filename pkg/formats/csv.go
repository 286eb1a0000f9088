package formats

import (
	"bytes"
	"context"
	stdcsv "encoding/csv"
	stderrors "errors"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"

	"github.com/ajitpratap0/dfio/pkg/compression"
	"github.com/ajitpratap0/dfio/pkg/errors"
	"github.com/ajitpratap0/dfio/pkg/frame"
	"github.com/ajitpratap0/dfio/pkg/schema"
)

// csvChunkSize is the number of rows per decoded batch.
const csvChunkSize = 10000

// DumpCSV encodes df as CSV.
func (g *Gateway) DumpCSV(df *frame.DataFrame, opts CSVWriteOptions) ([]byte, error) {
	return g.dump(df, FormatCSV, opts.Validate, func(w io.Writer, df *frame.DataFrame) error {
		return g.encodeCSV(w, df, opts)
	})
}

// WriteCSV encodes df as CSV into dst.
func (g *Gateway) WriteCSV(ctx context.Context, df *frame.DataFrame, dst Destination, opts CSVWriteOptions) error {
	return g.write(ctx, df, dst, FormatCSV, opts.Validate, func(w io.Writer, df *frame.DataFrame) error {
		return g.encodeCSV(w, df, opts)
	})
}

// LoadCSV decodes CSV bytes. Gzip, zstd, lz4 and snappy input is
// decompressed first.
func (g *Gateway) LoadCSV(data []byte, opts CSVReadOptions) (*frame.DataFrame, error) {
	return g.load(FormatCSV, data, opts.Projection, opts.Validate, func(data []byte) (*frame.DataFrame, error) {
		return g.decodeCSV(data, opts)
	})
}

// ReadCSV decodes the CSV file at path.
func (g *Gateway) ReadCSV(path string, opts CSVReadOptions) (*frame.DataFrame, error) {
	return g.read(FormatCSV, path, opts.Projection, opts.Validate, func(data []byte) (*frame.DataFrame, error) {
		return g.decodeCSV(data, opts)
	})
}

func (g *Gateway) encodeCSV(w io.Writer, df *frame.DataFrame, opts CSVWriteOptions) error {
	rec := textRecord(g.mem, df.Record())
	defer rec.Release()

	cw := csv.NewWriter(w, rec.Schema(),
		csv.WithComma(rune(opts.Delimiter)),
		csv.WithHeader(opts.HasHeader),
		csv.WithNullWriter(""))
	if err := cw.Write(rec); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// InferCSVSchema returns the schema LoadCSV would decode data with, before
// projection.
func (g *Gateway) InferCSVSchema(data []byte, opts CSVReadOptions) (*schema.Schema, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	text, err := prepareCSV(data, opts)
	if err != nil {
		return nil, err
	}
	return inferCSVSchema(text, opts)
}

func (g *Gateway) decodeCSV(data []byte, opts CSVReadOptions) (*frame.DataFrame, error) {
	text, err := prepareCSV(data, opts)
	if err != nil {
		return nil, err
	}

	sc, err := inferCSVSchema(text, opts)
	if err != nil {
		return nil, err
	}
	if sc.Len() == 0 {
		return frame.Empty(g.mem, arrow.NewSchema(nil, nil)), nil
	}

	// Categorical and binary columns are parsed as text and converted after.
	fields := make([]arrow.Field, 0, sc.Len())
	for _, f := range sc.Fields() {
		dt := f.DType
		if dt.Kind == schema.KindCategorical || dt.Kind == schema.KindBinary {
			dt = schema.Utf8
		}
		fields = append(fields, arrow.Field{Name: f.Name, Type: dt.ArrowType(), Nullable: true})
	}
	readSchema := arrow.NewSchema(fields, nil)

	nulls := append([]string{""}, opts.NullValues...)
	r := csv.NewReader(bytes.NewReader(text), readSchema,
		csv.WithComma(rune(opts.Delimiter)),
		csv.WithHeader(opts.HasHeader),
		csv.WithChunk(csvChunkSize),
		csv.WithNullReader(true, nulls...),
		csv.WithAllocator(g.mem))
	defer r.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()

	var rows int64
	for (opts.MaxRows == nil || rows < int64(*opts.MaxRows)) && r.Next() {
		rec := r.Record()
		rec.Retain()
		recs = append(recs, rec)
		rows += rec.NumRows()
	}
	if err := r.Err(); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to parse csv")
	}

	df, err := frame.FromRecords(g.mem, readSchema, recs)
	if err != nil {
		return nil, err
	}
	rec := df.Record()
	rec.Retain()
	df.Release()

	rec, err = applyTextTypes(g.mem, rec, sc)
	if err != nil {
		return nil, err
	}
	return frame.New(rec), nil
}

// prepareCSV turns raw input into newline-terminated UTF-8 text with the
// leading SkipRows lines removed. Skipped lines end at EOL.
func prepareCSV(data []byte, opts CSVReadOptions) ([]byte, error) {
	text, _, err := compression.Decompress(data)
	if err != nil {
		return nil, err
	}

	if opts.Encoding == EncodingUTF8Lossy {
		text = bytes.ToValidUTF8(text, []byte(string(utf8.RuneError)))
	} else if !utf8.Valid(text) {
		return nil, errors.New(errors.ErrorTypeDecode, "input is not valid utf-8")
	}

	for i := 0; i < opts.SkipRows && len(text) > 0; i++ {
		next := bytes.IndexByte(text, opts.EOL)
		if next < 0 {
			text = nil
			break
		}
		text = text[next+1:]
	}

	if opts.EOL != '\n' {
		text = translateEOL(text, opts.Delimiter, opts.EOL)
	}
	return text, nil
}

// translateEOL rewrites records terminated by eol as '\n'-terminated records.
// Quoted fields are copied unchanged. An unquoted field holding '\n' or '\r'
// is quoted so it stays a single value.
func translateEOL(text []byte, delim, eol byte) []byte {
	out := make([]byte, 0, len(text)+len(text)/32)
	start := 0
	inQuotes := false

	emit := func(end int) {
		field := text[start:end]
		if len(field) > 0 && field[0] != '"' && bytes.ContainsAny(field, "\r\n") {
			out = append(out, '"')
			out = append(out, bytes.ReplaceAll(field, []byte{'"'}, []byte{'"', '"'})...)
			out = append(out, '"')
			return
		}
		out = append(out, field...)
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case inQuotes:
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					i++
				} else {
					inQuotes = false
				}
			}
		case c == '"' && i == start:
			inQuotes = true
		case c == delim:
			emit(i)
			out = append(out, delim)
			start = i + 1
		case c == eol:
			emit(i)
			out = append(out, '\n')
			start = i + 1
		}
	}
	emit(len(text))
	return out
}

// inferCSVSchema reads the header and samples up to InferSchemaLength rows.
// Declared DTypes replace the inferred type of columns they name.
func inferCSVSchema(text []byte, opts CSVReadOptions) (*schema.Schema, error) {
	r := stdcsv.NewReader(bytes.NewReader(text))
	r.Comma = rune(opts.Delimiter)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	sc := &schema.Schema{}
	first, err := r.Read()
	if err == io.EOF {
		return sc, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to parse csv")
	}

	names := make([]string, len(first))
	for i := range first {
		if opts.HasHeader {
			names[i] = first[i]
		} else {
			names[i] = "column_" + strconv.Itoa(i+1)
		}
	}

	nulls := make(map[string]struct{}, len(opts.NullValues)+1)
	nulls[""] = struct{}{}
	for _, v := range opts.NullValues {
		nulls[v] = struct{}{}
	}

	limit := -1
	if opts.InferSchemaLength != nil {
		limit = *opts.InferSchemaLength
	}
	guesses := make([]schema.Guess, len(names))
	observe := func(row []string) {
		for i, v := range row {
			if i >= len(guesses) {
				break
			}
			if _, null := nulls[v]; null {
				continue
			}
			guesses[i].Observe(schema.InferText(v, opts.ParseDates))
		}
	}

	sampled := 0
	if !opts.HasHeader && limit != 0 {
		observe(first)
		sampled++
	}
	for limit < 0 || sampled < limit {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeDecode, "failed to parse csv")
		}
		observe(row)
		sampled++
	}

	for i, name := range names {
		if _, dup := sc.Lookup(name); dup {
			return nil, errors.New(errors.ErrorTypeDecode, "duplicate column name").WithValue(name)
		}
		sc.Set(name, guesses[i].Result())
	}

	overrides, err := schema.Resolve(opts.DTypes)
	if err != nil {
		return nil, err
	}
	for _, f := range overrides.Fields() {
		if _, ok := sc.Lookup(f.Name); ok {
			sc.Set(f.Name, f.DType)
		}
	}
	return sc, nil
}
