package importer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Format identifies the decoder used for a staged file.
type Format int

const (
	FormatCSV Format = iota + 1
	FormatXLSX
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXLSX:
		return "xlsx"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Table is a decoded upload: headers in file order and one Row per data row.
type Table struct {
	Headers []string
	Rows    []Row
}

// Row holds the raw cell values of one data row keyed by header.
type Row struct {
	// Number is the 1-based row in the sheet; the header row is row 1.
	Number int
	Values map[string]string
}

// Get returns the value under header, or "" when the row has no such cell.
func (r Row) Get(header string) string {
	return r.Values[header]
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse decodes a staged file into a Table. Both decoders yield the same shape.
func Parse(ctx context.Context, staged *StagedFile, opts Options) (*Table, error) {
	if staged.Size == 0 {
		return nil, newError(KindParse, ErrEmptyFile, nil)
	}
	switch staged.Format {
	case FormatCSV:
		return parseCSV(ctx, staged.Path)
	case FormatXLSX:
		return parseXLSX(ctx, staged.Path, opts.withDefaults())
	default:
		e := newError(KindFormat, ErrUnsupportedFormat, nil)
		e.Value = staged.Name
		return nil, e
	}
}

func parseCSV(ctx context.Context, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindIO, ErrIOFailure, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if b, _ := br.Peek(len(utf8BOM)); bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	var t *tableBuilder
	for {
		if err := ctx.Err(); err != nil {
			return nil, contextError(err)
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			e := newError(KindParse, ErrCorruptFile, err)
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				e.Row = pe.Line
			}
			return nil, e
		}
		line, _ := r.FieldPos(0)
		for _, field := range record {
			if !utf8.ValidString(field) {
				e := newError(KindParse, ErrUnreadableEncoding, nil)
				e.Row = line
				return nil, e
			}
		}
		if t == nil {
			if blankRecord(record) {
				continue
			}
			t = newTableBuilder(record)
			continue
		}
		t.add(line, record)
	}
	if t == nil {
		return nil, newError(KindParse, ErrEmptyFile, nil)
	}
	return t.table, nil
}

func parseXLSX(ctx context.Context, path string, opts Options) (*Table, error) {
	f, err := excelize.OpenFile(path, excelize.Options{
		UnzipSizeLimit:    max(16*opts.MaxUploadBytes, 64<<20),
		UnzipXMLSizeLimit: 16 << 20,
	})
	if err != nil {
		return nil, newError(KindParse, ErrCorruptFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, newError(KindParse, ErrEmptyFile, nil)
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, newError(KindParse, ErrCorruptFile, err)
	}
	defer rows.Close()

	var t *tableBuilder
	number := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, contextError(err)
		}
		number++
		cols, err := rows.Columns()
		if err != nil {
			e := newError(KindParse, ErrCorruptFile, err)
			e.Row = number
			return nil, e
		}
		if t == nil {
			if blankRecord(cols) {
				continue
			}
			t = newTableBuilder(cols)
			continue
		}
		t.add(number, cols)
	}
	if err := rows.Error(); err != nil {
		return nil, newError(KindParse, ErrCorruptFile, err)
	}
	if t == nil {
		return nil, newError(KindParse, ErrEmptyFile, nil)
	}
	return t.table, nil
}

// unnamedHeaderPrefix starts the generated name of a blank header.
const unnamedHeaderPrefix = "Unnamed: "

type tableBuilder struct {
	table *Table
}

// newTableBuilder names every header column. Blank headers become "Unnamed: <index>"
// and repeated headers get a ".1", ".2", ... suffix, so every column keeps a distinct key.
func newTableBuilder(header []string) *tableBuilder {
	headers := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("%s%d", unnamedHeaderPrefix, i)
		}
		name := h
		for n := 1; seen[name]; n++ {
			name = fmt.Sprintf("%s.%d", h, n)
		}
		seen[name] = true
		headers[i] = name
	}
	return &tableBuilder{table: &Table{Headers: headers}}
}

func (b *tableBuilder) add(number int, record []string) {
	if blankRecord(record) {
		return
	}
	values := make(map[string]string, len(b.table.Headers))
	for i, h := range b.table.Headers {
		if i < len(record) {
			values[h] = record[i]
		}
	}
	b.table.Rows = append(b.table.Rows, Row{Number: number, Values: values})
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func contextError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindParse, ErrProcessingTimeout, err)
	}
	return newError(KindIO, ErrIOFailure, err)
}
