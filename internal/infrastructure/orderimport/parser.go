// Package orderimport reads order platform CSV exports and turns them into the
// inbound order events, so missed deliveries can be replayed into the ledger.
package orderimport

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parser reads a headed CSV file row by row
type Parser struct {
	delimiter rune
	headers   []string
	index     map[string]int
	line      int
	reader    *csv.Reader
}

// ParserOption configures a Parser
type ParserOption func(*Parser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *Parser) {
		p.delimiter = d
	}
}

// NewParser strips a UTF-8 BOM, rejects non UTF-8 input and reads the header row.
// Header names are matched case-insensitively.
func NewParser(r io.Reader, opts ...ParserOption) (*Parser, error) {
	p := &Parser{delimiter: ',', index: make(map[string]int)}
	for _, opt := range opts {
		opt(p)
	}

	buf := bufio.NewReader(r)
	head, err := buf.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmptyFile
	}
	if len(head) >= len(utf8BOM) && string(head[:len(utf8BOM)]) == string(utf8BOM) {
		_, _ = buf.Discard(len(utf8BOM))
		head = head[len(utf8BOM):]
	}
	if !utf8.Valid(trimPartialRune(head)) {
		return nil, ErrInvalidEncoding
	}

	p.reader = csv.NewReader(buf)
	p.reader.Comma = p.delimiter
	p.reader.LazyQuotes = true
	p.reader.TrimLeadingSpace = true
	p.reader.FieldsPerRecord = -1

	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	p.line = 1
	for i, h := range record {
		name := strings.ToLower(strings.TrimSpace(h))
		p.headers = append(p.headers, name)
		if name != "" {
			p.index[name] = i
		}
	}
	if len(p.index) == 0 {
		return nil, ErrMissingHeader
	}
	return p, nil
}

// trimPartialRune drops a rune cut in half by the peek window
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if r, size := utf8.DecodeLastRune(b); r != utf8.RuneError || size > 1 {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}

// Headers returns the normalized header names
func (p *Parser) Headers() []string {
	return p.headers
}

// Missing returns the required headers the file lacks
func (p *Parser) Missing(required ...string) []string {
	var missing []string
	for _, h := range required {
		if _, ok := p.index[h]; !ok {
			missing = append(missing, h)
		}
	}
	return missing
}

// Row is one data row keyed by header. Line is the 1-based line in the file.
type Row struct {
	Line   int
	values map[string]string
}

// Get returns the trimmed value of column, or "" when absent
func (r *Row) Get(column string) string {
	return r.values[column]
}

// IsEmpty reports whether every field is blank
func (r *Row) IsEmpty() bool {
	for _, v := range r.values {
		if v != "" {
			return false
		}
	}
	return true
}

// Next returns the next row, or io.EOF after the last one
func (p *Parser) Next() (*Row, error) {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	p.line++
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", p.line, err)
	}

	row := &Row{Line: p.line, values: make(map[string]string, len(p.index))}
	for name, i := range p.index {
		if i < len(record) {
			row.values[name] = strings.TrimSpace(record[i])
		}
	}
	return row, nil
}
