package orderimport

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParser(t *testing.T) {
	t.Run("strips BOM and normalizes headers", func(t *testing.T) {
		p, err := NewParser(strings.NewReader("\xEF\xBB\xBFOrder_ID , Reason\nO-1, damaged \n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"order_id", "reason"}, p.Headers())

		row, err := p.Next()
		require.NoError(t, err)
		assert.Equal(t, 2, row.Line)
		assert.Equal(t, "O-1", row.Get("order_id"))
		assert.Equal(t, "damaged", row.Get("reason"))

		_, err = p.Next()
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("semicolon delimiter", func(t *testing.T) {
		p, err := NewParser(strings.NewReader("a;b\n1;2\n"), WithDelimiter(';'))
		require.NoError(t, err)
		row, err := p.Next()
		require.NoError(t, err)
		assert.Equal(t, "2", row.Get("b"))
	})

	t.Run("short rows leave columns empty", func(t *testing.T) {
		p, err := NewParser(strings.NewReader("a,b,c\n1\n"))
		require.NoError(t, err)
		row, err := p.Next()
		require.NoError(t, err)
		assert.Equal(t, "1", row.Get("a"))
		assert.Empty(t, row.Get("c"))
		assert.False(t, row.IsEmpty())
	})

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "", ErrEmptyFile},
		{"invalid utf-8", "order_id\n\xff\xfe\n", ErrInvalidEncoding},
		{"blank header", " , \n1,2\n", ErrMissingHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParser_Missing(t *testing.T) {
	p, err := NewParser(strings.NewReader("order_id,vendor_id\n"))
	require.NoError(t, err)

	assert.Empty(t, p.Missing("order_id", "vendor_id"))
	assert.Equal(t, []string{"sale_amount", "completed_at"}, p.Missing("order_id", "sale_amount", "completed_at"))
}

func TestErrorCollection(t *testing.T) {
	ec := NewErrorCollection(2)
	assert.False(t, ec.HasErrors())
	assert.Equal(t, "no errors", ec.String())

	ec.Add(RowError{Line: 2, Column: "sale_amount", Code: CodeFormat, Message: "bad"})
	ec.Add(RowError{Line: 3, Code: CodeMalformed, Message: "broken"})
	ec.Add(RowError{Line: 4, Code: CodeMalformed, Message: "dropped"})

	assert.Equal(t, 3, ec.Total())
	assert.Len(t, ec.Errors(), 2)
	assert.True(t, ec.Truncated())
	assert.Equal(t, `line 2, column "sale_amount": bad`, ec.Errors()[0].Error())
	assert.Equal(t, "line 3: broken", ec.Errors()[1].Error())
	assert.Contains(t, ec.String(), "3 error(s) (showing first 2)")
}
