// Package fetcher reads the tabular and archived inputs of an OD table run:
// streamed CSV batches, whole CSV/XLSX tables, and zipped shapefiles.
package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultBatchSize is the number of records per batch when none is configured.
const DefaultBatchSize = 50000

// ErrMalformedRow marks a batch that contained a record the CSV reader rejected.
var ErrMalformedRow = eris.New("fetcher: malformed row")

// Batch is one fixed-size slice of a CSV source, in file order.
// Err is set when a record inside the batch could not be read; Rows then holds
// only the records that could.
type Batch struct {
	Index  int
	Header []string
	Rows   [][]string
	Err    error
}

// BatchOptions configures StreamBatches.
type BatchOptions struct {
	Size       int  // records per batch (default 50,000)
	Buffer     int  // batches read ahead of the consumer (default 1)
	Delimiter  rune // default ','
	LazyQuotes bool
}

// StreamBatches reads a CSV with a header row and sends its records in
// batches of opts.Size. A malformed record fails only the batch it falls in;
// the record still counts toward the batch size so later batch boundaries do
// not shift. The error channel carries only failures that stop the stream
// before any batch can be formed (missing header, cancellation).
// Both channels are closed when processing completes.
func StreamBatches(ctx context.Context, r io.Reader, opts BatchOptions) (<-chan Batch, <-chan error) {
	size := opts.Size
	if size <= 0 {
		size = DefaultBatchSize
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 1
	}

	batchCh := make(chan Batch, buffer)
	errCh := make(chan error, 1)

	go func() {
		defer close(batchCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // short rows read as blank cells; long rows fail their batch

		header, err := reader.Read()
		if err == io.EOF {
			errCh <- eris.New("csv: missing header row")
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "csv: read header")
			return
		}
		header = CleanHeader(header)

		send := func(b Batch) bool {
			select {
			case batchCh <- b:
				return true
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return false
			}
		}

		cur := Batch{Header: header, Rows: make([][]string, 0, size)}
		consumed := 0

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				if consumed > 0 {
					send(cur)
				}
				return
			}
			if err != nil {
				var pe *csv.ParseError
				if !errors.As(err, &pe) {
					// The reader cannot make progress; fail the batch in hand and stop.
					if cur.Err == nil {
						cur.Err = eris.Wrap(err, "csv: read row")
					}
					send(cur)
					return
				}
				if cur.Err == nil {
					cur.Err = eris.Wrapf(ErrMalformedRow, "line %d: %v", pe.Line, pe.Err)
				}
			} else if len(record) > len(header) {
				if cur.Err == nil {
					line, _ := reader.FieldPos(0)
					cur.Err = eris.Wrapf(ErrMalformedRow, "line %d: %d fields, header has %d", line, len(record), len(header))
				}
			} else {
				cur.Rows = append(cur.Rows, record)
			}
			consumed++

			if consumed == size {
				if !send(cur) {
					return
				}
				cur = Batch{Index: cur.Index + 1, Header: header, Rows: make([][]string, 0, size)}
				consumed = 0
			}
		}
	}()

	return batchCh, errCh
}

// ReadCSVTable reads a whole CSV with a header row. Intended for the small
// lookup tables, not the trip source.
func ReadCSVTable(r io.Reader) (header []string, rows [][]string, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, eris.Wrap(err, "csv: read table")
	}
	if len(records) == 0 {
		return nil, nil, eris.New("csv: missing header row")
	}
	return CleanHeader(records[0]), records[1:], nil
}

// CleanHeader strips a UTF-8 byte order mark and surrounding whitespace from
// header cells.
func CleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

// ColumnIndex returns a case-insensitive name → position map for a header.
// The first occurrence of a duplicated name wins.
func ColumnIndex(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(col))
		if _, dup := m[key]; !dup {
			m[key] = i
		}
	}
	return m
}

// Field returns record[idx] trimmed, or "" when the record is too short.
func Field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
