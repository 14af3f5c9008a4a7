package fetcher

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	HasHeader  bool // if true, the first row is returned separately
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// ReadCSV reads all rows from r. When opts.HasHeader is set, the first row
// is returned as header and excluded from rows. Rows may have variable
// field counts; validation belongs to the caller.
func ReadCSV(r io.Reader, opts CSVOptions) (header []string, rows [][]string, err error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1

	first := true
	for {
		record, rerr := reader.Read()
		if rerr == io.EOF {
			return header, rows, nil
		}
		if rerr != nil {
			return nil, nil, eris.Wrap(rerr, "fetcher: read csv")
		}
		if opts.TrimSpace {
			for i := range record {
				record[i] = strings.TrimSpace(record[i])
			}
		}
		if first && opts.HasHeader {
			header = record
			first = false
			continue
		}
		first = false
		rows = append(rows, record)
	}
}
