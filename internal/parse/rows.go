package parse

import (
	"encoding/csv"
	"errors"
	"io"
)

// Row is one raw CSV line split into fields. Err carries a CSV-level read
// failure scoped to that line.
type Row struct {
	Fields []string
	Err    error
}

// ReadRows reads every CSV line from r. A malformed line yields a Row with
// Err set and reading continues; rows never silently vanish.
func ReadRows(r io.Reader) []Row {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows
		}
		if err != nil {
			rows = append(rows, Row{Err: err})
			continue
		}
		rows = append(rows, Row{Fields: rec})
	}
}
