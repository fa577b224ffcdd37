package bank

import "errors"

// ErrUnrecognizedFormat means no registered schema matched the upload's
// first line. The whole upload is rejected; zero rows are processed.
var ErrUnrecognizedFormat = errors.New("unrecognized bank format")

// Detect inspects the first CSV line and selects the matching schema from
// the default registry.
func Detect(firstLine []string) (Schema, error) {
	return DetectIn(Registry(), firstLine)
}

// DetectIn runs detection against an explicit schema table. Candidates are
// tried in order and the first full match wins; registration order is the
// tie-break.
func DetectIn(schemas []Schema, firstLine []string) (Schema, error) {
	for _, s := range schemas {
		if s.Matches(firstLine) {
			return s, nil
		}
	}
	return Schema{}, ErrUnrecognizedFormat
}
