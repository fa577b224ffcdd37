package parse

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/guppyfunds/guppy-consumer/internal/model"
)

// Decode converts an upload's bytes to text using its declared encoding.
// With no declared encoding, UTF-8 is assumed and Latin-1 is the fallback,
// so legacy bank exports never fail on encoding alone.
func Decode(u model.RawUpload) (string, error) {
	switch normalizeEncoding(u.Encoding) {
	case "":
		if utf8.Valid(u.Data) {
			return string(u.Data), nil
		}
		return decodeLatin1(u.Data)
	case "utf-8":
		if !utf8.Valid(u.Data) {
			return "", fmt.Errorf("payload is not valid UTF-8")
		}
		return string(u.Data), nil
	case "latin-1":
		return decodeLatin1(u.Data)
	default:
		return "", fmt.Errorf("unsupported encoding %q", u.Encoding)
	}
}

func normalizeEncoding(enc string) string {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "":
		return ""
	case "utf-8", "utf8":
		return "utf-8"
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return "latin-1"
	default:
		return strings.ToLower(strings.TrimSpace(enc))
	}
}

func decodeLatin1(data []byte) (string, error) {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding latin-1: %w", err)
	}
	return string(out), nil
}
