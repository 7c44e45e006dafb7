package encoding

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// EncodingHandler defines the interface for converting arbitrary
// parser-reported values into printable UTF-8 text. Malware parsers hand
// over whatever they carved out of a sample; the handler's job is to turn
// that into something a report can carry without ever failing the caller.
type EncodingHandler interface {
	// ToText converts a reported value to a UTF-8 string. Byte slices are
	// decoded (BOM-aware); other types are formatted. The returned error is
	// advisory: a usable string is always returned alongside it.
	ToText(value any) (string, error)

	// DecodeBytes converts raw bytes to UTF-8 text. A UTF-16 byte order
	// mark triggers transparent transcoding; otherwise invalid UTF-8
	// sequences are replaced with the Unicode replacement rune.
	DecodeBytes(data []byte) (string, error)
}

// defaultHandler implements EncodingHandler using golang.org/x/text.
type defaultHandler struct{}

// NewDefaultHandler creates the standard encoding handler.
func NewDefaultHandler() EncodingHandler {
	return &defaultHandler{}
}

// ToText implements the EncodingHandler interface.
func (h *defaultHandler) ToText(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return sanitizeUTF8(v), nil
	case []byte:
		return h.DecodeBytes(v)
	case fmt.Stringer:
		return sanitizeUTF8(v.String()), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return sanitizeUTF8(fmt.Sprintf("%v", v)), nil
	}
}

// DecodeBytes implements the EncodingHandler interface.
func (h *defaultHandler) DecodeBytes(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	if enc, ok := detectUTF16(data); ok {
		decoder := enc.NewDecoder()
		decoded, _, err := transform.Bytes(decoder, data)
		if err != nil {
			// Transcoding failed partway; fall back to replacement-rune
			// handling of the raw bytes so the value is not lost.
			return sanitizeUTF8(string(data)), fmt.Errorf("failed to decode UTF-16 value: %w", err)
		}
		return sanitizeUTF8(string(decoded)), nil
	}

	return sanitizeUTF8(string(data)), nil
}

// detectUTF16 reports whether data starts with a UTF-16 byte order mark
// and returns the matching decoder configuration.
func detectUTF16(data []byte) (xencoding.Encoding, bool) {
	if len(data) < 2 {
		return nil, false
	}
	switch {
	case data[0] == 0xFF && data[1] == 0xFE:
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), true
	case data[0] == 0xFE && data[1] == 0xFF:
		return unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), true
	}
	return nil, false
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the replacement rune
// and strips NUL bytes, which frequently ride along with carved strings.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) && !strings.ContainsRune(s, 0) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == 0 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsMostlyBinary reports whether data looks like raw binary rather than
// text, based on the NUL byte ratio in the first kilobyte. Used to decide
// whether a value is worth rendering inline.
func IsMostlyBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	limit := len(data)
	if limit > 1024 {
		limit = 1024
	}
	nulls := bytes.Count(data[:limit], []byte{0x00})
	return float64(nulls)/float64(limit) > 0.15
}
