package csvio

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// Encoding names reported by Decode.
const (
	EncodingUTF8  = "utf-8"
	EncodingCP949 = "cp949"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode returns raw as UTF-8. Valid UTF-8 (with or without BOM) passes through; anything
// else is decoded as CP949, the superset of EUC-KR produced by Korean spreadsheet exports.
func Decode(raw []byte) ([]byte, string, error) {
	if bytes.HasPrefix(raw, utf8BOM) {
		raw = raw[len(utf8BOM):]
	}
	if utf8.Valid(raw) {
		return raw, EncodingUTF8, nil
	}
	decoded, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), raw)
	if err != nil {
		return nil, "", fmt.Errorf("decode input (tried %s, %s): %w", EncodingUTF8, EncodingCP949, err)
	}
	return decoded, EncodingCP949, nil
}

// ReadFile reads path and decodes it with Decode.
func ReadFile(path string) ([]byte, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	data, enc, err := Decode(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return data, enc, nil
}
