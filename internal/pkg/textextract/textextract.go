package textextract

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Decode turns raw uploaded bytes into a UTF-8 string, trying UTF-8, then
// UTF-16 (BOM-aware), then Latin-1. As a last resort invalid sequences are
// stripped rather than failing the upload.
func Decode(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	decoders := []encoding.Encoding{
		unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
		charmap.ISO8859_1,
	}
	for _, enc := range decoders {
		out, err := enc.NewDecoder().Bytes(raw)
		if err == nil && utf8.Valid(out) && !bytes.ContainsRune(out, utf8.RuneError) {
			return string(out)
		}
	}

	return string(bytes.ToValidUTF8(raw, nil))
}
