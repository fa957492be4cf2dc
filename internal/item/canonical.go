package item

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Canonical renders v into a deterministic byte encoding: UTF-8 strings,
// integers as decimal, sequences bracketed with [], mappings key-sorted
// with {}, line endings normalized to LF. The same Go value always
// produces the same bytes regardless of platform or map iteration order,
// which is what lets the Change Detector fold global values into a
// content hash.
//
// A missing value is represented by the caller passing nil; Canonical
// encodes nil as a dedicated "absent" sentinel distinguishable from any
// real value so "global was absent" hashes differently from "global was
// an empty sequence".
func Canonical(v any) []byte {
	var buf bytes.Buffer
	writeCanonical(&buf, v)
	return normalizeLineEndings(buf.Bytes())
}

func writeCanonical(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case nil:
		buf.WriteString("\x00absent\x00")
	case string:
		writeJSONString(buf, val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case float64:
		writeCanonicalNumber(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, elem)
		}
		buf.WriteByte(']')
	case []string:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, elem)
		}
		buf.WriteByte(']')
	case map[string]any:
		writeCanonicalMap(buf, val)
	default:
		// Fall back to json.Marshal for any other concrete type
		// (struct, typed map, etc.), then re-canonicalize the decoded
		// generic value so key ordering is still normalized.
		b, err := json.Marshal(val)
		if err != nil {
			buf.WriteString(fmt.Sprintf("\x00unencodable:%v\x00", val))
			return
		}
		var generic any
		if err := json.Unmarshal(b, &generic); err != nil {
			buf.Write(b)
			return
		}
		writeCanonical(buf, generic)
	}
}

func writeCanonicalMap(buf *bytes.Buffer, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(buf, k)
		buf.WriteByte(':')
		writeCanonical(buf, m[k])
	}
	buf.WriteByte('}')
}

// writeJSONString reuses encoding/json's string escaping rules (quoting,
// unicode escapes) since they are already a stable, well-specified
// byte-for-byte encoding. CRLF is normalized to LF first, since escaping
// would otherwise hide the raw line ending from normalizeLineEndings.
func writeJSONString(buf *bytes.Buffer, s string) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// writeCanonicalNumber renders a float64 as a decimal integer when it has
// no fractional part (TOML integers decode to int64 already, but values
// that pass through a JSON round-trip, e.g. from the store, often arrive
// as float64), and otherwise via strconv's shortest round-trip form.
func writeCanonicalNumber(buf *bytes.Buffer, f float64) {
	if f == float64(int64(f)) {
		buf.WriteString(strconv.FormatInt(int64(f), 10))
		return
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
}

func normalizeLineEndings(b []byte) []byte {
	if !bytes.Contains(b, []byte("\r\n")) {
		return b
	}
	return bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
}
