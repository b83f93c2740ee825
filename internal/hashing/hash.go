// Package hashing computes the stable input hash used for Request dedup.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// InputHash returns sha256(canonicalJSON({model, input, params})) as a hex
// string, stable across machines and language runtimes.
func InputHash(model, input string, params map[string]any) string {
	canon := CanonicalJSON(map[string]any{
		"model":  model,
		"input":  input,
		"params": params,
	})
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:])
}

// CanonicalJSON serializes v with object keys sorted lexicographically at
// every depth, so semantically identical values hash identically
// regardless of the order they were constructed in.
func CanonicalJSON(v any) []byte {
	var buf []byte
	buf = appendCanonical(buf, v)
	return buf
}

func appendCanonical(buf []byte, v any) []byte {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendCanonical(buf, k)
			buf = append(buf, ':')
			buf = appendCanonical(buf, val[k])
		}
		buf = append(buf, '}')
		return buf
	case []any:
		buf = append(buf, '[')
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendCanonical(buf, item)
		}
		buf = append(buf, ']')
		return buf
	default:
		// Scalars (and anything else encoding/json can already marshal
		// deterministically) fall through to the stdlib encoder.
		b, err := json.Marshal(val)
		if err != nil {
			b = []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", val)))
		}
		return append(buf, b...)
	}
}
