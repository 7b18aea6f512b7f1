// Package shared provides small helpers for handling secrets in memory.
package shared

// WipeByteArray overwrites the contents of b with zeros. The CLI uses it for
// the raw bearer token bytes read from the terminal.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
