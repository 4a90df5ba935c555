package common

// WipeByteArray overwrites the contents of b with zeros. Used to drop secret
// material (owner secrets, derived keys) from memory after use. A nil slice
// is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
