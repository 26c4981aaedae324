package txncache

import "github.com/unkn0wn-root/txncache/codec"

// structuredClone deep-copies v via the configured Codec's Encode/Decode
// round trip. A codec failure wraps ErrNotStructuredCloneable in a
// *CloneError naming key.
func structuredClone[V any](c codec.Codec[V], key any, v V) (V, error) {
	var zero V
	raw, err := c.Encode(v)
	if err != nil {
		return zero, &CloneError{Key: key, Err: err}
	}
	out, err := c.Decode(raw)
	if err != nil {
		return zero, &CloneError{Key: key, Err: err}
	}
	return out, nil
}
