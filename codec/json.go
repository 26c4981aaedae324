package codec

import "encoding/json"

// JSONCodec is the Cache's default Codec: every entity type encoding/json
// can round-trip is structured-cloneable with no extra wiring required.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSONCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
