package codec

import "google.golang.org/protobuf/proto"

// Protobuf is a Codec for entity types that are already protobuf messages -
// a Cache[K, T] whose T satisfies proto.Message can use this directly
// instead of round-tripping through JSON tags bolted onto a generated
// struct.
type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g., func() *mypb.User { return &mypb.User{} })
}

// NewProtobuf builds a Protobuf codec. ctor must return a fresh, non-nil
// message of the concrete type stored in the cache; Decode calls it once
// per call to get a target to unmarshal into.
func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}
func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
