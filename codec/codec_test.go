package codec

import (
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

type codecEntity struct {
	Name string
	Tags map[string]string
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := JSONCodec[codecEntity]{}
	want := codecEntity{Name: "alice", Tags: map[string]string{"role": "admin"}}

	b, err := c.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Name != want.Name || got.Tags["role"] != want.Tags["role"] {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestCBORCodecRoundTrip(t *testing.T) {
	for _, deterministic := range []bool{false, true} {
		c, err := NewCBOR[codecEntity](deterministic)
		if err != nil {
			t.Fatalf("NewCBOR(%v): %v", deterministic, err)
		}
		want := codecEntity{Name: "bob", Tags: map[string]string{"team": "infra"}}

		b, err := c.Encode(want)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := c.Decode(b)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Name != want.Name {
			t.Fatalf("deterministic=%v: round trip mismatch: got %+v want %+v", deterministic, got, want)
		}
	}
}

func TestCBORDeterministicIsStable(t *testing.T) {
	c := MustCBOR[codecEntity](true)
	v := codecEntity{Name: "carol", Tags: map[string]string{"a": "1", "b": "2"}}

	first, err := c.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := c.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected deterministic encoding to be stable across calls")
	}
}

func TestMsgpackCodecRoundTrip(t *testing.T) {
	c := Msgpack[codecEntity]{}
	want := codecEntity{Name: "dave", Tags: map[string]string{"region": "eu"}}

	b, err := c.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Name != want.Name {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestProtobufCodecRoundTrip(t *testing.T) {
	c := NewProtobuf(func() *structpb.Value { return &structpb.Value{} })
	want := structpb.NewStringValue("alice")

	b, err := c.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.GetStringValue() != want.GetStringValue() {
		t.Fatalf("round trip mismatch: got %q want %q", got.GetStringValue(), want.GetStringValue())
	}
}

func TestLimitCodecRejectsOversizedPayload(t *testing.T) {
	inner := JSONCodec[codecEntity]{}
	c := LimitCodec[codecEntity]{Inner: inner, MaxDecode: 8}

	b, err := inner.Encode(codecEntity{Name: "a very long name that exceeds the limit"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(b) <= c.MaxDecode {
		t.Fatalf("test payload too small to exercise the limit: %d bytes", len(b))
	}
	if _, err := c.Decode(b); err == nil {
		t.Fatalf("expected Decode to reject a payload over MaxDecode")
	}
}

func TestLimitCodecPassesUndersizedPayload(t *testing.T) {
	inner := JSONCodec[codecEntity]{}
	c := LimitCodec[codecEntity]{Inner: inner, MaxDecode: 1 << 20}

	b, err := inner.Encode(codecEntity{Name: "alice"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Name != "alice" {
		t.Fatalf("expected decoded entity, got %+v", got)
	}
}

func TestLimitCodecDisabledWhenMaxDecodeNotPositive(t *testing.T) {
	inner := JSONCodec[codecEntity]{}
	c := LimitCodec[codecEntity]{Inner: inner, MaxDecode: 0}

	b, err := inner.Encode(codecEntity{Name: "a very long name that would otherwise be rejected"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := c.Decode(b); err != nil {
		t.Fatalf("expected MaxDecode<=0 to disable the size check, got %v", err)
	}
}

func TestBytesCodecIsIdentity(t *testing.T) {
	c := Bytes{}
	want := []byte{1, 2, 3}

	b, err := c.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("expected identity round trip, got %v want %v", got, want)
	}
}

func TestStringCodecRoundTrip(t *testing.T) {
	c := String{}
	want := "hello"

	b, err := c.Encode(want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != want {
		t.Fatalf("expected identity round trip, got %q want %q", got, want)
	}
}
