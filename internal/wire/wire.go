package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version    byte = 1
	kindSingle byte = 1
	kindBulk   byte = 2
)

var (
	ErrCorrupt = errors.New("txncache: corrupt entry")
	magic4     = [...]byte{'T', 'X', 'N', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Single: magic(4) | ver(1) | kind(1=single) | revision(u64 be) | vlen(u32 be) | payload(vlen)
//
// This is the framing Mirror.Observe writes on every committed revision -
// revision is the sequencer-issued number installed into the primary
// revlog for that commit, not a byte-store generation counter.
func EncodeSingle(revision uint64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindSingle)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], revision)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func DecodeSingle(b []byte) (revision uint64, payload []byte, err error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindSingle {
		return 0, nil, ErrCorrupt
	}

	off := 6

	revision = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	// vlen
	if off+4 > len(b) {
		return 0, nil, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // overflow-safe; rejects short and trailing bytes
		return 0, nil, ErrCorrupt
	}

	return revision, b[off : off+vlen], nil
}

// Bulk:
//
//	magic(4) | ver(1) | kind(1=bulk) | n(u32 be)
//	keyLen(u16 be) | key(keyLen) | revision(u64 be) | vlen(u32 be) | payload(vlen) * n
//
// This is what Cache.MirrorSnapshot ships as one entry per snapshot: every
// reachable key's latest revision, batched so a full export costs one store
// round-trip instead of one per key.
type BulkItem struct {
	Key      string
	Revision uint64
	Payload  []byte
}

func EncodeBulk(items []BulkItem) ([]byte, error) {
	total := 4 + 1 + 1 + 4
	for _, it := range items {
		if l := len(it.Key); l == 0 || l > 0xFFFF {
			return nil, fmt.Errorf("txncache: invalid key length in bulk: %d", l)
		}
		total += 2 + len(it.Key) + 8 + 4 + len(it.Payload)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindBulk)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint32(u4[:], uint32(len(items)))
	buf.Write(u4[:])

	for _, it := range items {
		binary.BigEndian.PutUint16(u2[:], uint16(len(it.Key)))
		buf.Write(u2[:])
		buf.WriteString(it.Key)

		binary.BigEndian.PutUint64(u8[:], it.Revision)
		buf.Write(u8[:])

		binary.BigEndian.PutUint32(u4[:], uint32(len(it.Payload)))
		buf.Write(u4[:])
		buf.Write(it.Payload)
	}

	return buf.Bytes(), nil
}

func DecodeBulk(b []byte) ([]BulkItem, error) {
	const hdr = 4 + 1 + 1 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindBulk {
		return nil, ErrCorrupt
	}

	off := 6

	// n
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// every item takes at least keyLen(2) + key(1) + revision(8) + vlen(4)
	// bytes, so a count the remaining buffer cannot hold is corrupt.
	if n < 0 || n > (len(b)-off)/15 {
		return nil, ErrCorrupt
	}

	items := make([]BulkItem, 0, n)
	for i := 0; i < n; i++ {
		// keyLen
		if off+2 > len(b) {
			return nil, ErrCorrupt
		}
		klen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if klen <= 0 || klen > len(b)-off {
			return nil, ErrCorrupt
		}

		// key (slice, then string alloc)
		keyBytes := b[off : off+klen]
		off += klen

		// revision
		if off+8 > len(b) {
			return nil, ErrCorrupt
		}
		revision := binary.BigEndian.Uint64(b[off : off+8])
		off += 8

		// vlen
		if off+4 > len(b) {
			return nil, ErrCorrupt
		}
		vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if vlen < 0 || vlen > len(b)-off {
			return nil, ErrCorrupt
		}

		payload := b[off : off+vlen]
		off += vlen

		items = append(items, BulkItem{
			Key:      string(keyBytes), // one expected alloc per item
			Revision: revision,
			Payload:  payload,
		})
	}
	if off != len(b) {
		return nil, ErrCorrupt
	}

	return items, nil
}
