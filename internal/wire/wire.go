package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version      byte = 1
	kindRetained byte = 1
	kindFeed     byte = 2
)

var (
	ErrCorrupt = errors.New("branchsync: corrupt frame")
	magic4     = [...]byte{'B', 'S', 'Y', 'N'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

func writeItems(buf *bytes.Buffer, items [][]byte) {
	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(items)))
	buf.Write(u4[:])
	for _, it := range items {
		binary.BigEndian.PutUint32(u4[:], uint32(len(it)))
		buf.Write(u4[:])
		buf.Write(it)
	}
}

func readItems(b []byte, off int) ([][]byte, int, error) {
	if off+4 > len(b) {
		return nil, 0, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if n < 0 {
		return nil, 0, ErrCorrupt
	}
	// cap preallocation by remaining bytes so a bogus n cannot balloon memory
	capN := n
	if max := (len(b) - off) / 4; capN > max {
		capN = max
	}
	items := make([][]byte, 0, capN)
	for i := 0; i < n; i++ {
		if off+4 > len(b) {
			return nil, 0, ErrCorrupt
		}
		vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if vlen < 0 || vlen > len(b)-off {
			return nil, 0, ErrCorrupt
		}
		items = append(items, b[off:off+vlen])
		off += vlen
	}
	return items, off, nil
}

// Retained frames park a partition's last accepted item list in a byte store
// across detach/reattach cycles.
//
//	magic(4) | ver(1) | kind(1=retained) | gen(u64 be) | fetchedAt(i64 be, unix nano) | n(u32 be) | (vlen(u32 be) | payload)*n
func EncodeRetained(gen uint64, fetchedAtUnixNano int64, items [][]byte) []byte {
	total := 4 + 1 + 1 + 8 + 8 + 4
	for _, it := range items {
		total += 4 + len(it)
	}
	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindRetained)

	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], gen)
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(fetchedAtUnixNano))
	buf.Write(u8[:])

	writeItems(&buf, items)
	return buf.Bytes()
}

func DecodeRetained(b []byte) (gen uint64, fetchedAtUnixNano int64, items [][]byte, err error) {
	const hdr = 4 + 1 + 1 + 8 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindRetained {
		return 0, 0, nil, ErrCorrupt
	}
	off := 6
	gen = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	fetchedAtUnixNano = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	items, off, err = readItems(b, off)
	if err != nil {
		return 0, 0, nil, err
	}
	if off != len(b) { // strict framing; trailing bytes mean corruption
		return 0, 0, nil, ErrCorrupt
	}
	return gen, fetchedAtUnixNano, items, nil
}

// Feed frames carry a full item list pushed over a snapshot-variant channel.
// rev is the publisher's monotonically increasing revision for the channel;
// listeners drop frames whose rev is not newer than the last applied one.
//
//	magic(4) | ver(1) | kind(2=feed) | rev(u64 be) | n(u32 be) | (vlen(u32 be) | payload)*n
func EncodeFeed(rev uint64, items [][]byte) []byte {
	total := 4 + 1 + 1 + 8 + 4
	for _, it := range items {
		total += 4 + len(it)
	}
	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindFeed)

	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], rev)
	buf.Write(u8[:])

	writeItems(&buf, items)
	return buf.Bytes()
}

func DecodeFeed(b []byte) (rev uint64, items [][]byte, err error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindFeed {
		return 0, nil, ErrCorrupt
	}
	off := 6
	rev = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	items, off, err = readItems(b, off)
	if err != nil {
		return 0, nil, err
	}
	if off != len(b) {
		return 0, nil, ErrCorrupt
	}
	return rev, items, nil
}
