package codec

// Codec encodes/decodes a single entity V to []byte. The syncer uses it for
// snapshot-feed payloads and for retained snapshots; it never interprets the
// bytes itself.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
