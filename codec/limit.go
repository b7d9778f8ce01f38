package codec

import "fmt"

// Limit wraps another codec to cap the permitted payload size at Decode time.
// Encode is forwarded unchanged. If MaxDecode <= 0, limiting is disabled.
//
// Snapshot-feed payloads arrive over shared transports (e.g. Redis pub/sub);
// Limit protects consumers from oversized or hostile frames.
type Limit[V any] struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec[V]
	// MaxDecode is the maximum permitted payload length in bytes for Decode.
	MaxDecode int
}

func (c Limit[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
