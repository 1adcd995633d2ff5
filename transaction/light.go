package transaction

import (
	"fmt"
	"io"
)

// lightCodec implements the "light" wire variant: just pid and data,
// with no length or CRC of its own — the caller validates length
// against the schema-derived message size once the payload reaches the
// codec package's Decode.
type lightCodec struct{}

func (lightCodec) pack(pid byte, data []byte) []byte {
	body := make([]byte, 0, 1+len(data))
	body = append(body, pid)
	body = append(body, data...)
	return body
}

func (lightCodec) unpack(raw []byte) (Frame, error) {
	if len(raw) < 1 {
		return Frame{}, newErr(BadLength, "light", fmt.Sprintf("frame of %d bytes has no pid byte", len(raw)))
	}
	return Frame{PID: raw[0], Data: append([]byte(nil), raw[1:]...)}, nil
}

// NewLightConn opens a Conn using the light wire variant over sink/source.
func NewLightConn(sink io.Writer, source io.Reader) *Conn {
	return newConn(sink, source, lightCodec{})
}
