package transaction

import (
	"fmt"
	"io"
)

// heavyCodec implements the "heavy" wire variant: pid, a per-connection
// sequence counter, an explicit length, the data, and a little-endian
// CRC-16/CCITT trailer over everything before it.
type heavyCodec struct {
	seq byte
}

const heavyOverhead = 3 + 2 // pid + seq + len, then crc16

func (h *heavyCodec) pack(pid byte, data []byte) []byte {
	seq := h.seq
	h.seq++

	body := make([]byte, 0, heavyOverhead+len(data))
	body = append(body, pid, seq, byte(len(data)))
	body = append(body, data...)

	crc := CRC16CCITT(CRC16Init, body)
	body = append(body, byte(crc), byte(crc>>8))
	return body
}

func (h *heavyCodec) unpack(raw []byte) (Frame, error) {
	if len(raw) < heavyOverhead {
		return Frame{}, newErr(BadLength, "heavy", fmt.Sprintf("frame of %d bytes is shorter than the %d-byte header+crc", len(raw), heavyOverhead))
	}

	pid := raw[0]
	length := raw[2]
	data := raw[3 : len(raw)-2]

	if int(length) != len(data) {
		return Frame{}, newErr(BadLength, "heavy", fmt.Sprintf("len field says %d, got %d data bytes", length, len(data)))
	}

	want := CRC16CCITT(CRC16Init, raw[:len(raw)-2])
	got := uint16(raw[len(raw)-2]) | uint16(raw[len(raw)-1])<<8
	if want != got {
		return Frame{}, newErr(BadCrc, "heavy", fmt.Sprintf("computed crc %#04x, received %#04x", want, got))
	}

	return Frame{PID: pid, Data: append([]byte(nil), data...)}, nil
}

// NewHeavyConn opens a Conn using the heavy wire variant over sink/source.
func NewHeavyConn(sink io.Writer, source io.Reader) *Conn {
	return newConn(sink, source, &heavyCodec{})
}
