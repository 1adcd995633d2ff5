package transaction_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delwen/slipmsg/slip"
	"github.com/delwen/slipmsg/transaction"
)

func TestCRC16CCITT_ReferenceVectors(t *testing.T) {
	assert.Equal(t, uint16(0xFFFF), transaction.CRC16CCITT(transaction.CRC16Init, nil))
	assert.Equal(t, uint16(0x29B1), transaction.CRC16CCITT(transaction.CRC16Init, []byte("123456789")))
}

// pipeConn wires a Conn's sink to nothing and feeds bytes into its
// reader goroutine via an io.Pipe, so tests can script exactly what the
// "remote" side sends back.
type pipeConn struct {
	toPeer   *bytes.Buffer
	fromPeer *io.PipeWriter
	reader   *io.PipeReader
}

func newPipeConn() (*transaction.Conn, *pipeConn) {
	pr, pw := io.Pipe()
	pc := &pipeConn{toPeer: &bytes.Buffer{}, fromPeer: pw, reader: pr}
	conn := transaction.NewHeavyConn(pc.toPeer, pr)
	return conn, pc
}

func heavyFrame(pid, seq byte, data []byte) []byte {
	body := append([]byte{pid, seq, byte(len(data))}, data...)
	crc := transaction.CRC16CCITT(transaction.CRC16Init, body)
	body = append(body, byte(crc), byte(crc>>8))
	return slip.Encode(body)
}

func TestConn_HeavyTransaction_S5(t *testing.T) {
	conn, pc := newPipeConn()

	go func() {
		time.Sleep(10 * time.Millisecond)
		pc.fromPeer.Write(heavyFrame(0x10, 0, []byte{0xAA}))
		pc.fromPeer.Write(heavyFrame(0x83, 0, []byte{0x01}))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frames, err := conn.Transact(ctx, 0x03, []byte{0x01, 0x02})
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, byte(0x10), frames[0].PID)
	assert.Equal(t, byte(0x83), frames[1].PID)
	assert.Equal(t, []byte{0x01}, frames[1].Data)
}

func TestConn_HeavyTransaction_DropsBadCRC(t *testing.T) {
	conn, pc := newPipeConn()

	go func() {
		time.Sleep(10 * time.Millisecond)
		corrupt := heavyFrame(0x83, 0, []byte{0x01})
		corrupt[len(corrupt)-2] ^= 0xFF // mangle the CRC byte inside the frame
		pc.fromPeer.Write(corrupt)
		pc.fromPeer.Write(heavyFrame(0x83, 1, []byte{0x02}))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frames, err := conn.Transact(ctx, 0x03, nil)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x02}, frames[0].Data)
}

func TestConn_Transaction_TimesOut(t *testing.T) {
	conn, _ := newPipeConn()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := conn.Transact(ctx, 0x03, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, transaction.ErrTimeout)
}

func TestConn_Frames_ResyncsAfterOverflowedFrame(t *testing.T) {
	pr, pw := io.Pipe()
	sink := &bytes.Buffer{}
	conn := transaction.NewLightConn(sink, pr)

	huge := bytes.Repeat([]byte{0x42}, transaction.DefaultMaxFrameLen+100)

	go func() {
		pw.Write(slip.Encode(append([]byte{0x01}, huge...)))
		pw.Write(slip.Encode([]byte{0x01, 0xAA}))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	frames, errs := conn.Frames(ctx)

	select {
	case f := <-frames:
		assert.Equal(t, []byte{0xAA}, f.Data)
	case err := <-errs:
		t.Fatalf("unexpected channel error before a frame arrived: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the frame following the overflowed one")
	}
}

func TestConn_LightTransaction(t *testing.T) {
	pr, pw := io.Pipe()
	sink := &bytes.Buffer{}
	conn := transaction.NewLightConn(sink, pr)

	go func() {
		time.Sleep(10 * time.Millisecond)
		pw.Write(slip.Encode([]byte{0x81, 0x55, 0x66}))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frames, err := conn.Transact(ctx, 0x01, []byte{0x01})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x55, 0x66}, frames[0].Data)

	sent := sink.Bytes()
	decoded := slip.NewDecoder(0)
	var body []byte
	for _, b := range sent {
		if f, ok, err := decoded.Decode(b); err == nil && ok {
			body = f
		}
	}
	assert.Equal(t, []byte{0x01, 0x01}, body)
}
