// Package fieldstream defines the wire protocol spoken between a sample
// publisher and its subscribers: length-prefixed msgpack frames over a
// single TCP connection. The stream storage backend serves this protocol
// and the fieldstream source consumes it, so field gateways and downstream
// greenwave instances interoperate with no generated code.
package fieldstream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/khufkens/greenwave/internal/types"
	"github.com/vmihailenco/msgpack/v5"
)

// ProtocolVersion is sent in the hello frame. Subscribers reject streams
// with a version they do not understand.
const ProtocolVersion = 1

// MaxFrameBytes bounds a single frame. A Sample encodes to well under a
// kilobyte; anything near this limit is a corrupt or hostile stream.
const MaxFrameBytes = 1 << 20

// Frame types. Every frame is a 4-byte big-endian length followed by a
// type byte and a msgpack payload. Heartbeat frames carry no payload.
const (
	FrameHello byte = iota + 1
	FrameSample
	FrameHeartbeat
)

var (
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	ErrEmptyFrame    = errors.New("frame missing type byte")
)

// Hello is the first frame on every connection, publisher to subscriber.
// Site names the single site this stream carries; empty means the stream
// carries samples for all of the publisher's sites.
type Hello struct {
	Protocol int    `msgpack:"protocol"`
	Server   string `msgpack:"server,omitempty"`
	Site     string `msgpack:"site,omitempty"`
}

// Writer frames and writes the publisher side of the protocol. It is not
// safe for concurrent use; callers serialize writes per connection.
type Writer struct {
	w   io.Writer
	buf []byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (fw *Writer) WriteHello(h Hello) error {
	return fw.writeFrame(FrameHello, h)
}

func (fw *Writer) WriteSample(s *types.Sample) error {
	return fw.writeFrame(FrameSample, s)
}

func (fw *Writer) WriteHeartbeat() error {
	return fw.writeFrame(FrameHeartbeat, nil)
}

// writeFrame assembles the complete frame in one buffer so each frame is
// handed to the kernel in a single write.
func (fw *Writer) writeFrame(frameType byte, payload interface{}) error {
	fw.buf = append(fw.buf[:0], 0, 0, 0, 0, frameType)

	if payload != nil {
		body, err := msgpack.Marshal(payload)
		if err != nil {
			return fmt.Errorf("could not encode frame payload: %v", err)
		}
		fw.buf = append(fw.buf, body...)
	}

	if len(fw.buf)-4 > MaxFrameBytes {
		return ErrFrameTooLarge
	}

	binary.BigEndian.PutUint32(fw.buf[:4], uint32(len(fw.buf)-4))
	_, err := fw.w.Write(fw.buf)
	return err
}

// Reader reads the subscriber side of the protocol.
type Reader struct {
	r   *bufio.Reader
	buf []byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadFrame returns the next frame's type and raw payload. The payload
// slice is reused by the next call; decode or copy it before reading again.
func (fr *Reader) ReadFrame() (byte, []byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(fr.r, header[:]); err != nil {
		return 0, nil, err
	}

	n := binary.BigEndian.Uint32(header[:])
	if n == 0 {
		return 0, nil, ErrEmptyFrame
	}
	if n > MaxFrameBytes {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}

	if cap(fr.buf) < int(n) {
		fr.buf = make([]byte, n)
	}
	frame := fr.buf[:n]
	if _, err := io.ReadFull(fr.r, frame); err != nil {
		return 0, nil, err
	}

	return frame[0], frame[1:], nil
}

// ReadHello reads the next frame and requires it to be a hello with a
// protocol version we speak.
func (fr *Reader) ReadHello() (Hello, error) {
	frameType, payload, err := fr.ReadFrame()
	if err != nil {
		return Hello{}, err
	}
	if frameType != FrameHello {
		return Hello{}, fmt.Errorf("expected hello frame, got frame type %d", frameType)
	}

	var h Hello
	if err := msgpack.Unmarshal(payload, &h); err != nil {
		return Hello{}, fmt.Errorf("could not decode hello frame: %v", err)
	}
	if h.Protocol != ProtocolVersion {
		return Hello{}, fmt.Errorf("unsupported protocol version %d", h.Protocol)
	}
	return h, nil
}

// DecodeSample decodes a FrameSample payload.
func DecodeSample(payload []byte) (types.Sample, error) {
	var s types.Sample
	if err := msgpack.Unmarshal(payload, &s); err != nil {
		return types.Sample{}, fmt.Errorf("could not decode sample frame: %v", err)
	}
	return s, nil
}
