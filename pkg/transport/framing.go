package transport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rvfleet/coordinator/pkg/log"
)

// Framing constants.
const (
	// DefaultMaxFrameSize is the default maximum frame size (64 KB),
	// measured from the end of the previous newline.
	DefaultMaxFrameSize = 65536

	// readChunkSize is how much we ask the underlying reader for on
	// each call while hunting for the next newline.
	readChunkSize = 4096

	// MaxLogFrameDataSize is the maximum frame data size to include in
	// log events. Larger frames are truncated in the event, not on the
	// wire.
	MaxLogFrameDataSize = 4096
)

// Framing errors.
var (
	// ErrFrameTooLarge indicates no newline was found within MaxFrameSize
	// bytes of buffered input.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrFrameEmpty is returned by WriteFrame for a zero-length frame.
	// ReadFrame skips blank lines rather than reporting them.
	ErrFrameEmpty = errors.New("frame is empty")
)

// FrameWriter writes newline-terminated frames to an underlying writer.
type FrameWriter struct {
	w  io.Writer
	mu sync.Mutex

	logger log.Logger
	connID string
}

// NewFrameWriter creates a new frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// SetLogger configures logging for this writer. Pass nil to disable.
func (fw *FrameWriter) SetLogger(logger log.Logger, connID string) {
	fw.logger = logger
	fw.connID = connID
}

// WriteFrame writes data followed by a newline terminator.
// Thread-safe: can be called from multiple goroutines.
func (fw *FrameWriter) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrFrameEmpty
	}
	if bytes.IndexByte(data, '\n') != -1 {
		return fmt.Errorf("frame contains embedded newline")
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if _, err := fw.w.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("write frame terminator: %w", err)
	}

	if fw.logger != nil {
		fw.logger.Log(fw.makeFrameEvent(data, log.DirectionOut))
	}
	return nil
}

func (fw *FrameWriter) makeFrameEvent(data []byte, direction log.Direction) log.Event {
	frameData := data
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: fw.connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      len(data),
			Data:      frameData,
			Truncated: truncated,
		},
	}
}

// FrameReader reads newline-delimited frames from an underlying reader,
// joining reads into a growable buffer until the next '\n' appears.
// Unlike bufio.Scanner, the buffer has no fixed token-size ceiling short
// of MaxFrameSize, so a frame just under the limit is never silently
// truncated.
type FrameReader struct {
	r           io.Reader
	buf         []byte
	maxSize     int
	chunk       []byte
	searchFrom  int
	logger      log.Logger
	connID      string
}

// NewFrameReader creates a new frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return NewFrameReaderWithMaxSize(r, DefaultMaxFrameSize)
}

// NewFrameReaderWithMaxSize creates a frame reader with a custom max
// frame size.
func NewFrameReaderWithMaxSize(r io.Reader, maxSize int) *FrameReader {
	return &FrameReader{
		r:       r,
		maxSize: maxSize,
		chunk:   make([]byte, readChunkSize),
	}
}

// SetLogger configures logging for this reader. Pass nil to disable.
func (fr *FrameReader) SetLogger(logger log.Logger, connID string) {
	fr.logger = logger
	fr.connID = connID
}

// ReadFrame returns the next newline-delimited frame, excluding the
// newline itself. It blocks on the underlying reader until a full frame
// is available, EOF is reached, or the frame exceeds maxSize.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	for {
		if idx := bytes.IndexByte(fr.buf[fr.searchFrom:], '\n'); idx != -1 {
			cut := fr.searchFrom + idx
			frame := make([]byte, cut)
			copy(frame, fr.buf[:cut])
			fr.buf = fr.buf[cut+1:]
			fr.searchFrom = 0

			if len(frame) == 0 {
				continue
			}

			if fr.logger != nil {
				fr.logger.Log(fr.makeFrameEvent(frame, log.DirectionIn))
			}
			return frame, nil
		}

		if len(fr.buf) >= fr.maxSize {
			return nil, ErrFrameTooLarge
		}
		// Newline cannot appear earlier than what we have already scanned.
		fr.searchFrom = len(fr.buf)

		n, err := fr.r.Read(fr.chunk)
		if n > 0 {
			fr.buf = append(fr.buf, fr.chunk[:n]...)
		}
		if err != nil {
			return nil, err
		}
	}
}

func (fr *FrameReader) makeFrameEvent(data []byte, direction log.Direction) log.Event {
	frameData := data
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: fr.connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      len(data),
			Data:      frameData,
			Truncated: truncated,
		},
	}
}

// Framer combines frame reading and writing over one connection.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a new framer for bidirectional communication.
func NewFramer(rw io.ReadWriter) *Framer {
	return &Framer{
		FrameReader: NewFrameReader(rw),
		FrameWriter: NewFrameWriter(rw),
	}
}

// NewFramerWithMaxSize creates a framer with a custom max frame size.
func NewFramerWithMaxSize(rw io.ReadWriter, maxSize int) *Framer {
	return &Framer{
		FrameReader: NewFrameReaderWithMaxSize(rw, maxSize),
		FrameWriter: NewFrameWriter(rw),
	}
}

// SetLogger configures logging for both reader and writer.
// Pass nil to disable logging.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.FrameReader.SetLogger(logger, connID)
	f.FrameWriter.SetLogger(logger, connID)
}
