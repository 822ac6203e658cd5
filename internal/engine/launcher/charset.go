package launcher

import (
	"bytes"
	"io"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FallbackEncoding decodes every byte to exactly one rune, so console output
// of a worker with an unknown charset is never lost.
var FallbackEncoding encoding.Encoding = charmap.ISO8859_1

// ResolveEncoding maps a charset name reported by a worker to a decoder.
// Unknown or unsupported names resolve to FallbackEncoding. UTF-8 output is
// passed through byte for byte, invalid sequences included.
func ResolveEncoding(name string) encoding.Encoding {
	if name == "" {
		return FallbackEncoding
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return FallbackEncoding
	}
	if enc == unicode.UTF8 {
		return encoding.Nop
	}
	return enc
}

// consoleDecoder converts a worker's raw process output to UTF-8. Bytes
// written before the worker's encoding is known are held back and decoded
// once SetEncoding is called.
type consoleDecoder struct {
	mu      sync.Mutex
	dst     io.Writer
	pending bytes.Buffer
	w       *transform.Writer
	closed  bool
}

func newConsoleDecoder(dst io.Writer) *consoleDecoder {
	return &consoleDecoder{dst: dst}
}

func (d *consoleDecoder) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return len(p), nil
	}
	if d.w == nil {
		return d.pending.Write(p)
	}
	return d.w.Write(p)
}

// SetEncoding fixes the charset and flushes held back output through it.
// Only the first call has an effect.
func (d *consoleDecoder) SetEncoding(enc encoding.Encoding) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.w != nil || d.closed {
		return nil
	}
	d.w = transform.NewWriter(d.dst, enc.NewDecoder())
	if d.pending.Len() == 0 {
		return nil
	}
	_, err := d.w.Write(d.pending.Bytes())
	d.pending.Reset()
	return err
}

// Close flushes buffered output. Output held back because the encoding was
// never reported is decoded with FallbackEncoding.
func (d *consoleDecoder) Close() error {
	if err := d.SetEncoding(FallbackEncoding); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.w.Close()
}

// sink is an output destination that can be retargeted while writes are in flight.
type sink struct {
	mu sync.Mutex
	w  io.Writer
}

func newSink(w io.Writer) *sink {
	if w == nil {
		w = io.Discard
	}
	return &sink{w: w}
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *sink) set(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}
