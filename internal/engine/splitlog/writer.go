// Package splitlog splits one build's console output between the aggregate
// build log and the log of whichever module is currently building.
package splitlog

import (
	"bytes"
	"io"
	"sync"
)

// Writer copies everything to the main sink and, in addition, to the current
// side sink. Output written while no side sink is claimed is buffered and
// handed to the next claimer, so a module's log also receives the lines the
// tool printed just before the module was announced.
type Writer struct {
	mu        sync.Mutex
	main      io.Writer
	side      io.Writer
	unclaimed bytes.Buffer
}

// New creates a Writer whose main sink is main.
func New(main io.Writer) *Writer {
	return &Writer{main: main}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.main.Write(p)
	if err != nil {
		return n, err
	}
	if w.side != nil {
		if _, err := w.side.Write(p); err != nil {
			return n, err
		}
		return n, nil
	}
	w.unclaimed.Write(p)
	return n, nil
}

// Claim makes side the current side sink. Buffered unclaimed output is
// written to it first.
func (w *Writer) Claim(side io.Writer) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.side = side
	return w.flushLocked()
}

// Release clears the side sink if it is still side. Subsequent output is buffered.
func (w *Writer) Release(side io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.side == side {
		w.side = nil
	}
}

// FlushTo writes buffered unclaimed output to side without claiming it.
func (w *Writer) FlushTo(side io.Writer) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.side
	w.side = side
	err := w.flushLocked()
	w.side = prev
	return err
}

func (w *Writer) flushLocked() error {
	if w.side == nil || w.unclaimed.Len() == 0 {
		return nil
	}
	_, err := w.side.Write(w.unclaimed.Bytes())
	w.unclaimed.Reset()
	return err
}
