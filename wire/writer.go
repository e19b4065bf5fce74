package wire

import (
	"bufio"
	"io"
	"strings"
)

// Writer emits protocol lines over a buffered stream.
//
// Records and tokens are buffered; WriteToken flushes, so every response
// exchange ends with its bytes on the wire. WriteContact does not flush, which
// lets a bulk export batch many records before the closing ":done:".
type Writer struct {
	bw *bufio.Writer
}

// NewWriter wraps w. An existing *bufio.Writer is used as-is.
func NewWriter(w io.Writer) *Writer {
	if bw, ok := w.(*bufio.Writer); ok {
		return &Writer{bw: bw}
	}
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteToken writes a single token line and flushes.
func (w *Writer) WriteToken(token string) error {
	w.bw.WriteString(token)
	w.bw.WriteString(LF)
	return w.Flush()
}

// WriteLine buffers one line. A trailing terminator is added.
func (w *Writer) WriteLine(line string) error {
	w.bw.WriteString(line)
	if _, err := w.bw.WriteString(LF); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// WriteContact buffers a record framed by ":start_contact:" and ":end_contact:".
//
// Format: :start_contact:\n<record>\n:end_contact:\n
func (w *Writer) WriteContact(record string) error {
	w.bw.WriteString(TokenStartContact)
	w.bw.WriteString(LF)
	w.writeBody(record)
	w.bw.WriteString(TokenEndContact)
	if _, err := w.bw.WriteString(LF); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// WriteRecord writes record lines followed by a terminator line and flushes.
func (w *Writer) WriteRecord(record, terminator string) error {
	w.writeBody(record)
	return w.WriteToken(terminator)
}

// Flush sends buffered bytes.
func (w *Writer) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// writeBody writes record text, guaranteeing it ends with a terminator so the
// following token starts on its own line.
func (w *Writer) writeBody(record string) {
	if record == "" {
		return
	}
	w.bw.WriteString(record)
	if !strings.HasSuffix(record, LF) {
		w.bw.WriteString(LF)
	}
}
