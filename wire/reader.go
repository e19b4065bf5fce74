package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Reader yields newline-terminated lines from a byte stream.
//
// The working buffer is also the line bound: ReadSlice peeks into the buffer
// and only consumes bytes through the terminator, so bytes of the next line
// stay buffered for the next call.
type Reader struct {
	br *bufio.Reader

	// BeforeRead, when set, runs before every line read. The session uses it
	// to arm read deadlines.
	BeforeRead func()
}

// NewReader returns a Reader bounded to MaxLineLength bytes per line.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, MaxLineLength)
}

// NewReaderSize returns a Reader bounded to size bytes per line, terminator
// included. bufio enforces a minimum of 16 bytes.
func NewReaderSize(r io.Reader, size int) *Reader {
	if size <= 0 {
		size = MaxLineLength
	}
	return &Reader{br: bufio.NewReaderSize(r, size)}
}

// ReadLine reads one line and returns it without its "\n" or "\r\n" terminator.
//
// Returns:
//   - io.EOF when the peer closed before a terminator arrived
//   - *FramingError wrapping ErrLineTooLong for a line that does not fit the
//     buffer; the rest of that line is discarded first
//   - *ConnectionError for any other I/O failure
func (r *Reader) ReadLine() (string, error) {
	if r.BeforeRead != nil {
		r.BeforeRead()
	}

	line, err := r.br.ReadSlice('\n')
	switch {
	case err == nil:
		return trimEOL(line), nil
	case errors.Is(err, bufio.ErrBufferFull):
		if derr := r.discardLine(); derr != nil {
			return "", derr
		}
		return "", &FramingError{
			Message: fmt.Sprintf("line longer than %d bytes", r.br.Size()),
			Err:     ErrLineTooLong,
		}
	case errors.Is(err, io.EOF):
		return "", io.EOF
	default:
		return "", &ConnectionError{Op: "read", Err: err}
	}
}

// ReadUntil accumulates lines until one starts with terminator and returns
// the collected lines joined with "\n", each line terminated. Lines equal to
// one of skip (after trimming) are dropped. The terminator line is consumed
// and not included.
//
// A stream that ends before the terminator yields a *FramingError wrapping
// io.ErrUnexpectedEOF.
func (r *Reader) ReadUntil(terminator string, skip ...string) (string, error) {
	var b strings.Builder
	for {
		line, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", &FramingError{
					Message: "stream ended before " + terminator,
					Err:     io.ErrUnexpectedEOF,
				}
			}
			return "", err
		}

		if strings.HasPrefix(line, terminator) {
			return b.String(), nil
		}
		if isSkipped(line, skip) {
			continue
		}

		b.WriteString(line)
		b.WriteString(LF)
	}
}

// ReadRecord reads a record terminated by a ":done:" line.
func (r *Reader) ReadRecord() (string, error) {
	return r.ReadUntil(TokenDone)
}

// discardLine drops bytes through the next terminator after an overlong read.
func (r *Reader) discardLine() error {
	for {
		_, err := r.br.ReadSlice('\n')
		switch {
		case err == nil:
			return nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return nil
		default:
			return &ConnectionError{Op: "read", Err: err}
		}
	}
}

func isSkipped(line string, skip []string) bool {
	if len(skip) == 0 {
		return false
	}
	trimmed := strings.TrimSpace(line)
	for _, s := range skip {
		if trimmed == s {
			return true
		}
	}
	return false
}

func trimEOL(line []byte) string {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
	}
	if n > 0 && line[n-1] == '\r' {
		n--
	}
	return string(line[:n])
}
