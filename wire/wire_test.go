package wire

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line     string
		expected Command
	}{
		{":request_contacts:", CmdRequestContacts},
		{":modify_contact:", CmdModifyContact},
		{":delete_contact:", CmdDeleteContact},
		{":add_contact:", CmdAddContact},
		{":finished:", CmdFinished},
		{":finished: trailing", CmdFinished},
		{"", CmdUnknown},
		{"BEGIN:VCARD", CmdUnknown},
		{":done:", CmdUnknown},
		{" :finished:", CmdUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := ParseCommand(tt.line); got != tt.expected {
				t.Errorf("ParseCommand(%q) = %v, want %v", tt.line, got, tt.expected)
			}
		})
	}
}

func TestCommandToken(t *testing.T) {
	for _, ct := range commandTokens {
		if got := ct.cmd.Token(); got != ct.token {
			t.Errorf("%v.Token() = %q, want %q", ct.cmd, got, ct.token)
		}
		if got := ParseCommand(ct.cmd.Token()); got != ct.cmd {
			t.Errorf("ParseCommand(%q) = %v, want %v", ct.token, got, ct.cmd)
		}
	}
	if CmdUnknown.Token() != "" {
		t.Errorf("CmdUnknown.Token() = %q, want empty", CmdUnknown.Token())
	}
}

// Test line reading

func TestReadLine(t *testing.T) {
	r := NewReader(strings.NewReader("first\nsecond\r\n\nlast"))

	for _, want := range []string{"first", "second", ""} {
		got, err := r.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine failed: %v", err)
		}
		if got != want {
			t.Errorf("ReadLine() = %q, want %q", got, want)
		}
	}

	// "last" has no terminator: the peer closed mid-line
	if _, err := r.ReadLine(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReadLineTooLong(t *testing.T) {
	long := strings.Repeat("x", 100)
	r := NewReaderSize(strings.NewReader(long+"\nnext\n"), 32)

	_, err := r.ReadLine()
	var fe *FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FramingError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrLineTooLong) {
		t.Errorf("expected ErrLineTooLong in chain, got %v", err)
	}
	if !ShouldCloseConnection(err) {
		t.Error("framing errors should close the connection")
	}

	// The overlong line was discarded through its terminator
	got, err := r.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine after overlong line failed: %v", err)
	}
	if got != "next" {
		t.Errorf("ReadLine() = %q, want %q", got, "next")
	}
}

func TestReadLineAtBound(t *testing.T) {
	// A line exactly as long as the buffer, terminator included, fits.
	line := strings.Repeat("y", 31)
	r := NewReaderSize(strings.NewReader(line+"\n"), 32)

	got, err := r.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine failed: %v", err)
	}
	if got != line {
		t.Errorf("ReadLine() length = %d, want %d", len(got), len(line))
	}
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestReadLineConnectionError(t *testing.T) {
	cause := errors.New("reset by peer")
	r := NewReader(failingReader{err: cause})

	_, err := r.ReadLine()
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConnectionError, got %T: %v", err, err)
	}
	if ce.Op != "read" {
		t.Errorf("Op = %q, want read", ce.Op)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause in chain, got %v", err)
	}
}

func TestReadLineBeforeRead(t *testing.T) {
	calls := 0
	r := NewReader(strings.NewReader("a\nb\n"))
	r.BeforeRead = func() { calls++ }

	r.ReadLine()
	r.ReadLine()

	if calls != 2 {
		t.Errorf("BeforeRead called %d times, want 2", calls)
	}
}

// Test record reading

func TestReadRecord(t *testing.T) {
	input := "BEGIN:VCARD\r\nFN:Ann\r\nEND:VCARD\r\n:done:\n:finished:\n"
	r := NewReader(strings.NewReader(input))

	record, err := r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	want := "BEGIN:VCARD\nFN:Ann\nEND:VCARD\n"
	if record != want {
		t.Errorf("ReadRecord() = %q, want %q", record, want)
	}

	// The terminator was consumed, the next command is intact
	line, _ := r.ReadLine()
	if line != TokenFinished {
		t.Errorf("next line = %q, want %q", line, TokenFinished)
	}
}

func TestReadUntilSkipsMarkers(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "bare record",
			input: "BEGIN:VCARD\nEND:VCARD\n:done:\n",
		},
		{
			name:  "wrapped record",
			input: ":start_contact:\nBEGIN:VCARD\nEND:VCARD\n:end_contact:\n:done:\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(strings.NewReader(tt.input))
			record, err := r.ReadUntil(TokenDone, TokenStartContact, TokenEndContact)
			if err != nil {
				t.Fatalf("ReadUntil failed: %v", err)
			}
			if record != "BEGIN:VCARD\nEND:VCARD\n" {
				t.Errorf("ReadUntil() = %q", record)
			}
		})
	}
}

func TestReadRecordTruncated(t *testing.T) {
	r := NewReader(strings.NewReader("BEGIN:VCARD\nFN:Ann\n"))

	_, err := r.ReadRecord()
	var fe *FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FramingError, got %T: %v", err, err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF in chain, got %v", err)
	}
}

// Test writing

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteContact("BEGIN:VCARD\r\nEND:VCARD\r\n"); err != nil {
		t.Fatalf("WriteContact failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("WriteContact should buffer, got %q on the wire", buf.String())
	}

	if err := w.WriteContact("BEGIN:VCARD\r\nEND:VCARD"); err != nil {
		t.Fatalf("WriteContact failed: %v", err)
	}
	if err := w.WriteToken(TokenDone); err != nil {
		t.Fatalf("WriteToken failed: %v", err)
	}

	want := ":start_contact:\nBEGIN:VCARD\r\nEND:VCARD\r\n:end_contact:\n" +
		":start_contact:\nBEGIN:VCARD\r\nEND:VCARD\n:end_contact:\n" +
		":done:\n"
	if got := buf.String(); got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
}

func TestWriteRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.WriteLine(TokenModifyContact)
	w.WriteLine("42")
	if err := w.WriteRecord("FN:Ann\n", TokenDone); err != nil {
		t.Fatalf("WriteRecord failed: %v", err)
	}

	want := ":modify_contact:\n42\nFN:Ann\n:done:\n"
	if got := buf.String(); got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriterConnectionError(t *testing.T) {
	w := NewWriter(failingWriter{})

	err := w.WriteToken(TokenOK)
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConnectionError, got %T: %v", err, err)
	}
	if ce.Op != "write" {
		t.Errorf("Op = %q, want write", ce.Op)
	}
}

func TestShouldCloseConnection(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"framing", &FramingError{Message: "x"}, true},
		{"connection", &ConnectionError{Op: "read", Err: io.EOF}, true},
		{"unknown", errors.New("boom"), true},
		{"keeps state", keepState{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldCloseConnection(tt.err); got != tt.expected {
				t.Errorf("ShouldCloseConnection() = %v, want %v", got, tt.expected)
			}
		})
	}
}

type keepState struct{}

func (keepState) Error() string               { return "rejected" }
func (keepState) ShouldCloseConnection() bool { return false }
