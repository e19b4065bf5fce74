// Package wire implements the line protocol spoken on the contact-sync socket.
//
// Every exchange is a sequence of "\n"-terminated lines. A peer sends a
// command token on its own line, optionally followed by an identifier line
// and record lines, and the bridge answers with response tokens:
//
//	-> :request_contacts:
//	<- :start_contact:
//	<- BEGIN:VCARD
//	<- ...
//	<- END:VCARD
//	<- :end_contact:
//	<- :done:
//
// # Reading
//
// Reader bounds each line to its buffer size. Overlong lines are discarded
// and reported as *FramingError so the caller can drop the connection instead
// of resynchronizing mid-stream:
//
//	r := wire.NewReader(conn)
//	line, err := r.ReadLine()
//	if err != nil {
//	    if wire.ShouldCloseConnection(err) {
//	        conn.Close()
//	    }
//	    return err
//	}
//	switch wire.ParseCommand(line) {
//	case wire.CmdModifyContact:
//	    ...
//	}
//
// # Writing
//
// Writer buffers record frames and flushes on every token, so a response is
// fully on the wire when WriteToken returns.
package wire
