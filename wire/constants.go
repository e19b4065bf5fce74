package wire

import "strings"

// Command is a request token sent by the peer on its own line.
type Command int

// Request commands, decoded from the first line of each exchange.
const (
	// CmdUnknown is any line that does not start with a known token.
	// Unknown lines are ignored by the dispatcher.
	CmdUnknown Command = iota

	// CmdRequestContacts asks for every contact of every source.
	//
	// Wire format:
	//   -> :request_contacts:
	//   <- (:start_contact: <record> :end_contact:)* :done:
	CmdRequestContacts

	// CmdModifyContact updates a previously exported contact.
	//
	// Wire format:
	//   -> :modify_contact: <id> <record lines>* :done:
	//   <- :ok: | :failure:
	CmdModifyContact

	// CmdDeleteContact removes a previously exported contact.
	//
	// Wire format:
	//   -> :delete_contact: <id>
	//   <- :ok: | :failure:
	CmdDeleteContact

	// CmdAddContact creates a new contact.
	//
	// Wire format:
	//   -> :add_contact: [:start_contact:] <record lines>* [:end_contact:] :done:
	//   <- :start_contact: <record> :end_contact: | :failure:
	CmdAddContact

	// CmdFinished ends the session. No response is sent.
	CmdFinished
)

// Protocol tokens. Every token is a full line on the wire.
const (
	TokenRequestContacts = ":request_contacts:"
	TokenModifyContact   = ":modify_contact:"
	TokenDeleteContact   = ":delete_contact:"
	TokenAddContact      = ":add_contact:"
	TokenFinished        = ":finished:"

	TokenStartContact = ":start_contact:"
	TokenEndContact   = ":end_contact:"
	TokenDone         = ":done:"
	TokenOK           = ":ok:"
	TokenFailure      = ":failure:"
)

// Protocol limits
const (
	// MaxLineLength bounds a single line including its terminator.
	MaxLineLength = 8192

	// LF terminates every line written by this package.
	LF = "\n"
)

var commandTokens = []struct {
	token string
	cmd   Command
}{
	{TokenRequestContacts, CmdRequestContacts},
	{TokenModifyContact, CmdModifyContact},
	{TokenDeleteContact, CmdDeleteContact},
	{TokenAddContact, CmdAddContact},
	{TokenFinished, CmdFinished},
}

// ParseCommand decodes a dispatch line. Matching is by prefix, so trailing
// bytes after a token are tolerated.
func ParseCommand(line string) Command {
	for _, ct := range commandTokens {
		if strings.HasPrefix(line, ct.token) {
			return ct.cmd
		}
	}
	return CmdUnknown
}

// Token returns the wire token of a command, or "" for CmdUnknown.
func (c Command) Token() string {
	for _, ct := range commandTokens {
		if ct.cmd == c {
			return ct.token
		}
	}
	return ""
}

func (c Command) String() string {
	switch c {
	case CmdRequestContacts:
		return "request_contacts"
	case CmdModifyContact:
		return "modify_contact"
	case CmdDeleteContact:
		return "delete_contact"
	case CmdAddContact:
		return "add_contact"
	case CmdFinished:
		return "finished"
	default:
		return "unknown"
	}
}
