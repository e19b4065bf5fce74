package contactsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pior/contactsync/contact"
	"github.com/pior/contactsync/internal/coarsetime"
	"github.com/pior/contactsync/wire"
)

// Session runs the protocol for one peer connection at a time.
//
// A server owns exactly one Session; the session slot hands it to each
// admitted connection in turn. The registry is emptied whenever a
// connection ends.
type Session struct {
	config   Config
	store    contact.Store
	codec    contact.Codec
	registry *Registry
	stats    *serverStatsCollector
	log      zerolog.Logger

	// per connection
	r *wire.Reader
	w *wire.Writer
}

func newSession(config Config, store contact.Store, stats *serverStatsCollector) *Session {
	return &Session{
		config: config,
		store:  store,
		codec: contact.Codec{
			AllowIDOverwrite: config.AllowIDOverwrite,
			AlwaysEncodeName: config.AlwaysEncodeName,
		},
		registry: NewRegistry(),
		stats:    stats,
		log:      config.Logger,
	}
}

// Serve runs the dispatch loop on conn until the peer sends ":finished:",
// closes the connection, or an error breaks the stream. A clean end returns
// nil. The caller closes conn.
func (s *Session) Serve(ctx context.Context, conn net.Conn) error {
	s.r = wire.NewReaderSize(conn, s.config.MaxLineLength)
	s.w = wire.NewWriter(conn)
	if timeout := s.config.IdleTimeout; timeout > 0 {
		s.r.BeforeRead = func() {
			_ = conn.SetReadDeadline(coarsetime.Deadline(timeout))
		}
	}

	defer func() {
		s.registry.Clear()
		s.r, s.w = nil, nil
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := s.r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Debug().Msg("peer closed the connection")
				return nil
			}
			return err
		}

		cmd := wire.ParseCommand(line)
		switch cmd {
		case wire.CmdUnknown:
			s.log.Debug().Str("line", truncate(line, 64)).Msg("ignoring unrecognized line")
			continue
		case wire.CmdFinished:
			s.log.Debug().Int("exported", s.registry.Len()).Msg("session finished")
			return nil
		}

		if err := s.dispatch(ctx, cmd); err != nil {
			return err
		}
	}
}

// dispatch runs one command. Operation failures are answered with
// ":failure:" and swallowed; only errors that break the stream are returned.
func (s *Session) dispatch(ctx context.Context, cmd wire.Command) error {
	log := s.log.With().Str("cmd", cmd.String()).Logger()

	var (
		outcome string
		err     error
	)
	switch cmd {
	case wire.CmdRequestContacts:
		outcome, err = s.handleRequestContacts(ctx, log)
	case wire.CmdModifyContact:
		outcome, err = s.handleModify(ctx, log)
	case wire.CmdDeleteContact:
		outcome, err = s.handleDelete(ctx, log)
	case wire.CmdAddContact:
		outcome, err = s.handleAdd(ctx, log)
	}

	if err == nil {
		s.stats.recordCommand(cmd, outcome)
		return nil
	}

	if !isFailure(err) {
		s.stats.recordCommand(cmd, outcomeAborted)
		log.Warn().Err(err).Msg("closing connection")
		return err
	}

	s.stats.recordCommand(cmd, outcomeFailure)
	log.Info().Err(err).Msg("command failed")
	return s.w.WriteToken(wire.TokenFailure)
}

// isFailure reports whether err is answered with ":failure:" rather than
// closing the connection.
func isFailure(err error) bool {
	return errors.Is(err, ErrDeclined) || !wire.ShouldCloseConnection(err)
}

func (s *Session) confirm(ctx context.Context, ask bool, format string, args ...any) error {
	if !ask {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if !s.config.Confirmer.Confirm(ctx, msg) {
		return fmt.Errorf("%s: %w", msg, ErrDeclined)
	}
	return nil
}

// handleRequestContacts exports every contact and fills the registry.
//
// Wire format: (:start_contact: <record> :end_contact:)* :done:
func (s *Session) handleRequestContacts(ctx context.Context, log zerolog.Logger) (string, error) {
	s.registry.Clear()

	count := 0
	err := s.store.Walk(ctx, func(src contact.Source, c *contact.Contact) error {
		record := s.codec.Encode(c)
		s.registry.Put(c.ID, c, src, record)
		if err := s.w.WriteContact(record); err != nil {
			return err
		}
		s.stats.recordExported()
		count++
		return nil
	})

	var connErr *wire.ConnectionError
	if errors.As(err, &connErr) {
		return "", err
	}

	outcome := outcomeOK
	if err != nil {
		// The export is cut short but the peer still gets its terminator.
		log.Error().Err(err).Int("exported", count).Msg("walking the contact store failed")
		outcome = outcomeFailure
	} else {
		log.Debug().Int("exported", count).Msg("contacts exported")
	}

	return outcome, s.w.WriteToken(wire.TokenDone)
}

// handleModify merges a record into an exported contact.
//
// Wire format: <id> <record lines>* :done: -> :ok: | :failure:
func (s *Session) handleModify(ctx context.Context, log zerolog.Logger) (string, error) {
	id, err := s.readID()
	if err != nil {
		return "", err
	}

	entry, ok := s.registry.Get(id)
	if !ok {
		// The pending record is left on the stream; the dispatcher skips it.
		return "", &LookupError{ID: id}
	}

	record, err := s.r.ReadRecord()
	if err != nil {
		return "", err
	}

	if RecordDigest(record) == entry.Digest {
		log.Debug().Str("id", id).Msg("record unchanged")
		return outcomeUnchanged, s.w.WriteToken(wire.TokenOK)
	}

	if err := s.confirm(ctx, s.config.AskModify, "Modify contact %q?", displayName(entry.Contact)); err != nil {
		return "", err
	}

	working := entry.Contact.Clone()
	changed, err := s.codec.Merge(working, record)
	if err != nil {
		return "", err
	}

	if changed {
		if err := s.store.Update(ctx, id, working); err != nil {
			return "", &StoreError{Op: "update", ID: id, Err: err}
		}
		s.stats.recordModified()
	}

	if working.ID != id {
		s.registry.Remove(id)
	}
	s.registry.Put(working.ID, working, entry.Source, record)

	log.Debug().
		Str("id", working.ID).
		Bool("changed", changed).
		Dur("exported_for", coarsetime.Since(entry.ExportedAt)).
		Msg("contact modified")
	return outcomeOK, s.w.WriteToken(wire.TokenOK)
}

// handleDelete removes an exported contact from its source.
//
// Wire format: <id> -> :ok: | :failure:
func (s *Session) handleDelete(ctx context.Context, log zerolog.Logger) (string, error) {
	id, err := s.readID()
	if err != nil {
		return "", err
	}

	entry, ok := s.registry.Get(id)
	if !ok {
		return "", &LookupError{ID: id}
	}

	if err := s.confirm(ctx, s.config.AskDelete, "Delete contact %q?", displayName(entry.Contact)); err != nil {
		return "", err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return "", &StoreError{Op: "delete", ID: id, Err: err}
	}
	s.registry.Remove(id)
	s.stats.recordDeleted()

	log.Debug().
		Str("id", id).
		Str("source", entry.Source.Name).
		Dur("exported_for", coarsetime.Since(entry.ExportedAt)).
		Msg("contact deleted")
	return outcomeOK, s.w.WriteToken(wire.TokenOK)
}

// handleAdd creates a contact and echoes its canonical record.
//
// Wire format: [:start_contact:] <record lines>* [:end_contact:] :done:
// -> :start_contact: <record> :end_contact: | :failure:
func (s *Session) handleAdd(ctx context.Context, log zerolog.Logger) (string, error) {
	record, err := s.r.ReadUntil(wire.TokenDone, wire.TokenStartContact, wire.TokenEndContact)
	if err != nil {
		return "", err
	}

	c, err := s.codec.Decode(record)
	if err != nil {
		return "", err
	}

	if err := s.confirm(ctx, s.config.AskAdd, "Add contact %q?", displayName(c)); err != nil {
		return "", err
	}

	folder, err := s.resolveFolder(ctx)
	if err != nil {
		return "", err
	}

	created, err := s.store.Create(ctx, folder, c)
	if err != nil {
		return "", &StoreError{Op: "create", Err: err}
	}
	s.stats.recordAdded()

	log.Debug().Str("id", created.ID).Str("source", folder).Msg("contact added")

	if err := s.w.WriteContact(s.codec.Encode(created)); err != nil {
		return "", err
	}
	return outcomeOK, s.w.Flush()
}

func (s *Session) resolveFolder(ctx context.Context) (string, error) {
	if s.config.AddressBookChoice == AddressBookDefault {
		return s.config.FolderPath, nil
	}

	folder, err := s.config.FolderResolver.ResolveFolder(ctx, s.config.FolderPath)
	if err != nil {
		return "", &StoreError{Op: "resolve folder", Err: err}
	}
	if folder == "" {
		return "", fmt.Errorf("no folder selected: %w", ErrDeclined)
	}
	return folder, nil
}

func (s *Session) readID() (string, error) {
	line, err := s.r.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", &wire.FramingError{Message: "stream ended before identifier", Err: io.ErrUnexpectedEOF}
		}
		return "", err
	}
	return strings.TrimRight(line, " \t\r\n"), nil
}

func displayName(c *contact.Contact) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	if name := strings.TrimSpace(c.FirstName + " " + c.LastName); name != "" {
		return name
	}
	if len(c.Emails) > 0 {
		return c.Emails[0].Address
	}
	return c.ID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
