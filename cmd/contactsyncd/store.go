package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/pior/contactsync"
	"github.com/pior/contactsync/contact"
	"github.com/pior/contactsync/store/memstore"
	"github.com/pior/contactsync/store/sqlstore"
)

// defaultSource is created when the configuration declares no address book.
var defaultSource = contact.Source{Name: "Addressbook", Path: "#mh/Mailbox/addrbook"}

func configuredSources(cfg contactsync.Config) []contact.Source {
	if len(cfg.Sources) == 0 {
		return []contact.Source{defaultSource}
	}
	return lo.Map(cfg.Sources, func(sc contactsync.SourceConfig, _ int) contact.Source {
		name := sc.Name
		if name == "" {
			name = sc.Path
		}
		return contact.Source{Name: name, Path: sc.Path}
	})
}

// openStore builds the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg contactsync.Config, log zerolog.Logger) (contact.Store, func(), error) {
	sources := configuredSources(cfg)

	switch cfg.Store {
	case contactsync.StoreSQLite:
		db, err := sqlstore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		for _, src := range sources {
			if err := db.EnsureSource(ctx, src); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("source %q: %w", src.Path, err)
			}
		}
		log.Info().Str("path", cfg.SQLitePath).Int("sources", len(sources)).Msg("sqlite store opened")
		return db, func() {
			if err := db.Close(); err != nil {
				log.Error().Err(err).Msg("closing sqlite store")
			}
		}, nil

	default:
		mem := memstore.New(sources...)
		log.Info().Int("sources", len(sources)).Msg("memory store ready, changes are not persisted")
		return mem, func() { flushMemory(mem, log) }, nil
	}
}

// flushMemory reports the books changed during the run.
func flushMemory(mem *memstore.Store, log zerolog.Logger) {
	err := mem.Flush(func(src contact.Source, contacts []*contact.Contact) error {
		log.Info().Str("source", src.Name).Int("contacts", len(contacts)).Msg("address book changed")
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("flushing memory store")
	}
}
