package main

import (
	"context"
	"errors"

	"github.com/charmbracelet/huh"
	"github.com/samber/lo"

	"github.com/pior/contactsync/contact"
)

// terminalConfirmer asks on the daemon's terminal. An aborted prompt
// declines.
type terminalConfirmer struct{}

func (terminalConfirmer) Confirm(ctx context.Context, message string) bool {
	ok := false
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(message).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	)).RunWithContext(ctx)
	return err == nil && ok
}

// terminalFolderPicker lets the user choose the book of an added contact.
type terminalFolderPicker struct {
	store contact.Store
}

func (p *terminalFolderPicker) ResolveFolder(ctx context.Context, defaultPath string) (string, error) {
	sources, err := p.store.Sources(ctx)
	if err != nil {
		return "", err
	}

	folder := defaultPath
	err = huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Add contact to which address book?").
			Options(lo.Map(sources, func(src contact.Source, _ int) huh.Option[string] {
				return huh.NewOption(src.Name, src.Path)
			})...).
			Value(&folder),
	)).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return folder, nil
}
