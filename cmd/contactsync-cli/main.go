// Command contactsync-cli speaks the bridge protocol interactively, for
// poking at a running contactsyncd.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/pior/contactsync"
	"github.com/pior/contactsync/contact"
)

func main() {
	socketPath := flag.String("socket", contactsync.DefaultSocketPath(contactsync.DefaultAppName), "bridge socket path")
	timeout := flag.Duration("timeout", 5*time.Second, "per-command timeout")
	flag.Parse()

	settings := contactsync.NewCircuitBreakerSettings("contactsync-cli", 1, time.Minute, 10*time.Second)
	dialer := contactsync.NewDialer(contactsync.DialerConfig{
		SocketPath:             *socketPath,
		Timeout:                *timeout,
		CircuitBreakerSettings: &settings,
	})

	fmt.Println("Contact Sync CLI")
	fmt.Println("================")
	fmt.Println("Commands: request, add <address>, add-raw, modify <id>, delete <id>, raw <line>, connect, finish, quit")
	fmt.Println()

	repl := &repl{dialer: dialer, timeout: *timeout, in: bufio.NewScanner(os.Stdin), out: os.Stdout}
	if err := repl.connect(); err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
	}
	repl.run()
}

type repl struct {
	dialer  *contactsync.Dialer
	client  *contactsync.Client
	timeout time.Duration
	codec   contact.Codec

	in  *bufio.Scanner
	out io.Writer
}

func (r *repl) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *repl) run() {
	for {
		r.printf("> ")
		if !r.in.Scan() {
			break
		}

		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}
		command, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		if command == "quit" || command == "exit" {
			if r.client != nil {
				r.client.Finish()
			}
			r.printf("Goodbye!\n")
			return
		}
		r.dispatch(strings.ToLower(command), arg)
	}

	if err := r.in.Err(); err != nil {
		r.printf("Error reading input: %v\n", err)
	}
}

func (r *repl) dispatch(command, arg string) {
	switch command {
	case "connect":
		if err := r.connect(); err != nil {
			r.printf("Failed to connect: %v (breaker %s)\n", err, r.dialer.State())
		}
		return
	case "help":
		r.printf("Commands:\n")
		r.printf("  request          - Export all contacts\n")
		r.printf("  add <address>    - Add a contact from \"Name <email>\"\n")
		r.printf("  add-raw          - Add a contact from a vCard typed until a lone \".\"\n")
		r.printf("  modify <id>      - Replace a contact with a vCard typed until a lone \".\"\n")
		r.printf("  delete <id>      - Delete a contact\n")
		r.printf("  raw <line>       - Send a protocol line and print one response line\n")
		r.printf("  connect          - Open a new session\n")
		r.printf("  finish           - End the session\n")
		r.printf("  quit             - Exit the CLI\n")
		return
	}

	if r.client == nil {
		r.printf("Not connected. Type 'connect' first.\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	var err error
	switch command {
	case "request":
		err = r.handleRequest(ctx)
	case "add":
		err = r.handleAdd(ctx, arg)
	case "add-raw":
		err = r.handleAddRaw(ctx)
	case "modify":
		err = r.handleModify(ctx, arg)
	case "delete", "del":
		err = r.handleDelete(ctx, arg)
	case "raw":
		err = r.handleRaw(arg)
	case "finish":
		err = r.client.Finish()
		r.client = nil
	default:
		r.printf("Unknown command: %s. Type 'help' for available commands.\n", command)
		return
	}

	duration := time.Since(start)
	switch {
	case err == nil:
		r.printf("OK (took %v)\n", duration)
	case errors.Is(err, contactsync.ErrFailure):
		r.printf("Bridge answered :failure: (took %v)\n", duration)
	default:
		r.printf("Error: %v (took %v)\n", err, duration)
		if r.client != nil {
			r.client.Close()
			r.client = nil
		}
	}
}

func (r *repl) connect() error {
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	client, err := r.dialer.Dial(ctx)
	if err != nil {
		return err
	}
	r.client = client
	r.printf("Connected.\n")
	return nil
}

func (r *repl) handleRequest(ctx context.Context) error {
	records, err := r.client.RequestContacts(ctx)
	if err != nil {
		return err
	}
	for _, record := range records {
		c, err := r.codec.Decode(record)
		if err != nil {
			r.printf("  <undecodable record: %v>\n", err)
			continue
		}
		r.printf("  %s\n", formatContact(c))
	}
	r.printf("%d contacts\n", len(records))
	return nil
}

func (r *repl) handleAdd(ctx context.Context, arg string) error {
	if arg == "" {
		r.printf("Usage: add <Name <email>>\n")
		return nil
	}
	addr, err := mail.ParseAddress(arg)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}

	c := &contact.Contact{
		DisplayName: addr.Name,
		Emails:      []*contact.Email{{Address: addr.Address}},
	}
	return r.add(ctx, r.codec.Encode(c))
}

func (r *repl) handleAddRaw(ctx context.Context) error {
	record, ok := r.readRecord()
	if !ok {
		return nil
	}
	return r.add(ctx, record)
}

func (r *repl) add(ctx context.Context, record string) error {
	created, err := r.client.Add(ctx, record)
	if err != nil {
		return err
	}
	c, err := r.codec.Decode(created)
	if err != nil {
		return err
	}
	r.printf("  added %s\n", formatContact(c))
	return nil
}

func (r *repl) handleModify(ctx context.Context, id string) error {
	if id == "" {
		r.printf("Usage: modify <id>\n")
		return nil
	}
	record, ok := r.readRecord()
	if !ok {
		return nil
	}
	return r.client.Modify(ctx, id, record)
}

func (r *repl) handleDelete(ctx context.Context, id string) error {
	if id == "" {
		r.printf("Usage: delete <id>\n")
		return nil
	}
	return r.client.Delete(ctx, id)
}

func (r *repl) handleRaw(line string) error {
	if err := r.client.Send(line); err != nil {
		return err
	}
	resp, err := r.client.ReadLine()
	if err != nil {
		return err
	}
	r.printf("  %s\n", resp)
	return nil
}

// readRecord collects lines until a lone ".".
func (r *repl) readRecord() (string, bool) {
	r.printf("Enter the vCard, end with a line containing only \".\"\n")
	var b strings.Builder
	for r.in.Scan() {
		line := r.in.Text()
		if line == "." {
			return b.String(), true
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return "", false
}

// formatContact renders id and addresses as RFC 5322 mailboxes.
func formatContact(c *contact.Contact) string {
	if len(c.Emails) == 0 {
		return fmt.Sprintf("%s %q", c.ID, c.DisplayName)
	}
	addrs := make([]string, 0, len(c.Emails))
	for _, e := range c.Emails {
		addrs = append(addrs, (&mail.Address{Name: c.DisplayName, Address: e.Address}).String())
	}
	return c.ID + " " + strings.Join(addrs, ", ")
}
