// Package contactsync bridges a mail client's address books to a sync peer
// over a Unix socket.
//
// The peer speaks a line protocol: it exports every contact as a vCard
// record, then modifies, deletes or adds contacts by identifier. Exported
// identifiers live in a per-session registry, so a modify or delete is only
// accepted for contacts sent in the same session. One session runs at a
// time; a second connection is closed as soon as it is accepted.
//
// Basic usage:
//
//	store := memstore.New(contact.Source{Name: "Work", Path: "#mh/Mailbox/work"})
//	server, err := contactsync.NewServer(store, contactsync.Config{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer server.Close()
//	err = server.ListenAndServe(ctx)
//
// The peer side is available as Client:
//
//	client, err := contactsync.Dial(ctx, server.SocketPath())
//	records, err := client.RequestContacts(ctx)
//	err = client.Modify(ctx, id, record)
//	err = client.Finish()
package contactsync
