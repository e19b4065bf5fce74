package contactsync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/jackc/puddle/v2"
	"github.com/rs/zerolog"

	"github.com/pior/contactsync/contact"
)

// Server accepts peer connections on a Unix socket and serves them one at a
// time. A connection arriving while a session runs is closed immediately.
type Server struct {
	config Config
	log    zerolog.Logger
	stats  *serverStatsCollector

	// slot holds the single Session. Acquiring it admits a connection.
	slot    *puddle.Pool[*Session]
	session *Session

	mu         sync.Mutex
	listener   net.Listener
	socketPath string // set when the server created the socket file
	active     net.Conn
	closed     bool

	wg sync.WaitGroup
}

// NewServer creates a server backed by store.
func NewServer(store contact.Store, config Config) (*Server, error) {
	if store == nil {
		return nil, errors.New("contactsync: store is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("contactsync: %w", err)
	}
	if config.FolderResolver == nil {
		config.FolderResolver = DefaultFolder(store)
		if config.AddressBookChoice != AddressBookDefault && config.FolderPath == "" {
			config.Logger.Info().Msg("no folder picker and no addrbook_folderpath configured, added contacts go to the first address book")
		}
	}
	config = config.WithDefaults()

	s := &Server{
		config: config,
		log:    config.Logger,
	}
	s.session = newSession(config, store, nil)
	s.stats = newServerStatsCollector(config.Registerer, s.session.registry.Len)
	s.session.stats = s.stats

	slot, err := puddle.NewPool(&puddle.Config[*Session]{
		Constructor: func(context.Context) (*Session, error) {
			return s.session, nil
		},
		Destructor: func(sess *Session) {
			sess.registry.Clear()
		},
		MaxSize: 1,
	})
	if err != nil {
		return nil, err
	}

	// Pre-create the resource: TryAcquire on an empty pool would only start
	// a background create and report ErrNotAvailable.
	if err := slot.CreateResource(context.Background()); err != nil {
		slot.Close()
		return nil, fmt.Errorf("contactsync: creating session slot: %w", err)
	}
	s.slot = slot

	return s, nil
}

// Listen binds the configured socket path. It returns ErrSocketInUse when
// another instance is answering there.
func (s *Server) Listen() (net.Listener, error) {
	path := s.config.SocketPath
	ln, err := listenUnix(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.socketPath = path
	s.mu.Unlock()

	s.log.Info().Str("socket", path).Msg("listening")
	return ln, nil
}

// ListenAndServe binds the socket and serves until ctx is cancelled or
// Close is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or Close is called,
// then returns ErrServerClosed. Serve takes ownership of ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		res, err := s.slot.TryAcquire(ctx)
		if err != nil {
			// puddle.ErrNotAvailable: a session is running
			s.stats.recordRejected()
			s.log.Warn().Err(err).Msg("rejecting connection, a session is already active")
			conn.Close()
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			res.Release()
			return ErrServerClosed
		}
		s.active = conn
		s.wg.Add(1)
		s.mu.Unlock()

		go s.runSession(ctx, res, conn)
	}
}

func (s *Server) runSession(ctx context.Context, res *puddle.Resource[*Session], conn net.Conn) {
	defer s.wg.Done()

	s.stats.recordAccepted()
	// The slot is released last: the next peer can only be admitted once
	// this session stopped reporting itself active.
	defer func() {
		s.endSession(conn)
		res.Release()
	}()

	log := s.log.With().Str("remote", remoteName(conn)).Logger()
	log.Info().Msg("session started")

	err := res.Value().Serve(ctx, conn)
	conn.Close()

	switch {
	case err == nil:
		log.Info().Msg("session ended")
	case s.isClosed():
		log.Info().Msg("session interrupted by shutdown")
	default:
		log.Warn().Err(err).Msg("session aborted")
	}
}

// Close stops accepting, closes the active connection, waits for the session
// to wind down and removes the socket file.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	active := s.active
	path := s.socketPath
	s.mu.Unlock()

	var errs []error
	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if active != nil {
		active.Close()
	}

	s.wg.Wait()
	s.slot.Close()

	if path != "" {
		if err := removeSocket(path); err != nil {
			errs = append(errs, fmt.Errorf("remove socket: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Stats returns a snapshot of server activity.
func (s *Server) Stats() ServerStats {
	st := s.stats.snapshot()
	st.RegistrySize = s.session.registry.Len()
	return st
}

// SocketPath returns the configured socket path.
func (s *Server) SocketPath() string {
	return s.config.SocketPath
}

// endSession clears the active connection if it is still conn.
func (s *Server) endSession(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == conn {
		s.active = nil
	}
	s.stats.recordSessionEnd()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func remoteName(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil && addr.String() != "" {
		return addr.String()
	}
	return "@"
}
