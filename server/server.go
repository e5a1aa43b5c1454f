package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/nixxel-company-limited/rawprint/rawprint"
	"go.uber.org/zap"
)

const (
	// DefaultMaxJobSize caps the bytes accepted from one connection.
	DefaultMaxJobSize = 16 << 20

	// DefaultMaxConnections caps the connections buffering a job at once.
	DefaultMaxConnections = 4

	// DefaultReadTimeout is how long a client may stay silent mid-job.
	DefaultReadTimeout = 30 * time.Second
)

// ErrJobTooLarge is logged when a client sends more than MaxJobSize bytes.
var ErrJobTooLarge = errors.New("job exceeds maximum size")

// Config describes where received jobs are printed
type Config struct {
	Address      string
	Destination  string
	DocumentName string
	MaxJobSize   int64

	// MaxConnections limits concurrent clients; extra clients are refused.
	MaxConnections int

	// ReadTimeout drops a client that sends nothing for this long.
	ReadTimeout time.Duration
}

// Server is a raw TCP print server. Every client connection carries one job:
// its bytes are collected until the client closes its side and then sent to
// the transport as a single raw job.
type Server struct {
	transport rawprint.Transport
	cfg       Config
	listener  net.Listener
	conns     map[net.Conn]struct{}
	slots     chan struct{}
	mu        sync.Mutex
	jobMu     sync.Mutex
	running   bool
	wg        sync.WaitGroup
	logger    *zap.Logger
}

// New creates a new server instance
func New(transport rawprint.Transport, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxJobSize <= 0 {
		cfg.MaxJobSize = DefaultMaxJobSize
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	return &Server{
		transport: transport,
		cfg:       cfg,
		conns:     make(map[net.Conn]struct{}),
		slots:     make(chan struct{}, cfg.MaxConnections),
		logger:    logger.Named("server"),
	}
}

// Start starts the TCP server and blocks until Stop is called
func (s *Server) Start() error {
	if err := s.listen("blocking"); err != nil {
		return err
	}

	s.logger.Info("Ready to accept connections")
	s.acceptConnections()

	return nil
}

// StartAsync starts the TCP server in a goroutine (non-blocking)
func (s *Server) StartAsync() error {
	if err := s.listen("async"); err != nil {
		return err
	}

	go s.acceptConnections()
	s.logger.Info("Server started in background, ready to accept connections")

	return nil
}

func (s *Server) listen(mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Starting server", zap.String("address", s.cfg.Address), zap.String("mode", mode))

	if s.running {
		s.logger.Error("Server already running")
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		s.logger.Error("Failed to start server", zap.Error(err))
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.listener = listener
	s.running = true
	s.wg.Add(1)
	s.logger.Info("Server listening",
		zap.Stringer("address", listener.Addr()),
		zap.String("destination", s.cfg.Destination))

	return nil
}

// acceptConnections handles incoming client connections
func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.IsRunning() {
				s.logger.Debug("Server shutting down, stopping accept loop")
				return
			}
			s.logger.Warn("Error accepting connection", zap.Error(err))
			continue
		}

		select {
		case s.slots <- struct{}{}:
		default:
			s.logger.Warn("Refusing client, too many connections",
				zap.Stringer("remote", conn.RemoteAddr()),
				zap.Int("max_connections", s.cfg.MaxConnections))
			conn.Close()
			continue
		}

		if !s.track(conn) {
			<-s.slots
			conn.Close()
			return
		}

		s.logger.Debug("Client connected", zap.Stringer("remote", conn.RemoteAddr()))
		go s.handleConnection(conn)
	}
}

// handleConnection reads one job from conn and prints it
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer func() { <-s.slots }()

	log := s.logger.With(zap.Stringer("remote", conn.RemoteAddr()))

	r := &idleReader{conn: conn, timeout: s.cfg.ReadTimeout}
	payload, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxJobSize+1))
	if err != nil {
		log.Warn("Error reading from client", zap.Error(err))
		return
	}
	if int64(len(payload)) > s.cfg.MaxJobSize {
		log.Warn("Dropping job", zap.Error(ErrJobTooLarge), zap.Int64("max_job_size", s.cfg.MaxJobSize))
		return
	}
	if len(payload) == 0 {
		log.Debug("Client sent no data")
		return
	}

	log.Info("Received job", zap.Int("bytes", len(payload)))

	// Whole jobs only: the device must not see two clients interleaved.
	s.jobMu.Lock()
	written, err := s.transport.WriteRaw(s.cfg.Destination, payload, s.cfg.DocumentName)
	s.jobMu.Unlock()

	if err != nil {
		log.Error("Error printing job", zap.Error(err))
		return
	}
	if written < len(payload) {
		log.Warn("Short write to printer", zap.Int("written", written), zap.Int("bytes", len(payload)))
		return
	}
	log.Info("Wrote job to printer", zap.Int("written", written))
}

// track registers conn for Stop. It fails once the server is stopping.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

// ActiveConnections returns the number of clients currently connected
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// idleReader extends the read deadline before every read, so a client is
// dropped only after timeout of silence.
type idleReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
		return 0, err
	}
	return r.conn.Read(p)
}

// Stop closes the listener and every client connection, then waits for
// in-flight jobs to finish. Jobs still being received are discarded.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Debug("Stop called but server is not running")
		return nil
	}

	s.logger.Info("Stopping server")
	s.running = false
	listener := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	for _, c := range conns {
		c.Close()
	}

	s.wg.Wait()
	s.logger.Info("Server stopped")
	return nil
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the configured listen address
func (s *Server) Address() string {
	return s.cfg.Address
}

// Addr returns the bound listener address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
