package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/0xADE/ade-launchd/internal/config"
	"github.com/0xADE/ade-launchd/internal/iconcache"
	"github.com/0xADE/ade-launchd/internal/indexer"
	"github.com/0xADE/ade-launchd/internal/launcher"
	"github.com/0xADE/ade-launchd/internal/logging"
	"github.com/0xADE/ade-launchd/internal/search"
	"github.com/0xADE/ade-launchd/parser"
)

const searchTimeout = 5 * time.Second

// Frequencies reports launch counts. *runindex.RunIndex implements it.
type Frequencies interface {
	GetFrequencies(paths []string) map[string]uint64
}

// Session is what the server needs from *launcher.Session.
type Session interface {
	Search(ctx context.Context, q string) ([]search.Result, error)
	Launch(entry indexer.Entry) error
	Entry(path string) (indexer.Entry, bool)
	Rescan() <-chan struct{}
	Status() launcher.Status
}

// Server handles Unix socket connections and command execution
type Server struct {
	listener net.Listener
	session  Session
	counts   Frequencies
	running  bool
	mu       sync.RWMutex
	ctx      context.Context
}

// connState is kept per connection: run and stats refer to the last list
// sent on the same connection.
type connState struct {
	last []search.Result
}

// NewServer listens on the configured socket. counts may be nil.
func NewServer(session Session, counts Frequencies) (*Server, error) {
	socketPath := config.Get().UnixSocket()

	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		return nil, err
	}

	// Remove a socket left over by a previous run
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}
	return NewServerWithListener(listener, session, counts), nil
}

// NewServerWithListener serves on an existing listener.
func NewServerWithListener(listener net.Listener, session Session, counts Frequencies) *Server {
	return &Server{
		listener: listener,
		session:  session,
		counts:   counts,
		ctx:      context.Background(),
	}
}

// Addr returns the listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start accepts connections until Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Warn("Accept failed: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// Stop stops the server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return s.listener.Close()
}

func (s *Server) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	logging.Debug("New connection accepted")

	p, err := parser.NewParser(conn)
	if err != nil {
		logging.Error("Failed to create parser: %v", err)
		s.writeError(conn, "parser", "invalid header", err.Error())
		return
	}

	state := &connState{}
	for {
		cmd, err := p.ParseCommand()
		if err == io.EOF {
			logging.Debug("Connection closed by client")
			return
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) || errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Error("Parse error: %v", err)
			s.writeError(conn, "parser", "parse error", err.Error())
			continue
		}

		logging.Debug("Executing command: %s with %d args", cmd.Name, len(cmd.Args))
		s.executeCommand(conn, state, cmd)
	}
}

func (s *Server) executeCommand(w io.Writer, state *connState, cmd *parser.Command) {
	switch cmd.Name {
	case "search":
		s.handleSearch(w, state, cmd)
	case "list":
		s.handleList(w, state)
	case "run":
		s.handleRun(w, state, cmd)
	case "reindex":
		s.handleReindex(w)
	case "status":
		s.handleStatus(w)
	case "stats":
		s.handleStats(w, state)
	default:
		s.writeError(w, cmd.Name, "unknown command", "Command not recognized")
	}
}

func (s *Server) handleSearch(w io.Writer, state *connState, cmd *parser.Command) {
	query := ""
	for _, arg := range cmd.Args {
		if arg.Type == parser.TypeString {
			query = arg.Str
		}
	}
	s.respondResults(w, state, "search", query)
}

func (s *Server) handleList(w io.Writer, state *connState) {
	s.respondResults(w, state, "list", "")
}

func (s *Server) respondResults(w io.Writer, state *connState, name, query string) {
	ctx, cancel := context.WithTimeout(s.context(), searchTimeout)
	defer cancel()

	results, err := s.session.Search(ctx, query)
	if err != nil {
		s.writeError(w, name, "search failed", err.Error())
		return
	}
	state.last = results

	var b strings.Builder
	fmt.Fprintf(&b, "cmd: %s\n", name)
	if name == "search" {
		fmt.Fprintf(&b, "query: %s\n", clean(query))
	}
	fmt.Fprintf(&b, "list-len: %d\n", len(results))
	fmt.Fprintf(&b, "indexing: %t\n", s.session.Status().Indexing)
	b.WriteString("body:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d\t%d\t%s\t%s\t%s\n", i, r.Score, clean(r.Entry.DisplayName), icon(r.Entry), clean(r.Entry.Path))
	}

	logging.Debug("%s %q: %d results", name, query, len(results))
	s.writeResponse(w, b.String())
}

func (s *Server) handleRun(w io.Writer, state *connState, cmd *parser.Command) {
	if len(cmd.Args) == 0 {
		s.writeError(w, "run", "missing parameter", "run command requires an index or a path")
		return
	}

	var (
		entry indexer.Entry
		ref   string
	)
	switch arg := cmd.Args[len(cmd.Args)-1]; arg.Type {
	case parser.TypeInt:
		if arg.Int < 0 || arg.Int >= int64(len(state.last)) {
			s.writeError(w, "run", "index not found", "Can't run application, requested index not found.")
			return
		}
		entry = state.last[arg.Int].Entry
		ref = fmt.Sprintf("idx: %d", arg.Int)
	case parser.TypeString:
		e, ok := s.session.Entry(arg.Str)
		if !ok {
			s.writeError(w, "run", "path not found", "Can't run application, path is not indexed.")
			return
		}
		entry = e
		ref = "path: " + clean(arg.Str)
	default:
		s.writeError(w, "run", "invalid parameter", "run command requires an index or a path")
		return
	}

	if err := s.session.Launch(entry); err != nil {
		s.writeError(w, "run", "execution failed", err.Error())
		return
	}
	s.writeResponse(w, fmt.Sprintf("cmd: run\n%s\nstatus: 0\n", ref))
}

func (s *Server) handleReindex(w io.Writer) {
	s.session.Rescan()
	s.writeResponse(w, "cmd: reindex\nstatus: 0\nindexing: true\n")
}

func (s *Server) handleStatus(w io.Writer) {
	st := s.session.Status()
	var b strings.Builder
	fmt.Fprintf(&b, "cmd: status\nstate: %s\nindexing: %t\ncount: %d\n", st.State, st.Indexing, st.Count)
	if !st.LastScan.IsZero() {
		fmt.Fprintf(&b, "last-scan: %s\n", st.LastScan.Format(time.RFC3339))
	}
	s.writeResponse(w, b.String())
}

func (s *Server) handleStats(w io.Writer, state *connState) {
	if s.counts == nil {
		s.writeError(w, "stats", "unavailable", "Run index is not available.")
		return
	}

	paths := make([]string, len(state.last))
	for i, r := range state.last {
		paths[i] = r.Entry.Path
	}
	freqs := s.counts.GetFrequencies(paths)

	var b strings.Builder
	fmt.Fprintf(&b, "cmd: stats\nlist-len: %d\nbody:\n", len(state.last))
	for i, r := range state.last {
		fmt.Fprintf(&b, "%d\t%d\t%s\n", i, freqs[r.Entry.Path], clean(r.Entry.DisplayName))
	}
	s.writeResponse(w, b.String())
}

func icon(e indexer.Entry) string {
	if e.HasIcon() {
		return clean(e.IconPath)
	}
	return iconcache.Placeholder(e.DisplayName)
}

// clean keeps a value on one line and inside its column.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, s)
}

// writeResponse writes the header, the attribute block and the terminating
// blank line.
func (s *Server) writeResponse(w io.Writer, response string) {
	if _, err := io.WriteString(w, parser.Header+"\n"+response+"\n"); err != nil {
		logging.Error("Failed to write response: %v", err)
	}
}

func (s *Server) writeError(w io.Writer, cmd, errType, desc string) {
	logging.Debug("Writing error response: cmd=%s, type=%s, desc=%s", cmd, errType, desc)
	s.writeResponse(w, fmt.Sprintf("error-cmd: %s\nerror: %s\ndesc: %s\n", cmd, errType, clean(desc)))
}
