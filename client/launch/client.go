// Package launch is a client for the ade-launchd socket.
package launch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/0xADE/ade-launchd/parser"
)

// Result is one line of a search or list response.
type Result struct {
	Index int
	Score int
	Name  string
	Icon  string // cached icon path or a one-letter placeholder
	Path  string
}

// HasIcon reports whether Icon is a file rather than a placeholder.
func (r Result) HasIcon() bool {
	return strings.HasPrefix(r.Icon, "/")
}

// Stat is one line of a stats response.
type Stat struct {
	Index int
	Runs  uint64
	Name  string
}

// Status mirrors the status response.
type Status struct {
	State    string
	Indexing bool
	Count    int
	LastScan string
}

// ServerError is returned when the daemon answers with an error block.
type ServerError struct {
	Cmd  string
	Type string
	Desc string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %s: %s (%s)", e.Cmd, e.Type, e.Desc)
}

// Response is a decoded response block.
type Response struct {
	Attrs map[string]string
	Body  []string
}

// Err returns a *ServerError for error responses.
func (r *Response) Err() error {
	if msg, ok := r.Attrs["error"]; ok {
		return &ServerError{Cmd: r.Attrs["error-cmd"], Type: msg, Desc: r.Attrs["desc"]}
	}
	return nil
}

// Client handles connection to the ade-launchd server
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
}

// NewClient connects to the socket named by SocketPath.
func NewClient() (*Client, error) {
	socketPath, err := SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get socket path: %w", err)
	}
	return Dial(socketPath)
}

// Dial connects to socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket %s: %w", socketPath, err)
	}
	c, err := NewClientFromConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClientFromConn sends the stream header on conn.
func NewClientFromConn(conn net.Conn) (*Client, error) {
	if _, err := io.WriteString(conn, parser.Header+"\n"); err != nil {
		return nil, fmt.Errorf("failed to send header: %w", err)
	}
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Do sends cmd and reads its response. Error responses are returned as the
// response together with a *ServerError.
func (c *Client) Do(cmd parser.Command) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.conn, parser.Format(cmd)); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", cmd.Name, err)
	}
	resp, err := ReadResponse(c.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, resp.Err()
}

// Search returns the ranked results for query and whether a scan is
// running. An empty query browses the index.
func (c *Client) Search(query string) ([]Result, bool, error) {
	return c.results(parser.Command{Name: "search", Args: []parser.Value{parser.String(query)}})
}

// List browses the index.
func (c *Client) List() ([]Result, bool, error) {
	return c.results(parser.Command{Name: "list"})
}

func (c *Client) results(cmd parser.Command) ([]Result, bool, error) {
	resp, err := c.Do(cmd)
	if err != nil {
		return nil, false, err
	}
	results := make([]Result, 0, len(resp.Body))
	for _, line := range resp.Body {
		r, err := ParseResult(line)
		if err != nil {
			return nil, false, err
		}
		results = append(results, r)
	}
	return results, resp.Attrs["indexing"] == "true", nil
}

// Run launches entry idx of the last list returned on this connection.
func (c *Client) Run(idx int) error {
	_, err := c.Do(parser.Command{Name: "run", Args: []parser.Value{parser.Int(int64(idx))}})
	return err
}

// RunPath launches the indexed entry at path.
func (c *Client) RunPath(path string) error {
	_, err := c.Do(parser.Command{Name: "run", Args: []parser.Value{parser.String(path)}})
	return err
}

// Reindex asks for a rescan without waiting for it.
func (c *Client) Reindex() error {
	_, err := c.Do(parser.Command{Name: "reindex"})
	return err
}

// Status returns the daemon state.
func (c *Client) Status() (Status, error) {
	resp, err := c.Do(parser.Command{Name: "status"})
	if err != nil {
		return Status{}, err
	}
	count, _ := strconv.Atoi(resp.Attrs["count"])
	return Status{
		State:    resp.Attrs["state"],
		Indexing: resp.Attrs["indexing"] == "true",
		Count:    count,
		LastScan: resp.Attrs["last-scan"],
	}, nil
}

// Stats returns launch counts for the last list returned on this
// connection.
func (c *Client) Stats() ([]Stat, error) {
	resp, err := c.Do(parser.Command{Name: "stats"})
	if err != nil {
		return nil, err
	}
	stats := make([]Stat, 0, len(resp.Body))
	for _, line := range resp.Body {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed stats line %q", line)
		}
		idx, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("malformed stats line %q: %w", line, err)
		}
		runs, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed stats line %q: %w", line, err)
		}
		stats = append(stats, Stat{Index: idx, Runs: runs, Name: parts[2]})
	}
	return stats, nil
}

// ParseResult decodes "<n>\t<score>\t<name>\t<icon>\t<path>".
func ParseResult(line string) (Result, error) {
	parts := strings.SplitN(line, "\t", 5)
	if len(parts) != 5 {
		return Result{}, fmt.Errorf("malformed result line %q", line)
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil {
		return Result{}, fmt.Errorf("malformed result index %q: %w", parts[0], err)
	}
	score, err := strconv.Atoi(parts[1])
	if err != nil {
		return Result{}, fmt.Errorf("malformed result score %q: %w", parts[1], err)
	}
	return Result{Index: idx, Score: score, Name: parts[2], Icon: parts[3], Path: parts[4]}, nil
}

// ReadResponse reads one response block: the header line, "key: value"
// attributes, an optional "body:" section and a terminating blank line.
func ReadResponse(reader *bufio.Reader) (*Response, error) {
	header, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response header: %w", err)
	}
	if strings.TrimSpace(header) != parser.Header {
		return nil, fmt.Errorf("unexpected response header %q", strings.TrimSpace(header))
	}

	resp := &Response{Attrs: make(map[string]string)}
	inBody := false
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line == "" {
				return resp, nil
			}
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("read error: %w", err)
			}
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			return resp, nil
		}
		if !inBody && line == "body:" {
			inBody = true
			continue
		}
		if inBody {
			resp.Body = append(resp.Body, line)
			continue
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			resp.Attrs[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
		if err != nil {
			return resp, nil
		}
	}
}

// WriteResponse prints resp the way the daemon sent it, without header.
func WriteResponse(w io.Writer, resp *Response) {
	keys := make([]string, 0, len(resp.Attrs))
	for k := range resp.Attrs {
		keys = append(keys, k)
	}
	sortKeys(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, resp.Attrs[k])
	}
	if len(resp.Body) > 0 {
		fmt.Fprintln(w, "body:")
		for _, line := range resp.Body {
			fmt.Fprintln(w, line)
		}
	}
}

// sortKeys puts "cmd" and "error-cmd" first, the rest alphabetically.
func sortKeys(keys []string) {
	rank := func(k string) int {
		if k == "cmd" || k == "error-cmd" {
			return 0
		}
		return 1
	}
	sort.Slice(keys, func(i, j int) bool {
		if ri, rj := rank(keys[i]), rank(keys[j]); ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
}
