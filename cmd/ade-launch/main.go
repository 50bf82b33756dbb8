package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/0xADE/ade-launchd/client/launch"
	"github.com/0xADE/ade-launchd/internal/config"
	"github.com/0xADE/ade-launchd/internal/logging"
	"github.com/0xADE/ade-launchd/parser"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	queryFlag := &cli.StringFlag{
		Name:    "query",
		Aliases: []string{"q"},
		Usage:   "Query whose results an index refers to (empty browses the index)",
	}
	return &cli.App{
		Name:  "ade-launch",
		Usage: "Search and start applications through ade-launchd",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "socket",
				Aliases: []string{"s"},
				Usage:   "Path of the ade-launchd socket",
				EnvVars: []string{"ADE_LAUNCHD_SOCK"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: func(c *cli.Context) error {
			logging.SetLevel(logging.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Rank indexed applications against a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
			},
			{
				Name:   "list",
				Usage:  "Browse the index",
				Action: listCommand,
			},
			{
				Name:      "run",
				Usage:     "Start an application by result index or by path",
				ArgsUsage: "<index|path>",
				Flags:     []cli.Flag{queryFlag},
				Action:    runCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Rescan application directories",
				Action: reindexCommand,
			},
			{
				Name:  "status",
				Usage: "Show the daemon state",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Poll until the running scan completes",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Polling interval for --wait (default: poll_interval from the settings file)",
						Value: config.DefaultSettings().PollInterval,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Give up waiting after this long",
						Value: 2 * time.Minute,
					},
				},
				Action: statusCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show launch counts for the results of a query",
				Flags:  []cli.Flag{queryFlag},
				Action: statsCommand,
			},
			{
				Name:   "config",
				Usage:  "Show the effective settings",
				Action: configCommand,
			},
			{
				Name:   "interactive",
				Usage:  "Read commands from standard input",
				Action: interactiveCommand,
			},
		},
	}
}

func connect(c *cli.Context) (*launch.Client, error) {
	if socket := c.String("socket"); socket != "" {
		return launch.Dial(socket)
	}
	return launch.NewClient()
}

func printResults(w io.Writer, results []launch.Result, indexing bool) {
	for _, r := range results {
		fmt.Fprintf(w, "%3d  %5d  %-40s %s\n", r.Index, r.Score, r.Name, r.Path)
	}
	if indexing {
		fmt.Fprintln(w, "(indexing in progress, results may be incomplete)")
	}
}

func searchCommand(c *cli.Context) error {
	client, err := connect(c)
	if err != nil {
		return err
	}
	defer client.Close()

	results, indexing, err := client.Search(strings.Join(c.Args().Slice(), " "))
	if err != nil {
		return err
	}
	printResults(c.App.Writer, results, indexing)
	return nil
}

func listCommand(c *cli.Context) error {
	client, err := connect(c)
	if err != nil {
		return err
	}
	defer client.Close()

	results, indexing, err := client.List()
	if err != nil {
		return err
	}
	printResults(c.App.Writer, results, indexing)
	return nil
}

// runTarget splits a run argument into a result index or a path.
func runTarget(arg string) (idx int, path string, err error) {
	if arg == "" {
		return 0, "", errors.New("run requires an index or a path")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 0 {
			return 0, "", fmt.Errorf("invalid index %d", n)
		}
		return n, "", nil
	}
	return -1, arg, nil
}

func runCommand(c *cli.Context) error {
	idx, path, err := runTarget(c.Args().First())
	if err != nil {
		return err
	}

	client, err := connect(c)
	if err != nil {
		return err
	}
	defer client.Close()

	if path != "" {
		return client.RunPath(path)
	}
	// Indexes refer to the last list sent on this connection.
	if _, _, err := client.Search(c.String("query")); err != nil {
		return err
	}
	return client.Run(idx)
}

func reindexCommand(c *cli.Context) error {
	client, err := connect(c)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Reindex(); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "reindex started")
	return nil
}

func statusCommand(c *cli.Context) error {
	client, err := connect(c)
	if err != nil {
		return err
	}
	defer client.Close()

	st, err := client.Status()
	if err != nil {
		return err
	}
	if c.Bool("wait") {
		interval := waitInterval(c)
		deadline := time.Now().Add(c.Duration("timeout"))
		for st.Indexing {
			if time.Now().After(deadline) {
				return errors.New("timed out waiting for the scan to finish")
			}
			time.Sleep(interval)
			if st, err = client.Status(); err != nil {
				return err
			}
		}
	}

	w := c.App.Writer
	fmt.Fprintf(w, "state:     %s\n", st.State)
	fmt.Fprintf(w, "indexing:  %t\n", st.Indexing)
	fmt.Fprintf(w, "entries:   %d\n", st.Count)
	if st.LastScan != "" {
		fmt.Fprintf(w, "last scan: %s\n", st.LastScan)
	}
	return nil
}

// waitInterval returns --interval when given, poll_interval otherwise.
func waitInterval(c *cli.Context) time.Duration {
	if c.IsSet("interval") {
		return c.Duration("interval")
	}
	s, err := config.LoadSettings()
	if err != nil {
		logging.Warn("Using default poll interval: %v", err)
	}
	return s.PollInterval
}

func configCommand(c *cli.Context) error {
	s, err := config.LoadSettings()
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	_, err = c.App.Writer.Write(out)
	return err
}

func statsCommand(c *cli.Context) error {
	client, err := connect(c)
	if err != nil {
		return err
	}
	defer client.Close()

	if _, _, err := client.Search(c.String("query")); err != nil {
		return err
	}
	stats, err := client.Stats()
	if err != nil {
		return err
	}
	for _, s := range stats {
		fmt.Fprintf(c.App.Writer, "%3d  %6d  %s\n", s.Index, s.Runs, s.Name)
	}
	return nil
}

// commandFromLine turns an interactive line into a protocol command.
// "search" keeps the rest of the line as the query; "run" takes an index
// or a path.
func commandFromLine(line string) (parser.Command, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch name {
	case "search":
		return parser.Command{Name: name, Args: []parser.Value{parser.String(strings.TrimSpace(rest))}}, nil
	case "run":
		idx, path, err := runTarget(strings.TrimSpace(rest))
		if err != nil {
			return parser.Command{}, err
		}
		if path != "" {
			return parser.Command{Name: name, Args: []parser.Value{parser.String(path)}}, nil
		}
		return parser.Command{Name: name, Args: []parser.Value{parser.Int(int64(idx))}}, nil
	case "list", "reindex", "status", "stats":
		return parser.Command{Name: name}, nil
	}
	return parser.Command{}, fmt.Errorf("unknown command %q", name)
}

func interactiveCommand(c *cli.Context) error {
	client, err := connect(c)
	if err != nil {
		return err
	}
	defer client.Close()
	return interact(client, os.Stdin, c.App.Writer)
}

func interact(client *launch.Client, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "Interactive mode. Type commands or 'exit' to quit.")
	fmt.Fprint(out, "> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "exit" || line == "quit" {
			break
		}
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}

		cmd, err := commandFromLine(line)
		if err != nil {
			fmt.Fprintf(out, "%v\n> ", err)
			continue
		}

		resp, err := client.Do(cmd)
		if resp != nil {
			launch.WriteResponse(out, resp)
		} else if err != nil {
			return err
		}

		fmt.Fprint(out, "> ")
	}

	return scanner.Err()
}
