// Package parser reads the TXT01 command stream: typed values, one per
// line, followed by a command word that consumes them.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// Header opens every client stream and every server response.
const Header = "TXT01"

// ValueType represents the type of a value on the stack
type ValueType int

const (
	TypeString ValueType = iota
	TypeInt
	TypeBool
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Value represents a value on the stack
type Value struct {
	Type ValueType
	Str  string
	Int  int64
	Bool bool
}

// Command represents a parsed command
type Command struct {
	Name string
	Args []Value
}

// Commands lists the command words the daemon understands.
var Commands = []string{
	"search",
	"list",
	"run",
	"reindex",
	"status",
	"stats",
}

// Parser parses stack-style commands
type Parser struct {
	reader  *bufio.Reader
	header  string
	version string
}

// NewParser reads and checks the stream header.
func NewParser(reader io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(reader),
	}

	headerBytes := make([]byte, len(Header))
	if _, err := io.ReadFull(p.reader, headerBytes); err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}

	p.header = string(headerBytes[:3])
	p.version = string(headerBytes[3:5])

	if p.header != "TXT" {
		return nil, fmt.Errorf("unsupported format: %s", p.header)
	}
	if p.version != Header[3:] {
		return nil, fmt.Errorf("unsupported version: %s", p.version)
	}

	return p, nil
}

// ParseCommand parses the next command from input. Values pushed without a
// following command are dropped at EOF.
func (p *Parser) ParseCommand() (*Command, error) {
	stack := make([]Value, 0)

	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			if err == io.EOF {
				return nil, io.EOF
			}
			continue
		}

		if slices.Contains(Commands, trimmed) {
			return &Command{
				Name: trimmed,
				Args: stack,
			}, nil
		}

		value, perr := parseValue(line)
		if perr != nil {
			return nil, fmt.Errorf("parse error: %w", perr)
		}
		stack = append(stack, value)

		if err == io.EOF {
			return nil, io.EOF
		}
	}
}

func parseValue(line string) (Value, error) {
	// Strings keep inner and trailing spaces: queries may contain them.
	if after, ok := strings.CutPrefix(strings.TrimLeft(line, " \t"), `"`); ok {
		return Value{Type: TypeString, Str: after}, nil
	}

	line = strings.TrimSpace(line)
	switch line {
	case "t":
		return Value{Type: TypeBool, Bool: true}, nil
	case "f":
		return Value{Type: TypeBool, Bool: false}, nil
	}

	if intVal, err := strconv.ParseInt(line, 10, 64); err == nil {
		return Value{Type: TypeInt, Int: intVal}, nil
	}

	return Value{}, fmt.Errorf("cannot parse value: %s", line)
}

// Format renders a command the way ParseCommand reads it.
func Format(cmd Command) string {
	var b strings.Builder
	for _, v := range cmd.Args {
		switch v.Type {
		case TypeString:
			b.WriteString(`"` + strings.ReplaceAll(v.Str, "\n", " "))
		case TypeInt:
			b.WriteString(strconv.FormatInt(v.Int, 10))
		case TypeBool:
			if v.Bool {
				b.WriteString("t")
			} else {
				b.WriteString("f")
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString(cmd.Name)
	b.WriteByte('\n')
	return b.String()
}

// String returns a string argument.
func String(s string) Value {
	return Value{Type: TypeString, Str: s}
}

// Int returns an integer argument.
func Int(n int64) Value {
	return Value{Type: TypeInt, Int: n}
}
