package parser

import (
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseCommand", func() {
	var (
		input    string
		reader   *strings.Reader
		parser   *Parser
		cmd      *Command
		parseErr error
	)

	JustBeforeEach(func() {
		reader = strings.NewReader(input)
		parser, parseErr = NewParser(reader)
		Expect(parseErr).NotTo(HaveOccurred())

		cmd, parseErr = parser.ParseCommand()
		Expect(parseErr).NotTo(HaveOccurred())
	})

	Context("when parsing search command with a query", func() {
		BeforeEach(func() {
			input = "TXT01\n\"my notes \nsearch\n"
		})

		It("should parse command name correctly", func() {
			Expect(cmd.Name).To(Equal("search"))
		})

		It("should keep the spaces inside the query", func() {
			Expect(cmd.Args).To(HaveLen(1))
			Expect(cmd.Args[0].Type).To(Equal(TypeString))
			Expect(cmd.Args[0].Str).To(Equal("my notes "))
		})
	})

	Context("when parsing run command with an index", func() {
		BeforeEach(func() {
			input = `TXT01
# pick the third result
2
run
`
		})

		It("should parse command name correctly", func() {
			Expect(cmd.Name).To(Equal("run"))
		})

		It("should parse the integer argument", func() {
			Expect(cmd.Args).To(ConsistOf(Value{Type: TypeInt, Int: 2}))
		})
	})

	Context("when parsing reindex command without arguments", func() {
		BeforeEach(func() {
			input = `TXT01
reindex
`
		})

		It("should parse command name correctly", func() {
			Expect(cmd.Name).To(Equal("reindex"))
		})

		It("should have no arguments", func() {
			Expect(cmd.Args).To(HaveLen(0))
		})
	})

	Context("when the stream uses CRLF and booleans", func() {
		BeforeEach(func() {
			input = "TXT01\r\nt\r\nf\r\nstatus\r\n"
		})

		It("should parse both booleans", func() {
			Expect(cmd.Name).To(Equal("status"))
			Expect(cmd.Args).To(Equal([]Value{{Type: TypeBool, Bool: true}, {Type: TypeBool}}))
		})
	})
})

var _ = Describe("NewParser", func() {
	It("rejects a foreign header", func() {
		_, err := NewParser(strings.NewReader("JSON1\nlist\n"))
		Expect(err).To(MatchError(ContainSubstring("unsupported format")))
	})

	It("rejects another version", func() {
		_, err := NewParser(strings.NewReader("TXT02\nlist\n"))
		Expect(err).To(MatchError(ContainSubstring("unsupported version")))
	})

	It("rejects a short stream", func() {
		_, err := NewParser(strings.NewReader("TX"))
		Expect(err).To(HaveOccurred())
	})
})

// readAll parses commands until EOF.
func readAll(p *Parser) ([]*Command, error) {
	var cmds []*Command
	for {
		cmd, err := p.ParseCommand()
		if err == io.EOF {
			return cmds, nil
		}
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
}

var _ = Describe("command streams", func() {
	It("reads commands until EOF", func() {
		p, err := NewParser(strings.NewReader("TXT01\nlist\n\"chr\nsearch\n0\nrun\nstats"))
		Expect(err).NotTo(HaveOccurred())
		cmds, err := readAll(p)
		Expect(err).NotTo(HaveOccurred())
		names := []string{}
		for _, c := range cmds {
			names = append(names, c.Name)
		}
		Expect(names).To(Equal([]string{"list", "search", "run", "stats"}))
	})

	It("drops dangling values", func() {
		p, err := NewParser(strings.NewReader("TXT01\n\"orphan\n"))
		Expect(err).NotTo(HaveOccurred())
		_, err = p.ParseCommand()
		Expect(err).To(Equal(io.EOF))
	})

	It("fails on an unknown word", func() {
		p, err := NewParser(strings.NewReader("TXT01\nlaunch-everything\n"))
		Expect(err).NotTo(HaveOccurred())
		_, err = readAll(p)
		Expect(err).To(MatchError(ContainSubstring("cannot parse value")))
	})
})

var _ = Describe("Format", func() {
	It("produces input ParseCommand reads back", func() {
		text := Format(Command{Name: "search", Args: []Value{String("char map")}})
		Expect(text).To(Equal("\"char map\nsearch\n"))

		p, err := NewParser(strings.NewReader(Header + "\n" + text + Format(Command{Name: "run", Args: []Value{Int(1)}})))
		Expect(err).NotTo(HaveOccurred())
		cmds, err := readAll(p)
		Expect(err).NotTo(HaveOccurred())
		Expect(cmds).To(HaveLen(2))
		Expect(cmds[0].Args[0].Str).To(Equal("char map"))
		Expect(cmds[1].Args[0].Int).To(Equal(int64(1)))
	})
})
