package shell

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// prompter reads answers line by line from the shell's input.
type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{scanner: bufio.NewScanner(in), out: out}
}

// line reads the next raw input line. ok is false at end of input.
func (p *prompter) line() (string, bool) {
	if !p.scanner.Scan() {
		return "", false
	}
	return p.scanner.Text(), true
}

// ask prints label and returns the trimmed answer.
func (p *prompter) ask(label string) (string, bool) {
	fmt.Fprint(p.out, label)
	s, ok := p.line()
	return strings.TrimSpace(s), ok
}

// argOrAsk returns args[i] when present, otherwise asks for it.
func (p *prompter) argOrAsk(args []string, i int, label string) string {
	if i < len(args) {
		return args[i]
	}
	s, _ := p.ask(label)
	return s
}
