package book

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ConsolePrompter reads field values interactively, one line per question.
type ConsolePrompter struct {
	In  io.Reader
	Out io.Writer

	rd *bufio.Reader
}

func (p *ConsolePrompter) Prompt(description string) (string, error) {
	if p.rd == nil {
		p.rd = bufio.NewReader(p.In)
	}
	fmt.Fprintf(p.Out, "%s: ", description)
	line, err := p.rd.ReadString('\n')
	if err != nil && (err != io.EOF || len(line) == 0) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
