package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"gardener/internal/domain"
)

// TerminalPrompter asks for credentials on the controlling terminal.
type TerminalPrompter struct {
	in        *os.File
	out       io.Writer
	reader    *bufio.Reader
	checkCode string
}

func NewTerminalPrompter(in *os.File, out io.Writer, checkCode string) *TerminalPrompter {
	return &TerminalPrompter{
		in:        in,
		out:       out,
		reader:    bufio.NewReader(in),
		checkCode: checkCode,
	}
}

func (p *TerminalPrompter) Notify(msg string) {
	fmt.Fprintln(p.out, msg)
}

func (p *TerminalPrompter) Prompt() (*domain.Credentials, error) {
	fmt.Fprint(p.out, "username: ")
	username, err := p.readLine()
	if err != nil {
		return nil, fmt.Errorf("read username: %w", err)
	}

	fmt.Fprint(p.out, "password: ")
	password, err := p.readSecret()
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}

	return &domain.Credentials{
		Username:  username,
		Password:  password,
		CheckCode: p.checkCode,
	}, nil
}

func (p *TerminalPrompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *TerminalPrompter) readSecret() (string, error) {
	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		return p.readLine()
	}
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
