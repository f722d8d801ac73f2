package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
)

// NewLineReader returns a readline editor with history when stdin is a
// terminal and a plain line reader otherwise.
func NewLineReader(historyFile string) (LineReader, error) {
	if readline.IsTerminal(int(os.Stdin.Fd())) {
		return NewReadlineReader(historyFile)
	}
	return NewPlainReader(os.Stdin, os.Stdout), nil
}

type readlineReader struct {
	rl *readline.Instance
}

// NewReadlineReader creates an interactive line editor.
func NewReadlineReader(historyFile string) (LineReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         ExitCommand,
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	return &readlineReader{rl: rl}, nil
}

func (r *readlineReader) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return line, ErrInterrupt
	}
	return line, err
}

func (r *readlineReader) Close() error {
	return r.rl.Close()
}

type plainReader struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPlainReader reads lines of any length from in and echoes prompts to out.
func NewPlainReader(in io.Reader, out io.Writer) LineReader {
	return &plainReader{
		in:  bufio.NewReader(in),
		out: out,
	}
}

func (r *plainReader) ReadLine(prompt string) (string, error) {
	if r.out != nil && prompt != "" {
		fmt.Fprint(r.out, prompt)
	}

	line, err := r.in.ReadString('\n')
	if err != nil {
		// A final line without a newline is still a line.
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *plainReader) Close() error {
	return nil
}
