package interp

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// IO is the small I/O trait spec.md §4.4 requires so tests can mock
// stdin/stdout; StdIO is the default backend performing real I/O.
type IO interface {
	Print(s string)
	ReadLine() (string, error)
}

// StdIO performs real process I/O.
type StdIO struct {
	Out    io.Writer
	reader *bufio.Reader
}

// NewStdIO wires a StdIO backend against the process's stdin/stdout.
func NewStdIO() *StdIO {
	return &StdIO{Out: os.Stdout, reader: bufio.NewReader(os.Stdin)}
}

func (s *StdIO) Print(str string) { fmt.Fprint(s.Out, str) }

func (s *StdIO) ReadLine() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return line, nil
}

// MockIO is an in-memory IO backend for deterministic tests: ReadLine
// drains Input in order, Print appends to Output.
type MockIO struct {
	Input  []string
	Output []string
	cursor int
}

func (m *MockIO) Print(s string) { m.Output = append(m.Output, s) }

func (m *MockIO) ReadLine() (string, error) {
	if m.cursor >= len(m.Input) {
		return "", io.EOF
	}
	line := m.Input[m.cursor]
	m.cursor++
	return line, nil
}
