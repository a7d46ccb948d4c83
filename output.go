package tasktree

import (
	"fmt"
	"io"
	"os"
)

// Output holds stdout and stderr writers for task and build output.
type Output struct {
	Stdout io.Writer
	Stderr io.Writer
}

// StdOutput returns an Output that writes to os.Stdout and os.Stderr.
func StdOutput() *Output {
	return &Output{Stdout: os.Stdout, Stderr: os.Stderr}
}

// DiscardOutput returns an Output that drops everything.
func DiscardOutput() *Output {
	return &Output{Stdout: io.Discard, Stderr: io.Discard}
}

// Printf formats and prints to stdout.
func (o *Output) Printf(format string, a ...any) (int, error) {
	return fmt.Fprintf(o.Stdout, format, a...)
}

// Println prints to stdout with a newline.
func (o *Output) Println(a ...any) (int, error) {
	return fmt.Fprintln(o.Stdout, a...)
}

// Errorf formats and prints to stderr.
func (o *Output) Errorf(format string, a ...any) (int, error) {
	return fmt.Fprintf(o.Stderr, format, a...)
}
