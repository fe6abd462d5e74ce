// Package repl reads player actions line by line and plays them as turns.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sat8bit/janus/narrator"
	"github.com/sat8bit/janus/world"
)

type Turner interface {
	Turn(ctx context.Context, input string) (*narrator.Result, error)
}

// View is the terminal side of the loop.
type View interface {
	Result(r *narrator.Result)
	Error(err error)
	Status(s *world.State)
	Prompt()
}

type Loop struct {
	Narrator Turner
	View     View
	// State returns the world shown in the status line.
	State func() *world.State
}

// IsExit reports whether line ends the session.
func IsExit(line string) bool {
	line = strings.TrimSpace(line)
	for _, word := range []string{"exit", "quit", "выход"} {
		if strings.EqualFold(line, word) {
			return true
		}
	}
	return false
}

// LineSource yields one line of player input per call, without the line
// terminator. *readline.Instance satisfies it.
type LineSource interface {
	Readline() (string, error)
}

type lineReader struct {
	r *bufio.Reader
}

// NewReader reads lines of any length from r.
func NewReader(r io.Reader) LineSource {
	return &lineReader{r: bufio.NewReader(r)}
}

func (l *lineReader) Readline() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

type readResult struct {
	line string
	err  error
}

// Run plays one turn per line of src until an exit word, end of input, an
// interrupt or cancellation of ctx. A line is read only after the previous
// turn has been shown. End of input and interrupts end the session quietly.
func (l *Loop) Run(ctx context.Context, src LineSource) error {
	readCtx, stop := context.WithCancel(ctx)
	defer stop()

	want := make(chan struct{})
	got := make(chan readResult, 1)
	go func() {
		for {
			select {
			case <-readCtx.Done():
				return
			case <-want:
			}
			line, err := src.Readline()
			got <- readResult{line: line, err: err}
			if err != nil {
				return
			}
		}
	}()

	for {
		l.View.Status(l.State())
		l.View.Prompt()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case want <- struct{}{}:
		}

		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-got:
			switch {
			case r.err == nil:
				line = r.line
			case errors.Is(r.err, io.EOF), errors.Is(r.err, readline.ErrInterrupt):
				return ctx.Err()
			default:
				return fmt.Errorf("read input: %w", r.err)
			}
		}

		if IsExit(line) {
			return nil
		}

		res, err := l.Narrator.Turn(ctx, line)
		switch {
		case err == nil:
			l.View.Result(res)
		case errors.Is(err, narrator.ErrTurnFailed):
			l.View.Error(err)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			slog.DebugContext(ctx, "turn aborted", "error", err)
			return err
		}
	}
}
