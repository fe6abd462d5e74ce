package renderer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mitchellh/go-wordwrap"

	"github.com/sat8bit/janus/narrator"
	"github.com/sat8bit/janus/profile"
	"github.com/sat8bit/janus/turn"
	"github.com/sat8bit/janus/world"
)

const (
	defaultWidth  = 72
	defaultPrompt = "> "
	barCells      = 10

	// entropyScale is the entropy drawn as a full gauge. Entropy itself has
	// no upper bound.
	entropyScale = 1.5

	farewell = "Данные зафиксированы. Реальность сохранена."
)

// Console draws turns and the status line on a terminal.
type Console struct {
	out   io.Writer
	turns turn.Provider

	// Width is the wrap column.
	Width int
	// Delay is the pause after each narrative rune. Zero prints at once.
	Delay time.Duration
	// PromptText is printed before each input. It is empty when the line
	// editor draws its own prompt.
	PromptText string
}

// NewConsole returns a console writing to out. turns may be nil.
func NewConsole(out io.Writer, turns turn.Provider) *Console {
	return &Console{out: out, turns: turns, Width: defaultWidth, PromptText: defaultPrompt}
}

// Intro prints the opening scene.
func (c *Console) Intro(text string) {
	fmt.Fprintln(c.out)
	c.typewrite(wrap(text, c.Width))
	fmt.Fprintln(c.out)
}

func (c *Console) Result(r *narrator.Result) {
	fmt.Fprintln(c.out)
	header := r.VisualClue
	if r.Archetype != nil {
		header = strings.TrimSpace(header + " " + r.Archetype.DisplayName)
	}
	if header != "" {
		fmt.Fprintf(c.out, "[%s]\n", header)
	}
	c.typewrite(wrap(r.Narrative, c.Width))

	if r.Artifact != nil {
		line := "[+] Артефакт: " + r.Artifact.Name
		if r.Artifact.Description != "" {
			line += " (" + r.Artifact.Description + ")"
		}
		fmt.Fprintln(c.out, wrap(line, c.Width))
	}
	if r.Lore != "" {
		fmt.Fprintln(c.out, wrap("[!] Истина: "+r.Lore, c.Width))
	}
	if len(r.Choices) > 0 {
		fmt.Fprintln(c.out, "Пути:")
		for i, ch := range r.Choices {
			fmt.Fprintf(c.out, "  %d. %s\n", i+1, ch)
		}
	}
}

// Status prints the one-line summary of the world.
func (c *Console) Status(s *world.State) {
	line := fmt.Sprintf("глубина %d | энтропия %s %.2f | профиль %s | артефакты %d",
		s.Depth, bar(s.Entropy), s.Entropy, profile.LabelOf(s.Metrics), len(s.Inventory))
	if c.turns != nil {
		if m := c.turns.MaxTurns(); m > 0 {
			line += fmt.Sprintf(" | ход %d/%d", c.turns.CurrentTurn(), m)
		} else {
			line += fmt.Sprintf(" | ход %d", c.turns.CurrentTurn())
		}
	}
	fmt.Fprintf(c.out, "\n[%s]\n", line)
}

func (c *Console) Error(err error) {
	fmt.Fprintf(c.out, "\n[СБОЙ СВЯЗИ] %v\n", err)
}

func (c *Console) Prompt() {
	if c.PromptText != "" {
		fmt.Fprint(c.out, c.PromptText)
	}
}

// Farewell closes the session. A world that never went below the surface
// leaves without a word.
func (c *Console) Farewell(s *world.State) {
	fmt.Fprintln(c.out)
	if s != nil && s.Depth > 1 {
		fmt.Fprintln(c.out, farewell)
	}
}

func (c *Console) typewrite(text string) {
	if c.Delay <= 0 {
		fmt.Fprintln(c.out, text)
		return
	}
	for _, r := range text {
		fmt.Fprint(c.out, string(r))
		time.Sleep(c.Delay)
	}
	fmt.Fprintln(c.out)
}

// bar draws v as a fixed-width gauge where entropyScale fills it. Values
// above the scale fill it too.
func bar(v float64) string {
	n := int(v/entropyScale*barCells + 0.5)
	n = min(max(n, 0), barCells)
	return strings.Repeat("█", n) + strings.Repeat("░", barCells-n)
}

// wrap breaks text on spaces so that no line exceeds width runes, unless a
// single word is longer.
func wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wordwrap.WrapString(text, uint(width))
}
