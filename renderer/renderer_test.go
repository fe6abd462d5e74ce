package renderer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sat8bit/janus/archetype"
	"github.com/sat8bit/janus/bus"
	"github.com/sat8bit/janus/message"
	"github.com/sat8bit/janus/narrator"
	"github.com/sat8bit/janus/world"
)

func TestMarkdownRendererWritesTranscript(t *testing.T) {
	dir := t.TempDir()
	r := NewMarkdownRenderer(dir)
	r.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	b := bus.NewMemoryBus()
	var wg sync.WaitGroup
	if err := r.Render(b, &wg); err != nil {
		t.Fatalf("render: %v", err)
	}
	jester := &archetype.Archetype{ID: archetype.Jester, DisplayName: "Шут", Icon: "🃏"}
	msgs := []*message.Message{
		{Kind: message.KindSystem, Text: "Ты стоишь перед зеркалом.", Depth: 1},
		{Kind: message.KindPhase, Text: "requesting"},
		{Kind: message.KindUser, Text: "открыть дверь", Depth: 1},
		{Kind: message.KindLore, Text: "Зеркало помнит", Depth: 2},
		{Kind: message.KindAI, Text: "Дверь смеётся.", Depth: 2, Archetype: jester, Meta: map[string]string{"choices": "войти | уйти"}},
	}
	for _, m := range msgs {
		_ = b.Broadcast(m)
	}
	b.Close()
	wg.Wait()

	path := r.Path()
	if path != filepath.Join(dir, "20250301-120000.md") {
		t.Fatalf("unexpected path %q", path)
	}
	st := world.New()
	st.Depth = 2
	st.AddArtifact(world.Artifact{Name: "Ключ"})
	if err := r.Finalize(st); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := string(data)
	for _, want := range []string{
		`title = "Janus Genesis: глубина 2"`,
		`tags = ["janus-genesis", "Шут"]`,
		"> **Путник:** открыть дверь",
		"**🃏 Шут:** Дверь смеётся.",
		"_Пути: войти | уйти_",
		"- Истина: _Зеркало помнит_",
		"## Итог",
		"  - Ключ",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("transcript lacks %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "requesting") {
		t.Error("phase messages must not be transcribed")
	}
}

func TestMarkdownRendererSkipsSessionsWithoutNarration(t *testing.T) {
	dir := t.TempDir()
	r := NewMarkdownRenderer(dir)
	b := bus.NewMemoryBus()
	var wg sync.WaitGroup
	_ = r.Render(b, &wg)
	_ = b.Broadcast(&message.Message{Kind: message.KindUser, Text: "x"})
	b.Close()
	wg.Wait()

	if r.Path() != "" {
		t.Fatalf("expected no transcript, got %q", r.Path())
	}
	if err := r.Finalize(world.New()); err != nil {
		t.Fatalf("finalize without transcript: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, got %d entries", len(entries))
	}
}

type fixedTurns struct{ cur, max int }

func (f fixedTurns) CurrentTurn() int { return f.cur }
func (f fixedTurns) MaxTurns() int    { return f.max }

func TestConsoleStatus(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, fixedTurns{cur: 2, max: 10})
	st := world.New()
	st.Entropy = 0.3
	st.Metrics.Dominance = 0.4
	c.Status(st)

	want := "\n[глубина 1 | энтропия ██░░░░░░░░ 0.30 | профиль Aggressive | артефакты 0 | ход 2/10]\n"
	if buf.String() != want {
		t.Fatalf("got %q\nwant %q", buf.String(), want)
	}
}

func TestConsoleResult(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, nil)
	c.Result(&narrator.Result{
		Archetype:  &archetype.Archetype{DisplayName: "Отец", Icon: "🏛"},
		Narrative:  "Камень молчит.",
		VisualClue: "🏛",
		Choices:    []string{"ждать", "уйти"},
		Artifact:   &world.Artifact{Name: "Ключ", Description: "ржавый"},
		Lore:       "Тишина старше слов",
	})
	c.Error(errors.New("offline"))

	got := buf.String()
	for _, want := range []string{
		"[🏛 Отец]\nКамень молчит.\n",
		"[+] Артефакт: Ключ (ржавый)\n",
		"[!] Истина: Тишина старше слов\n",
		"  1. ждать\n  2. уйти\n",
		"[СБОЙ СВЯЗИ] offline",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output lacks %q:\n%s", want, got)
		}
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"один два три", 7, "один\nдва три"},
		{"коротко", 20, "коротко"},
		{"сверхдлинноеслово x", 5, "сверхдлинноеслово\nx"},
		{"a b\nc", 10, "a b\nc"},
		{"a  b", 0, "a  b"},
		{"ёж ёж ёж", 5, "ёж ёж\nёж"},
	}
	for _, tt := range tests {
		if got := wrap(tt.in, tt.width); got != tt.want {
			t.Errorf("wrap(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestBar(t *testing.T) {
	if got := bar(0); got != strings.Repeat("░", barCells) {
		t.Errorf("bar(0) = %q", got)
	}
	if got := bar(1.7); got != strings.Repeat("█", barCells) {
		t.Errorf("bar(1.7) = %q", got)
	}
	if got := bar(entropyScale); got != strings.Repeat("█", barCells) {
		t.Errorf("bar(%v) = %q", entropyScale, got)
	}
	if got := bar(1.0); got == strings.Repeat("█", barCells) {
		t.Errorf("bar(1.0) saturated: %q", got)
	}
	if got, want := bar(0.75), strings.Repeat("█", 5)+strings.Repeat("░", 5); got != want {
		t.Errorf("bar(0.75) = %q, want %q", got, want)
	}
}

func TestConsoleFarewell(t *testing.T) {
	tests := []struct {
		depth int
		want  string
	}{
		{1, "\n"},
		{3, "\nДанные зафиксированы. Реальность сохранена.\n"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		st := world.New()
		st.Depth = tt.depth
		NewConsole(&buf, nil).Farewell(st)
		if buf.String() != tt.want {
			t.Errorf("depth %d: got %q, want %q", tt.depth, buf.String(), tt.want)
		}
	}
}

func TestConsolePrompt(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, nil)
	c.Prompt()
	c.PromptText = ""
	c.Prompt()
	if buf.String() != "> " {
		t.Fatalf("got %q", buf.String())
	}
}
