package renderer

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/sat8bit/janus/bus"
	"github.com/sat8bit/janus/message"
	"github.com/sat8bit/janus/world"
)

const markdownTemplate = `+++
title = {{ .Title }}
date = {{ .Date }}
tags = {{ .Tags }}
+++

{{ .Body }}
`

// MarkdownRenderer writes the session as a Hugo page.
type MarkdownRenderer struct {
	outputDir string
	now       func() time.Time

	mu       sync.Mutex
	filePath string
}

func NewMarkdownRenderer(outputDir string) *MarkdownRenderer {
	return &MarkdownRenderer{outputDir: outputDir, now: time.Now}
}

// Path returns the written file, or "" when nothing was written.
func (r *MarkdownRenderer) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filePath
}

func (r *MarkdownRenderer) Render(b bus.Bus, wg *sync.WaitGroup) error {
	ch := b.Subscribe()

	wg.Add(1)
	go func() {
		defer wg.Done()
		var inbox []*message.Message
		for msg := range ch {
			if msg.IsNarrative() {
				inbox = append(inbox, msg)
			}
		}

		if !hasKind(inbox, message.KindAI) {
			slog.Debug("no narrated turns, skipping transcript")
			return
		}
		if err := r.render(inbox); err != nil {
			slog.Error("failed to render transcript", "error", err)
		}
	}()

	return nil
}

func (r *MarkdownRenderer) render(inbox []*message.Message) error {
	now := r.now()

	var body strings.Builder
	narrators := map[string]bool{}
	depth := 1
	for _, msg := range inbox {
		depth = max(depth, msg.Depth)
		switch msg.Kind {
		case message.KindUser:
			fmt.Fprintf(&body, "> **Путник:** %s\n\n", msg.Text)
		case message.KindAI:
			name := "Янус"
			if msg.Archetype != nil {
				name = msg.Archetype.Icon + " " + msg.Archetype.DisplayName
				narrators[msg.Archetype.DisplayName] = true
			}
			fmt.Fprintf(&body, "**%s:** %s\n\n", name, msg.Text)
			if choices := msg.Meta["choices"]; choices != "" {
				fmt.Fprintf(&body, "_Пути: %s_\n\n", choices)
			}
		case message.KindLoot:
			fmt.Fprintf(&body, "- Артефакт: **%s**\n\n", msg.Text)
		case message.KindLore:
			fmt.Fprintf(&body, "- Истина: _%s_\n\n", msg.Text)
		case message.KindError:
			fmt.Fprintf(&body, "_Сбой: %s_\n\n", msg.Text)
		case message.KindLog:
			fmt.Fprintf(&body, "`%s`\n\n", msg.Text)
		default:
			fmt.Fprintf(&body, "> %s\n\n", msg.Text)
		}
	}

	names := make([]string, 0, len(narrators))
	for n := range narrators {
		names = append(names, n)
	}
	sort.Strings(names)
	tags := []string{`"janus-genesis"`}
	for _, n := range names {
		tags = append(tags, fmt.Sprintf("%q", n))
	}

	tmpl, err := template.New("markdown").Parse(markdownTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse markdown template: %w", err)
	}
	data := struct {
		Title string
		Date  string
		Tags  string
		Body  string
	}{
		Title: fmt.Sprintf("%q", fmt.Sprintf("Janus Genesis: глубина %d", depth)),
		Date:  fmt.Sprintf("%q", now.Format(time.RFC3339)),
		Tags:  "[" + strings.Join(tags, ", ") + "]",
		Body:  body.String(),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(r.outputDir, now.Format("20060102-150405")+".md")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}

	r.mu.Lock()
	r.filePath = path
	r.mu.Unlock()
	slog.Info("transcript written", "path", path)
	return nil
}

// Finalize appends what the player carried out of the session.
func (r *MarkdownRenderer) Finalize(s *world.State) error {
	path := r.Path()
	if path == "" {
		return nil
	}

	var epilogue strings.Builder
	epilogue.WriteString("---\n\n## Итог\n\n")
	fmt.Fprintf(&epilogue, "- Глубина: `%d`\n- Энтропия: `%.2f`\n", s.Depth, s.Entropy)
	if len(s.Inventory) == 0 {
		epilogue.WriteString("- Инвентарь: пусто\n")
	} else {
		epilogue.WriteString("- Инвентарь:\n")
		for _, a := range s.Inventory {
			fmt.Fprintf(&epilogue, "  - %s\n", a.Name)
		}
	}
	for _, l := range s.Lore {
		fmt.Fprintf(&epilogue, "- Истина: %s\n", l)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open transcript for appending: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(epilogue.String()); err != nil {
		return fmt.Errorf("failed to append epilogue: %w", err)
	}
	return nil
}

func hasKind(msgs []*message.Message, k message.Kind) bool {
	for _, m := range msgs {
		if m.Kind == k {
			return true
		}
	}
	return false
}

var _ Renderer = (*MarkdownRenderer)(nil)
