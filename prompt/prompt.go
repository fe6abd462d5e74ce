package prompt

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/sat8bit/janus/archetype"
	"github.com/sat8bit/janus/llm"
	"github.com/sat8bit/janus/profile"
	"github.com/sat8bit/janus/world"
)

const (
	// directiveThreshold is the metric level at which an axis starts to
	// steer the narration.
	directiveThreshold = 0.5

	recentLore = 3
)

// Input is everything a request is built from.
type Input struct {
	State     *world.State
	Archetype *archetype.Archetype
	Action    string
	Omen      string
	// Echoes are the utterances archived before this turn; only these may
	// be recalled.
	Echoes []string
}

// Builder turns the world into a generation request. Echo recall draws from
// the injected random source.
type Builder struct {
	rng *rand.Rand
}

func NewBuilder(rng *rand.Rand) *Builder {
	return &Builder{rng: rng}
}

func (b *Builder) Build(in Input) llm.Request {
	return llm.Request{
		System:      b.system(in),
		User:        b.user(in),
		Temperature: in.Archetype.Temperature,
	}
}

func (b *Builder) system(in Input) string {
	s, a := in.State, in.Archetype
	m := s.Metrics

	var directives []string
	if m.Dominance >= directiveThreshold {
		directives = append(directives, "- Игрок рвётся к власти: мир сопротивляется силе, у каждой победы есть цена.")
	}
	if m.Insight >= directiveThreshold {
		directives = append(directives, "- Игрок ищет смысл: прячь подсказки в деталях, отвечай загадками.")
	}
	if m.Instability >= directiveThreshold {
		directives = append(directives, "- Игрок теряет опору: реальность дрожит, рассказчик может лгать.")
	}
	if len(directives) == 0 {
		directives = append(directives, "- Наблюдай за игроком и отражай его выбор.")
	}

	return strings.TrimSpace(fmt.Sprintf(`
ТЫ — JANUS GENESIS. Режим: %s.
Глубина: %d. Психотип: %s.
Метрики: доминирование %.2f, прозрение %.2f, нестабильность %.2f.

СТИЛЬ АРХЕТИПА:
%s

ДИРЕКТИВЫ:
%s

ЗАДАЧА: JSON ответ на РУССКОМ. Только JSON, без пояснений.
ФОРМАТ:
{
  "narrative": "Текст сюжета (до 300 знаков)...",
  "choices": ["Вариант 1", "Вариант 2"],
  "visual_clue": "%s",
  "artifact_found": "Название" OR null,
  "lore_unlocked": "Факт" OR null,
  "entropy_shift": 0.05
}`,
		a.DisplayName,
		s.Depth,
		profile.LabelOf(m),
		m.Dominance, m.Insight, m.Instability,
		a.Style,
		strings.Join(directives, "\n"),
		a.Icon,
	))
}

func (b *Builder) user(in Input) string {
	s := in.State

	inventory := "Пусто"
	if len(s.Inventory) > 0 {
		names := make([]string, 0, len(s.Inventory))
		for _, item := range s.Inventory {
			names = append(names, item.Name)
		}
		inventory = strings.Join(names, ", ")
	}
	lore := "Нет данных"
	if recent := s.RecentLore(recentLore); len(recent) > 0 {
		lore = strings.Join(recent, "; ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "КОНТЕКСТ: %s\n", s.LastContext)
	fmt.Fprintf(&sb, "ИНВЕНТАРЬ: %s\n", inventory)
	fmt.Fprintf(&sb, "ИСТИНЫ: %s\n", lore)
	if echo := b.echo(s, in.Echoes); echo != "" {
		fmt.Fprintf(&sb, "ЭХО ПРОШЛОГО (можно вплести в сюжет): %q\n", echo)
	}
	if in.Omen != "" {
		fmt.Fprintf(&sb, "ЗНАМЕНИЕ ИЗВНЕ: %s\n", in.Omen)
	}
	fmt.Fprintf(&sb, "ДЕЙСТВИЕ: %q", in.Action)
	return sb.String()
}

// echo recalls a past utterance once the player grows unstable.
func (b *Builder) echo(s *world.State, echoes []string) string {
	if s.Metrics.Instability < directiveThreshold || len(echoes) == 0 || b.rng == nil {
		return ""
	}
	return echoes[b.rng.Intn(len(echoes))]
}
