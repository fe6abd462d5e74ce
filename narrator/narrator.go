package narrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sat8bit/janus/archetype"
	"github.com/sat8bit/janus/bus"
	"github.com/sat8bit/janus/chronicle"
	"github.com/sat8bit/janus/llm"
	"github.com/sat8bit/janus/message"
	"github.com/sat8bit/janus/omen"
	"github.com/sat8bit/janus/profile"
	"github.com/sat8bit/janus/prompt"
	"github.com/sat8bit/janus/session"
	"github.com/sat8bit/janus/world"
)

const (
	// DefaultAction replaces an empty input.
	DefaultAction = "Осмотреться"

	// Intro opens a fresh world.
	Intro = "Ты стоишь перед зеркалом. Отражения нет. Система Black Box активирована."

	DefaultRequestTimeout   = 25 * time.Second
	DefaultRateLimitBackoff = time.Second
)

// ErrTurnFailed is returned when no model produced a usable answer. The
// world keeps the analyzer update of the turn and nothing else.
var ErrTurnFailed = errors.New("turn failed")

type Config struct {
	// Models are tried in order until one answers with a valid payload.
	Models           []string
	RequestTimeout   time.Duration
	RateLimitBackoff time.Duration
}

// Result is what a successful turn shows to the player.
type Result struct {
	Archetype  *archetype.Archetype
	Narrative  string
	Choices    []string
	VisualClue string
	Artifact   *world.Artifact
	Lore       string
	Signal     profile.Signal
}

// Narrator drives request/response turns against a session.
type Narrator struct {
	session  *session.Session
	analyzer *profile.Analyzer
	selector *archetype.Selector
	prompts  *prompt.Builder
	llm      llm.LLM
	omens    *omen.Deck
	bus      bus.Bus
	cfg      Config

	// sleep waits out a rate limit; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	phase Phase
}

func New(
	sess *session.Session,
	analyzer *profile.Analyzer,
	selector *archetype.Selector,
	prompts *prompt.Builder,
	llmInstance llm.LLM,
	omens *omen.Deck,
	b bus.Bus,
	cfg Config,
) *Narrator {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RateLimitBackoff < 0 {
		cfg.RateLimitBackoff = 0
	}
	return &Narrator{
		session:  sess,
		analyzer: analyzer,
		selector: selector,
		prompts:  prompts,
		llm:      llmInstance,
		omens:    omens,
		bus:      b,
		cfg:      cfg,
		sleep:    sleepContext,
	}
}

// Phase returns the current phase.
func (n *Narrator) Phase() Phase {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.phase
}

// Begin sets the opening scene of a fresh world and returns it. For a
// restored world it returns the last narrative instead.
func (n *Narrator) Begin(ctx context.Context) (string, error) {
	turns := n.session.Turns()
	if err := turns.Acquire(ctx); err != nil {
		return "", err
	}
	defer turns.Release()

	st := n.session.State()
	if !st.Fresh() {
		return st.LastContext, nil
	}
	st.LastContext = Intro
	n.session.Record(ctx, chronicle.SourceSystem, "INIT: "+Intro, &message.Message{Text: Intro})
	_ = n.session.Persist(ctx)
	return Intro, nil
}

// Turn plays one turn for the raw player input.
func (n *Narrator) Turn(ctx context.Context, input string) (*Result, error) {
	turns := n.session.Turns()
	if err := turns.Acquire(ctx); err != nil {
		return nil, err
	}
	defer turns.Release()
	defer n.setPhase(ctx, PhaseIdle)

	raw := strings.TrimSpace(input)
	action := raw
	if action == "" {
		action = DefaultAction
	}
	st := n.session.State()
	past := slices.Clone(st.ShadowEchoes)

	// The analyzer sees only what the player typed; the substituted default
	// moves no metric. Its update is saved before the backend is asked, so
	// it survives a failed generation.
	n.setPhase(ctx, PhaseAnalyzing)
	n.session.Record(ctx, chronicle.SourceUser, "USER: "+action, &message.Message{Text: action})
	sig := n.analyzer.Update(st, raw)
	_ = n.session.Persist(ctx)

	arch := n.selector.Select(st.Entropy, st.Metrics.Instability)
	req := n.prompts.Build(prompt.Input{
		State:     st,
		Archetype: arch,
		Action:    action,
		Omen:      n.omens.Draw(),
		Echoes:    past,
	})
	slog.DebugContext(ctx, "turn analyzed", "archetype", arch.ID, "axes", sig.Axes, "entropy", st.Entropy)

	n.setPhase(ctx, PhaseRequesting)
	payload, err := n.generate(ctx, req)
	if err != nil {
		n.setPhase(ctx, PhaseFailed)
		slog.ErrorContext(ctx, "turn failed", "error", err)
		if berr := n.bus.Broadcast(&message.Message{
			Kind:  message.KindError,
			Text:  err.Error(),
			At:    time.Now(),
			Depth: st.Depth,
		}); berr != nil {
			slog.DebugContext(ctx, "broadcast dropped", "error", berr)
		}
		return nil, fmt.Errorf("%w: %w", ErrTurnFailed, err)
	}

	n.setPhase(ctx, PhaseApplying)
	outcome := payload.Outcome()
	st.Apply(outcome)
	if outcome.Artifact != nil {
		n.session.Record(ctx, chronicle.SourceLoot, "ARTIFACT: "+outcome.Artifact.Name, &message.Message{Text: outcome.Artifact.Name})
	}
	if outcome.Lore != "" {
		n.session.Record(ctx, chronicle.SourceLore, "LORE: "+outcome.Lore, &message.Message{Text: outcome.Lore})
	}
	_ = n.session.Persist(ctx)
	n.session.Record(ctx, chronicle.SourceAI, "JANUS: "+outcome.Narrative, &message.Message{
		Text:      outcome.Narrative,
		Archetype: arch,
		Meta:      map[string]string{"choices": strings.Join(payload.Choices, " | ")},
	})
	n.setPhase(ctx, PhasePersisted)

	visual := payload.VisualClue
	if visual == "" {
		visual = arch.Icon
	}
	return &Result{
		Archetype:  arch,
		Narrative:  outcome.Narrative,
		Choices:    payload.Choices,
		VisualClue: visual,
		Artifact:   outcome.Artifact,
		Lore:       outcome.Lore,
		Signal:     sig,
	}, nil
}

// generate asks each model in order. A rate-limited model costs a short
// wait before the next one is tried.
func (n *Narrator) generate(ctx context.Context, req llm.Request) (*llm.Payload, error) {
	if len(n.cfg.Models) == 0 {
		return nil, errors.New("no models configured")
	}

	var errs []error
	for i, model := range n.cfg.Models {
		payload, err := n.ask(ctx, model, req)
		if err == nil {
			return payload, nil
		}
		errs = append(errs, &llm.BackendError{Model: model, Err: err})
		slog.WarnContext(ctx, "model failed", "model", model, "error", err)

		if ctx.Err() != nil {
			break
		}
		if errors.Is(err, llm.ErrRateLimited) && i < len(n.cfg.Models)-1 {
			if err := n.sleep(ctx, n.cfg.RateLimitBackoff); err != nil {
				break
			}
		}
	}
	return nil, errors.Join(errs...)
}

func (n *Narrator) ask(ctx context.Context, model string, req llm.Request) (*llm.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.RequestTimeout)
	defer cancel()

	text, err := n.llm.Generate(ctx, model, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, llm.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %w", llm.ErrUnavailable, err)
		}
		return nil, err
	}
	return llm.ParsePayload(text)
}

func (n *Narrator) setPhase(ctx context.Context, p Phase) {
	n.mu.Lock()
	n.phase = p
	n.mu.Unlock()

	if err := n.bus.Broadcast(&message.Message{
		Kind: message.KindPhase,
		Text: p.String(),
		At:   time.Now(),
	}); err != nil {
		slog.DebugContext(ctx, "broadcast dropped", "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
