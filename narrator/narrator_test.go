package narrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/sat8bit/janus/archetype"
	"github.com/sat8bit/janus/bus"
	"github.com/sat8bit/janus/chronicle"
	"github.com/sat8bit/janus/llm"
	"github.com/sat8bit/janus/message"
	"github.com/sat8bit/janus/profile"
	"github.com/sat8bit/janus/prompt"
	"github.com/sat8bit/janus/session"
	"github.com/sat8bit/janus/store"
	"github.com/sat8bit/janus/turn"
	"github.com/sat8bit/janus/world"
)

// scriptedLLM answers per model with a fixed function.
type scriptedLLM struct {
	mu      sync.Mutex
	answers map[string]func(ctx context.Context) (string, error)
	calls   []string
	reqs    []llm.Request
}

func (s *scriptedLLM) Generate(ctx context.Context, model string, req llm.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, model)
	s.reqs = append(s.reqs, req)
	answer, ok := s.answers[model]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: unknown model %s", llm.ErrStatus, model)
	}
	return answer(ctx)
}

func reply(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return text, nil }
}

func fail(err error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", err }
}

func hang(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type fixture struct {
	narrator *Narrator
	session  *session.Session
	log      chronicle.Log
	bus      *bus.MemoryBus
	store    *store.FileStore
}

func newFixture(t *testing.T, l llm.LLM, models ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	st := store.NewFileStore(filepath.Join(dir, "state.json"))
	log, err := chronicle.Open(chronicle.BackendJSON, filepath.Join(dir, "chronicle.json"))
	if err != nil {
		t.Fatalf("open chronicle: %v", err)
	}
	b := bus.NewMemoryBus()
	sess := session.Open(ctx, st, log, b, turn.NewMutexManager())
	t.Cleanup(func() { _ = sess.Close(ctx) })

	pool, err := archetype.NewPool()
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	lex, err := profile.LoadLexicon()
	if err != nil {
		t.Fatalf("lexicon: %v", err)
	}
	policy := archetype.DefaultPolicy()
	policy.OverrideChance = 0
	rng := rand.New(rand.NewSource(1))

	n := New(sess, profile.NewAnalyzer(lex), archetype.NewSelector(pool, policy, rng), prompt.NewBuilder(rng), l, nil, b, Config{
		Models:           models,
		RequestTimeout:   50 * time.Millisecond,
		RateLimitBackoff: time.Second,
	})
	return &fixture{narrator: n, session: sess, log: log, bus: b, store: st}
}

func (f *fixture) texts(t *testing.T) []string {
	t.Helper()
	entries, err := f.log.Entries(context.Background())
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	var out []string
	for _, e := range entries {
		out = append(out, string(e.Source)+" "+e.Text)
	}
	return out
}

func TestTurnAppliesOutcome(t *testing.T) {
	fake := &scriptedLLM{answers: map[string]func(context.Context) (string, error){
		"flash": reply("```json\n{\"narrative\": \"Тень отступает.\", \"choices\": [\"идти\", \"ждать\"], \"visual_clue\": \"🌑\", \"artifact_found\": \"Нож\", \"lore_unlocked\": \"Зеркало лжёт\", \"entropy_shift\": 0.1}\n```"),
	}}
	f := newFixture(t, fake, "flash")
	ctx := context.Background()

	res, err := f.narrator.Turn(ctx, "я хочу его убить")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}

	st := f.session.State()
	if st.Depth != 2 || st.Metrics.Dominance != 0.05 || st.LastContext != "Тень отступает." {
		t.Fatalf("unexpected state %+v", st)
	}
	if diff := cmp.Diff(0.2, st.Entropy, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("entropy mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]world.Artifact{{Name: "Нож"}}, st.Inventory); diff != "" {
		t.Fatalf("inventory mismatch (-want +got):\n%s", diff)
	}
	if res.Archetype.ID != archetype.Father || res.Lore != "Зеркало лжёт" || res.VisualClue != "🌑" {
		t.Fatalf("unexpected result %+v", res)
	}
	if diff := cmp.Diff([]profile.Axis{profile.AxisDominance}, res.Signal.Axes); diff != "" {
		t.Fatalf("signal mismatch (-want +got):\n%s", diff)
	}

	want := []string{
		"USER USER: я хочу его убить",
		"LOOT ARTIFACT: Нож",
		"LORE LORE: Зеркало лжёт",
		"AI JANUS: Тень отступает.",
	}
	if diff := cmp.Diff(want, f.texts(t)); diff != "" {
		t.Fatalf("chronicle mismatch (-want +got):\n%s", diff)
	}

	saved := f.store.Load(ctx)
	if diff := cmp.Diff(st, saved, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	if f.narrator.Phase() != PhaseIdle {
		t.Fatalf("expected idle after the turn, got %v", f.narrator.Phase())
	}
}

func TestTurnWithoutLoreKeepsDepth(t *testing.T) {
	fake := &scriptedLLM{answers: map[string]func(context.Context) (string, error){
		"flash": reply(`{"narrative": "Тишина.", "choices": [], "visual_clue": "", "artifact_found": null, "lore_unlocked": null}`),
	}}
	f := newFixture(t, fake, "flash")

	res, err := f.narrator.Turn(context.Background(), "")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	st := f.session.State()
	if st.Depth != 1 || len(st.Lore) != 0 || len(st.Inventory) != 0 {
		t.Fatalf("unexpected state %+v", st)
	}
	if diff := cmp.Diff(0.12, st.Entropy, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("expected default shift (-want +got):\n%s", diff)
	}
	if res.VisualClue != res.Archetype.Icon {
		t.Fatalf("expected archetype icon as visual clue, got %q", res.VisualClue)
	}
	if texts := f.texts(t); texts[0] != "USER USER: "+DefaultAction {
		t.Fatalf("expected default action, got %v", texts)
	}
	if got := fake.reqs[0].User; !strings.Contains(got, DefaultAction) {
		t.Fatalf("prompt lacks the action:\n%s", got)
	}
	if diff := cmp.Diff(world.Metrics{}, st.Metrics); diff != "" {
		t.Fatalf("empty input moved metrics (-want +got):\n%s", diff)
	}
	if len(res.Signal.Axes) != 0 || res.Signal.Echo {
		t.Fatalf("empty input produced a signal %+v", res.Signal)
	}
}

func TestTurnRecallsOnlyEarlierEchoes(t *testing.T) {
	fake := &scriptedLLM{answers: map[string]func(context.Context) (string, error){
		"flash": reply(`{"narrative": "Эхо молчит.", "choices": []}`),
	}}
	f := newFixture(t, fake, "flash")
	ctx := context.Background()
	f.session.State().Metrics.Instability = 0.6

	current := "я иду к старой башне у реки"
	if _, err := f.narrator.Turn(ctx, current); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if got := fake.reqs[0].User; strings.Contains(got, "ЭХО") {
		t.Fatalf("the current input was recalled as an echo:\n%s", got)
	}
	if diff := cmp.Diff([]string{current}, f.session.State().ShadowEchoes); diff != "" {
		t.Fatalf("echo not archived (-want +got):\n%s", diff)
	}

	if _, err := f.narrator.Turn(ctx, "а теперь я спускаюсь в подвал"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if got := fake.reqs[1].User; !strings.Contains(got, fmt.Sprintf("ЭХО ПРОШЛОГО (можно вплести в сюжет): %q", current)) {
		t.Fatalf("expected the earlier utterance as echo:\n%s", got)
	}
}

func TestTurnFailsWhenEveryModelTimesOut(t *testing.T) {
	fake := &scriptedLLM{answers: map[string]func(context.Context) (string, error){
		"a": hang,
		"b": hang,
	}}
	f := newFixture(t, fake, "a", "b")
	ctx := context.Background()

	const input = "почему я здесь оказался"
	want := f.session.State().Clone()
	lex, _ := profile.LoadLexicon()
	profile.NewAnalyzer(lex).Update(want, input)

	_, err := f.narrator.Turn(ctx, input)
	if !errors.Is(err, ErrTurnFailed) || !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrTurnFailed wrapping ErrUnavailable, got %v", err)
	}
	var berr *llm.BackendError
	if !errors.As(err, &berr) || berr.Model != "a" {
		t.Fatalf("expected a backend error for model a, got %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, fake.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(want, f.session.State()); diff != "" {
		t.Fatalf("state changed beyond the analyzer update (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"USER USER: " + input}, f.texts(t)); diff != "" {
		t.Fatalf("chronicle mismatch (-want +got):\n%s", diff)
	}
	if saved := f.store.Load(ctx); saved.Metrics != want.Metrics {
		t.Fatalf("analyzer update not saved: %+v", saved.Metrics)
	}
}

func TestTurnBacksOffAfterRateLimit(t *testing.T) {
	fake := &scriptedLLM{answers: map[string]func(context.Context) (string, error){
		"a": fail(fmt.Errorf("429: %w", llm.ErrRateLimited)),
		"b": reply(`{"narrative": "Дверь открыта."}`),
	}}
	f := newFixture(t, fake, "a", "b")
	var waits []time.Duration
	f.narrator.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	res, err := f.narrator.Turn(context.Background(), "открыть")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.Narrative != "Дверь открыта." {
		t.Fatalf("unexpected narrative %q", res.Narrative)
	}
	if diff := cmp.Diff([]time.Duration{time.Second}, waits); diff != "" {
		t.Fatalf("waits mismatch (-want +got):\n%s", diff)
	}
}

func TestTurnSkipsMalformedResponse(t *testing.T) {
	fake := &scriptedLLM{answers: map[string]func(context.Context) (string, error){
		"a": reply("Sorry, I cannot answer that."),
		"b": reply(`{"narrative": "Эхо отвечает."} trailing`),
	}}
	f := newFixture(t, fake, "a", "b")
	f.narrator.sleep = func(context.Context, time.Duration) error {
		t.Fatal("malformed answers must not back off")
		return nil
	}

	res, err := f.narrator.Turn(context.Background(), "слушать")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if res.Narrative != "Эхо отвечает." || len(fake.calls) != 2 {
		t.Fatalf("unexpected result %+v after %v", res, fake.calls)
	}
}

func TestTurnStopsWhenCancelled(t *testing.T) {
	fake := &scriptedLLM{answers: map[string]func(context.Context) (string, error){
		"a": fail(context.Canceled),
		"b": reply(`{"narrative": "x"}`),
	}}
	f := newFixture(t, fake, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	fake.answers["a"] = func(context.Context) (string, error) {
		cancel()
		return "", context.Canceled
	}

	if _, err := f.narrator.Turn(ctx, "ждать"); !errors.Is(err, ErrTurnFailed) {
		t.Fatalf("expected ErrTurnFailed, got %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected no further models after cancel, got %v", fake.calls)
	}
}

func TestTurnBroadcastsPhases(t *testing.T) {
	fake := &scriptedLLM{answers: map[string]func(context.Context) (string, error){
		"a": reply(`{"narrative": "x"}`),
	}}
	f := newFixture(t, fake, "a")
	ch := f.bus.Subscribe()

	if _, err := f.narrator.Turn(context.Background(), "x"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	f.bus.Close()

	var phases []string
	for m := range ch {
		if m.Kind == message.KindPhase {
			phases = append(phases, m.Text)
		}
	}
	want := []string{"analyzing", "requesting", "applying", "persisted", "idle"}
	if diff := cmp.Diff(want, phases); diff != "" {
		t.Fatalf("phases mismatch (-want +got):\n%s", diff)
	}
}

func TestBeginOnFreshAndRestoredWorld(t *testing.T) {
	f := newFixture(t, &scriptedLLM{}, "a")
	ctx := context.Background()

	intro, err := f.narrator.Begin(ctx)
	if err != nil || intro != Intro {
		t.Fatalf("begin: %q %v", intro, err)
	}
	if f.session.State().LastContext != Intro {
		t.Fatal("intro must become the last context")
	}
	again, err := f.narrator.Begin(ctx)
	if err != nil || again != Intro {
		t.Fatalf("second begin: %q %v", again, err)
	}
	if diff := cmp.Diff([]string{"SYSTEM INIT: " + Intro}, f.texts(t)); diff != "" {
		t.Fatalf("chronicle mismatch (-want +got):\n%s", diff)
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseFailed.String() != "failed" || Phase(42).String() != "unknown" {
		t.Fatal("unexpected phase names")
	}
}
