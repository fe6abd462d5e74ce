package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"github.com/sat8bit/janus/archetype"
	buspkg "github.com/sat8bit/janus/bus"
	"github.com/sat8bit/janus/buslog"
	"github.com/sat8bit/janus/chronicle"
	"github.com/sat8bit/janus/config"
	"github.com/sat8bit/janus/llm"
	"github.com/sat8bit/janus/narrator"
	"github.com/sat8bit/janus/omen"
	"github.com/sat8bit/janus/profile"
	"github.com/sat8bit/janus/prompt"
	"github.com/sat8bit/janus/random"
	"github.com/sat8bit/janus/renderer"
	"github.com/sat8bit/janus/repl"
	"github.com/sat8bit/janus/session"
	"github.com/sat8bit/janus/store"
	"github.com/sat8bit/janus/supervisor"
	"github.com/sat8bit/janus/turn"
)

const omenFetchTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:], ".env")
	if err != nil {
		if errors.Is(err, config.ErrNoCredentials) {
			log.Fatalf("%v (put it in .env or the environment)", err)
		}
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bus := buspkg.NewMemoryBus()
	slog.SetDefault(slog.New(buslog.NewBusHandler(
		bus,
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}),
		slog.LevelWarn,
	)))

	rng, seed, err := random.Source(cfg.Seed)
	if err != nil {
		log.Fatalf("failed to seed: %v", err)
	}
	slog.Info("session seeded", "seed", seed)

	pool, err := archetype.NewPool()
	if err != nil {
		log.Fatalf("failed to load archetypes: %v", err)
	}
	lexicon, err := profile.LoadLexicon()
	if err != nil {
		log.Fatalf("failed to load lexicon: %v", err)
	}
	gemini, err := llm.NewGemini(ctx, cfg.APIKeys)
	if err != nil {
		log.Fatalf("failed to create gemini client: %v", err)
	}
	chron, err := chronicle.Open(chronicle.Backend(cfg.ChronicleBackend), cfg.ChronicleFile)
	if err != nil {
		log.Fatalf("failed to open chronicle: %v", err)
	}

	sess := session.Open(ctx, store.NewFileStore(cfg.StateFile), chron, bus, turn.NewMutexManager())
	// Close runs once; the deferred call covers panics in the loop.
	defer func() { _ = sess.Close(ctx) }()

	var wg sync.WaitGroup
	var transcript *renderer.MarkdownRenderer
	if cfg.TranscriptDir != "" {
		transcript = renderer.NewMarkdownRenderer(cfg.TranscriptDir)
		if err := transcript.Render(bus, &wg); err != nil {
			log.Fatalf("failed to initialize transcript: %v", err)
		}
	}

	sup := supervisor.NewSupervisor(cfg.MaxTurns, bus, cancel)
	sup.Start()

	var deck *omen.Deck
	if cfg.OmenFeed != "" {
		deck = omen.NewDeck(rng, cfg.OmenChance)
		fctx, fcancel := context.WithTimeout(ctx, omenFetchTimeout)
		_ = deck.Fill(fctx, omen.NewRSSFetcher(cfg.OmenFeed, 20))
		fcancel()
	}

	analyzer := profile.NewAnalyzer(lexicon)
	analyzer.Step = cfg.MetricStep
	analyzer.EchoLimit = cfg.EchoLimit
	analyzer.EchoMinRunes = cfg.EchoMinRunes

	policy := archetype.DefaultPolicy()
	policy.OverrideChance = cfg.TricksterChance

	n := narrator.New(
		sess,
		analyzer,
		archetype.NewSelector(pool, policy, rng),
		prompt.NewBuilder(rng),
		gemini,
		deck,
		bus,
		narrator.Config{
			Models:           cfg.Models,
			RequestTimeout:   cfg.RequestTimeout,
			RateLimitBackoff: cfg.RateLimitBackoff,
		},
	)

	var out io.Writer = os.Stdout
	input := repl.NewReader(os.Stdin)
	rl, err := readline.NewEx(&readline.Config{Prompt: "> ", InterruptPrompt: "^C", EOFPrompt: "exit"})
	if err != nil {
		slog.Warn("line editor unavailable, reading plain input", "error", err)
	} else {
		input, out = rl, rl.Stdout()
	}

	console := renderer.NewConsole(out, sup)
	console.Delay = cfg.TypeDelay
	if rl != nil {
		console.PromptText = ""
	}

	intro, err := n.Begin(ctx)
	if err != nil {
		slog.Error("failed to begin session", "error", err)
	} else {
		console.Intro(intro)
	}

	loop := &repl.Loop{Narrator: n, View: console, State: sess.State}
	if err := loop.Run(ctx, input); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("session ended with error", "error", err)
	}
	console.Farewell(sess.State())
	if rl != nil {
		_ = rl.Close()
	}
	if err := sess.Close(ctx); err != nil {
		slog.Error("failed to close session", "error", err)
	}
	bus.Close()
	wg.Wait()

	if transcript != nil {
		if err := transcript.Finalize(sess.State()); err != nil {
			slog.Error("failed to finalize transcript", "error", err)
		}
	}
}
