package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/reelay/reelay/internal/config"
	"github.com/reelay/reelay/internal/domain"
	"github.com/reelay/reelay/internal/feed"
	"github.com/reelay/reelay/internal/interest"
	"github.com/reelay/reelay/internal/log"
	"github.com/reelay/reelay/internal/narrate"
	"github.com/reelay/reelay/internal/player"
	"github.com/reelay/reelay/internal/prefetch"
	"github.com/reelay/reelay/internal/search"
	"github.com/reelay/reelay/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usage = `usage: reelay <command> [args]

commands:
  rank <corpus.json>      print the personalized feed order for a corpus
  seed <corpus.json>      warm the prefetch cache from a corpus
  search <corpus.json> <query>
                          fuzzy-search the corpus by title
  speak <text>            narrate text through the key pool
  keys                    probe and reorder the narration key pool
  keys add <key>          append a key to the pool
  interest add <category> record an interest category
`

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.Parse()

	if showVersion {
		fmt.Printf("reelay %s\n", Version)
		return
	}

	if err := run(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Print(usage)
		return nil
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting reelay", "version", Version, "command", args[0])

	// Open the local store
	st, err := store.NewStore(cfg.Cache.Dir, cfg.Cache.BucketVersion)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	switch args[0] {
	case "rank":
		if len(args) < 2 {
			return fmt.Errorf("rank: corpus file required")
		}
		return runRank(st, logger, args[1])

	case "seed":
		if len(args) < 2 {
			return fmt.Errorf("seed: corpus file required")
		}
		return runSeed(ctx, cfg, st, logger, args[1])

	case "search":
		if len(args) < 3 {
			return fmt.Errorf("search: corpus file and query required")
		}
		return runSearch(logger, args[1], strings.Join(args[2:], " "))

	case "speak":
		if len(args) < 2 {
			return fmt.Errorf("speak: text required")
		}
		return runSpeak(ctx, cfg, st, logger, strings.Join(args[1:], " "))

	case "keys":
		if len(args) >= 3 && args[1] == "add" {
			return addKey(st, args[2])
		}
		return runReorder(ctx, cfg, st, logger)

	case "interest":
		if len(args) >= 3 && args[1] == "add" {
			interest.NewService(st, logger).Record(args[2])
			return nil
		}
		return fmt.Errorf("interest: expected 'add <category>'")

	default:
		fmt.Print(usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func loadCorpus(path string) ([]domain.VideoItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	var corpus []domain.VideoItem
	if err := json.Unmarshal(data, &corpus); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}
	return corpus, nil
}

func runRank(st *store.Store, logger *slog.Logger, corpusPath string) error {
	corpus, err := loadCorpus(corpusPath)
	if err != nil {
		return err
	}

	interests := interest.NewService(st, logger).Categories()
	ranker := feed.NewRanker(nil)

	// The host app supplies live interaction state; the shell has none.
	for i, item := range ranker.Rank(corpus, domain.InteractionState{}, interests) {
		fmt.Printf("%3d  %-40s %s\n", i+1, item.Title, item.Category)
	}
	return nil
}

func runSeed(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger, corpusPath string) error {
	corpus, err := loadCorpus(corpusPath)
	if err != nil {
		return err
	}

	engine := prefetch.NewEngine(st, cfg.Cache.BucketVersion, cfg.Cache.ChunkBytes, logger)
	engine.SeedInitialBuffer(ctx, corpus)
	engine.Flush()

	cached := 0
	for _, item := range corpus {
		if engine.HasMediaChunk(item.SourceURL) {
			cached++
		}
	}
	fmt.Printf("seeded %d media chunks\n", cached)
	return nil
}

func runSearch(logger *slog.Logger, corpusPath, query string) error {
	corpus, err := loadCorpus(corpusPath)
	if err != nil {
		return err
	}

	svc := search.NewService(logger)
	svc.Index(corpus)
	for _, item := range svc.Search(query) {
		fmt.Printf("%-40s %s\n", item.Title, item.Category)
	}
	return nil
}

func runSpeak(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger, text string) error {
	client := narrate.NewClient(cfg.Provider.BaseURL, cfg.Provider.VoiceID, cfg.Provider.ModelID, logger)
	sink := player.NewPlayer(cfg.Player.Command, cfg.Player.Args, logger)
	svc := narrate.NewService(client, st, sink, logger)

	done := make(chan struct{})
	started := false
	unsubscribe := svc.Subscribe(func(playing bool) {
		if playing {
			started = true
			return
		}
		select {
		case <-done:
		default:
			close(done)
		}
	})
	defer unsubscribe()

	svc.Speak(ctx, text)
	if started {
		<-done
	}
	if !started {
		fmt.Println("narration unavailable")
	}
	return nil
}

func runReorder(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) error {
	pool, err := st.LoadPool()
	if err != nil {
		return err
	}
	if len(pool.Keys) == 0 {
		fmt.Println("key pool is empty")
		return nil
	}

	client := narrate.NewClient(cfg.Provider.BaseURL, cfg.Provider.VoiceID, cfg.Provider.ModelID, logger)
	keys := narrate.NewKeyPool(client, logger).Reorder(ctx, pool.Keys)

	pool.Keys = keys
	if err := st.SavePool(pool); err != nil {
		return err
	}
	fmt.Printf("reordered %d keys\n", len(keys))
	return nil
}

func addKey(st *store.Store, key string) error {
	pool, err := st.LoadPool()
	if err != nil {
		return err
	}
	pool.Keys = append(pool.Keys, key)
	return st.SavePool(pool)
}
