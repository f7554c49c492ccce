package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/renderinc/learnshare/internal/config"
	"github.com/renderinc/learnshare/internal/ingest"
	"github.com/renderinc/learnshare/internal/outbox"
	"github.com/renderinc/learnshare/internal/tweets"
	"golang.org/x/sync/errgroup"
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env: %v", err)
	}

	globalFlags := flag.NewFlagSet("global", flag.ExitOnError)
	configPath := globalFlags.String("config", "", "Path to a YAML or TOML config file")
	dataDir := globalFlags.String("data-dir", "", "Directory for database and index files (default: ./data)")
	globalFlags.Usage = printUsage
	globalFlags.Parse(os.Args[1:])

	if globalFlags.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if *dataDir != "" {
		cfg.UseDataDir(*dataDir)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Error creating data directory: %v", err)
	}

	command, args := globalFlags.Arg(0), globalFlags.Args()[1:]
	switch command {
	case "serve":
		serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
		port := serveFlags.String("port", cfg.Server.Port, "Port to listen on")
		host := serveFlags.String("host", cfg.Server.Host, "Host to bind to")
		serveFlags.Parse(args)
		cfg.Server.Port, cfg.Server.Host = *port, *host
		runServe(cfg)
	case "reindex":
		runReindex(cfg)
	case "reconcile":
		runReconcile(cfg)
	case "embed":
		embedFlags := flag.NewFlagSet("embed", flag.ExitOnError)
		startFrom := embedFlags.Int64("start-from", 0, "Resume from content ID")
		embedFlags.Parse(args)
		runEmbed(cfg, *startFrom)
	case "publish-due":
		runPublishDue(cfg)
	case "stats":
		runStats(cfg)
	case "get-content":
		if len(args) < 1 {
			fmt.Println("Error: content ID required")
			fmt.Println("Usage: learnshare [global-flags] get-content <content-id>")
			os.Exit(1)
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			log.Fatalf("Error: invalid content ID %q", args[0])
		}
		runGetContent(cfg, id)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("LearnShare - save, search and re-share web content")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  learnshare [global-flags] <command> [flags]")
	fmt.Println()
	fmt.Println("Global Flags:")
	fmt.Println("  -config=<file>    YAML or TOML config file (env vars override it)")
	fmt.Println("  -data-dir=<dir>   Directory for database and index files (default: ./data)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve [flags]       Start the HTTP API and background jobs")
	fmt.Println("  reindex             Rebuild the full-text index from the database")
	fmt.Println("  reconcile           Re-enqueue vectors missing from the vector index and deliver them")
	fmt.Println("  embed [flags]       Regenerate embeddings for every stored content row")
	fmt.Println("  publish-due         Post every scheduled tweet that is due, once")
	fmt.Println("  stats               Show database and index statistics")
	fmt.Println("  get-content <id>    Print a content row as JSON")
	fmt.Println()
	fmt.Println("Serve Flags:")
	fmt.Println("  -host=<host>      Host to bind to (default: all interfaces)")
	fmt.Println("  -port=<port>      Port to listen on (default: 3125, or $PORT)")
	fmt.Println()
	fmt.Println("Embed Flags:")
	fmt.Println("  -start-from=<id>  Resume from content ID (e.g., after interruption)")
}

func runServe(cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Error starting: %v", err)
	}
	defer a.Close()

	worker := outbox.NewWorker(a.db, a.vectors, cfg.Outbox.Workers, cfg.Outbox.BatchSize)
	publisher := tweets.NewPublisher(a.db, a.twitter, 0)

	server := a.server(worker, publisher)

	sched, err := a.scheduler(worker, publisher)
	if err != nil {
		log.Fatalf("Error scheduling jobs: %v", err)
	}

	if n, err := worker.Reconcile(ctx); err != nil {
		log.Printf("Warning: startup reconcile failed: %v", err)
	} else if n > 0 {
		log.Printf("Re-enqueued %d content rows missing from the vector index", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.Addr())
	})

	sched.Start()
	log.Printf("LearnShare API on %s (vector index: %s, embedder: %s, llm: %s)",
		cfg.Server.BaseURL, cfg.VectorIndex.Type, cfg.Embedder.Provider, cfg.LLM.Provider)

	if err := g.Wait(); err != nil {
		log.Printf("Server error: %v", err)
	}
	<-sched.Stop().Done()
	log.Println("Stopped")
}

func runReindex(cfg *config.Config) {
	fmt.Println("Rebuilding Bleve full-text index...")
	ctx := context.Background()

	db, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()

	text, err := openTextIndex(cfg)
	if err != nil {
		log.Fatalf("Error opening search index: %v", err)
	}
	defer text.Close()

	start := time.Now()
	n, err := text.Rebuild(ctx, db)
	if err != nil {
		log.Fatalf("Error rebuilding index: %v", err)
	}

	fmt.Println()
	fmt.Println("=== Reindex Complete ===")
	fmt.Printf("Contents indexed: %d\n", n)
	fmt.Printf("Duration:         %v\n", time.Since(start).Round(time.Millisecond))
}

func runReconcile(cfg *config.Config) {
	ctx := context.Background()

	db, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()

	vectors, closeVectors, err := openVectorIndex(ctx, cfg)
	if err != nil {
		log.Fatalf("Error opening vector index: %v", err)
	}
	defer closeVectors()

	worker := outbox.NewWorker(db, vectors, cfg.Outbox.Workers, cfg.Outbox.BatchSize)
	n, err := worker.Reconcile(ctx)
	if err != nil {
		log.Fatalf("Error reconciling: %v", err)
	}
	stats, err := worker.Drain(ctx)
	if err != nil {
		log.Fatalf("Error draining outbox: %v", err)
	}

	fmt.Println("=== Reconcile Complete ===")
	fmt.Printf("Re-enqueued: %d\n", n)
	fmt.Printf("Delivered:   %d\n", stats.Delivered)
	fmt.Printf("Failed:      %d\n", stats.Failed)
	fmt.Printf("Dropped:     %d\n", stats.Dropped)
	fmt.Printf("Duration:    %v\n", stats.Duration.Round(time.Millisecond))
}

func runEmbed(cfg *config.Config, startFrom int64) {
	fmt.Println("Regenerating embeddings for all content...")
	fmt.Println()
	ctx := context.Background()

	db, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()

	embedder, err := openEmbedder(cfg)
	if err != nil {
		log.Fatalf("Error creating embedder: %v", err)
	}
	if err := embedder.Health(ctx); err != nil {
		log.Fatalf("Error: embedding provider %s not available (%v)", cfg.Embedder.Provider, err)
	}

	contents, err := db.ListContents(ctx, 0, 0)
	if err != nil {
		log.Fatalf("Error listing contents: %v", err)
	}

	start := time.Now()
	generated, failed, skipped := 0, 0, 0
	for i, c := range contents {
		if startFrom != 0 && c.ID < startFrom {
			skipped++
			continue
		}
		if i > 0 && i%100 == 0 {
			fmt.Printf("\rProgress: %d/%d - %d generated, %d failed  ", i, len(contents), generated, failed)
		}

		vec, err := embedder.Embed(ctx, ingest.EmbeddingInput(c.Title, c.ExtractedText, c.Keywords))
		if err != nil {
			log.Printf("\nError embedding content %d: %v", c.ID, err)
			failed++
			continue
		}
		if err := db.UpdateEmbedding(ctx, c.ID, vec); err != nil {
			log.Printf("\nError storing embedding for content %d: %v", c.ID, err)
			failed++
			continue
		}
		generated++
	}

	fmt.Println()
	fmt.Println("=== Embedding Complete ===")
	fmt.Printf("Generated: %d\n", generated)
	fmt.Printf("Failed:    %d\n", failed)
	fmt.Printf("Skipped:   %d\n", skipped)
	fmt.Printf("Duration:  %v\n", time.Since(start).Round(time.Second))
	fmt.Println()
	fmt.Println("Vectors are queued in the outbox; run `learnshare reconcile` or `serve` to deliver them.")
}

func runPublishDue(cfg *config.Config) {
	ctx := context.Background()

	db, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()

	stats, err := tweets.NewPublisher(db, openTwitter(cfg), 0).Tick(ctx)
	if err != nil {
		log.Fatalf("Error publishing tweets: %v", err)
	}
	fmt.Println(stats)
}

func runStats(cfg *config.Config) {
	ctx := context.Background()

	db, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()

	text, err := openTextIndex(cfg)
	if err != nil {
		log.Fatalf("Error opening search index: %v", err)
	}
	defer text.Close()

	users, err := db.CountUsers(ctx)
	if err != nil {
		log.Fatalf("Error counting users: %v", err)
	}
	contents, err := db.CountContents(ctx)
	if err != nil {
		log.Fatalf("Error counting contents: %v", err)
	}
	indexed, err := db.CountIndexedContents(ctx)
	if err != nil {
		log.Fatalf("Error counting indexed contents: %v", err)
	}
	pending, err := db.CountOutbox(ctx)
	if err != nil {
		log.Fatalf("Error counting outbox: %v", err)
	}
	textCount, err := text.Count()
	if err != nil {
		log.Fatalf("Error getting index count: %v", err)
	}

	fmt.Println("=== LearnShare Statistics ===")
	fmt.Printf("Users:                  %d\n", users)
	fmt.Printf("Contents in database:   %d\n", contents)
	fmt.Printf("Contents in full-text:  %d\n", textCount)
	fmt.Printf("Vectors delivered:      %d\n", indexed)
	fmt.Printf("Vector writes pending:  %d\n", pending)
}

func runGetContent(cfg *config.Config, id int64) {
	db, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer db.Close()

	c, err := db.GetContent(context.Background(), id)
	if err != nil {
		log.Fatalf("Error retrieving content: %v", err)
	}
	if c == nil {
		fmt.Printf("Content not found: %d\n", id)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		log.Fatalf("Error encoding content: %v", err)
	}
	fmt.Println(string(out))
}
