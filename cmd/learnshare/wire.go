package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/renderinc/learnshare/internal/auth"
	"github.com/renderinc/learnshare/internal/capture"
	"github.com/renderinc/learnshare/internal/chat"
	"github.com/renderinc/learnshare/internal/chatcache"
	"github.com/renderinc/learnshare/internal/config"
	"github.com/renderinc/learnshare/internal/crafting"
	"github.com/renderinc/learnshare/internal/embeddings"
	"github.com/renderinc/learnshare/internal/ingest"
	"github.com/renderinc/learnshare/internal/llm"
	"github.com/renderinc/learnshare/internal/outbox"
	"github.com/renderinc/learnshare/internal/relations"
	"github.com/renderinc/learnshare/internal/scheduler"
	"github.com/renderinc/learnshare/internal/search"
	"github.com/renderinc/learnshare/internal/sharing"
	"github.com/renderinc/learnshare/internal/storage"
	"github.com/renderinc/learnshare/internal/tweets"
	"github.com/renderinc/learnshare/internal/twitter"
	"github.com/renderinc/learnshare/internal/vectorindex"
	"github.com/renderinc/learnshare/internal/web"
)

// app holds the long-lived components shared by serve's server and jobs.
type app struct {
	cfg       *config.Config
	db        *storage.DB
	text      *search.Index
	vectors   vectorindex.Index
	embedder  *embeddings.Fixed
	completer llm.Completer
	twitter   *twitter.Client

	closers []func()
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	var err error

	if a.db, err = openStore(cfg); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, func() { a.db.Close() })

	if a.text, err = openTextIndex(cfg); err != nil {
		a.Close()
		return nil, fmt.Errorf("open search index: %w", err)
	}
	a.closers = append(a.closers, func() { a.text.Close() })

	vectors, closeVectors, err := openVectorIndex(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	a.vectors = vectors
	a.closers = append(a.closers, closeVectors)

	if a.embedder, err = openEmbedder(cfg); err != nil {
		a.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	if err := a.embedder.Health(ctx); err != nil {
		log.Printf("Warning: embedding provider %s not reachable (%v); ingestion will fail until it is", cfg.Embedder.Provider, err)
	}

	if a.completer, err = llm.New(llm.Options{
		Provider:  cfg.LLM.Provider,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		MaxTokens: cfg.LLM.MaxTokens,
		Timeout:   time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	}); err != nil {
		a.Close()
		return nil, fmt.Errorf("create completer: %w", err)
	}

	a.twitter = openTwitter(cfg)
	return a, nil
}

// Close releases resources in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) server(worker *outbox.Worker, publisher *tweets.Publisher) *web.Server {
	var browser ingest.Extractor
	if a.cfg.Scraper.Browser {
		browser = ingest.NewBrowserExtractor(ingest.BrowserOptions{
			Headless:          a.cfg.Scraper.Headless,
			UserAgent:         a.cfg.Scraper.UserAgent,
			NavigationTimeout: time.Duration(a.cfg.Scraper.NavigationTimeoutSecs) * time.Second,
			Attempts:          a.cfg.Scraper.Attempts,
		})
	}
	extractor := ingest.NewRouter(ingest.RouterOptions{UserAgent: a.cfg.Scraper.UserAgent, Browser: browser})

	dim := a.embedder.Dimension()
	semantic := search.NewSemantic(a.embedder, a.vectors, a.db, dim)
	pipeline := ingest.NewPipeline(ingest.Deps{
		Store:     a.db,
		Embedder:  a.embedder,
		Extractor: extractor,
		TextIndex: a.text,
		Outbox:    worker,
		Dimension: dim,
	})
	crafter := crafting.New(a.completer)

	return web.NewServer(web.Deps{
		Store:    a.db,
		Auth:     auth.NewService(a.db, a.cfg.Auth.JWTSecret, a.cfg.TokenTTL()),
		Ingest:   pipeline,
		Text:     a.text,
		Semantic: semantic,
		Chat:     chat.NewService(semantic, a.completer, chatcache.NewLRU(a.cfg.Chat.CacheSize, a.cfg.ChatCacheTTL())),
		Crafter:  crafter,
		Capture: capture.NewService(capture.Deps{
			Store:    a.db,
			LLM:      a.completer,
			Ingester: pipeline,
			Pages:    extractor,
			Crafter:  crafter,
		}),
		Relations: relations.NewService(a.db, a.completer, semantic),
		Sharing:   sharing.NewService(a.db, a.cfg.Server.BaseURL),
		Handshake: twitter.NewHandshake(a.twitter, a.db),
		Tweets:    publisher,
	})
}

func (a *app) scheduler(worker *outbox.Worker, publisher *tweets.Publisher) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New(a.cfg.Scheduler.Timezone)
	if err != nil {
		return nil, err
	}

	jobs := []struct {
		name     string
		schedule string
		timeout  time.Duration
		job      scheduler.Job
	}{
		{"publish-tweets", a.cfg.Scheduler.Tweets, 50 * time.Second, func(ctx context.Context) error {
			_, err := publisher.Tick(ctx)
			return err
		}},
		{"outbox-drain", a.cfg.Scheduler.OutboxDrain, time.Minute, func(ctx context.Context) error {
			_, err := worker.Drain(ctx)
			return err
		}},
		{"outbox-reconcile", a.cfg.Scheduler.OutboxReconcile, 5 * time.Minute, func(ctx context.Context) error {
			_, err := worker.Reconcile(ctx)
			return err
		}},
		{"oauth-state-purge", a.cfg.Scheduler.OAuthPurge, time.Minute, func(ctx context.Context) error {
			n, err := a.db.DeleteExpiredOAuthStates(ctx, time.Now())
			if n > 0 {
				log.Printf("[scheduler] Purged %d expired OAuth states", n)
			}
			return err
		}},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.name, j.schedule, j.timeout, j.job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func openStore(cfg *config.Config) (*storage.DB, error) {
	return storage.Open(cfg.Database.Driver, cfg.Database.Path)
}

func openTextIndex(cfg *config.Config) (*search.Index, error) {
	return search.Open(cfg.Search.IndexPath)
}

// openVectorIndex returns the configured backend and a function releasing it.
func openVectorIndex(ctx context.Context, cfg *config.Config) (vectorindex.Index, func(), error) {
	switch cfg.VectorIndex.Type {
	case "pinecone":
		p := vectorindex.NewPinecone(vectorindex.PineconeConfig{
			Host:      cfg.VectorIndex.Pinecone.Host,
			APIKey:    cfg.VectorIndex.Pinecone.APIKey,
			Namespace: cfg.VectorIndex.Pinecone.Namespace,
			Timeout:   time.Duration(cfg.VectorIndex.Pinecone.TimeoutSecs) * time.Second,
		})
		return p, func() {}, nil
	case "pgvector":
		p, err := vectorindex.OpenPGVector(ctx, cfg.VectorIndex.PGVector.DSN, cfg.VectorIndex.PGVector.Table, cfg.Embedder.Dimension)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	case "memory":
		log.Println("Warning: using the in-memory vector index; vectors are lost on restart and re-delivered by reconcile")
		return vectorindex.NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported vector index type: %s", cfg.VectorIndex.Type)
	}
}

func openEmbedder(cfg *config.Config) (*embeddings.Fixed, error) {
	inner, err := embeddings.NewEmbedder(embeddings.Options{
		Provider: cfg.Embedder.Provider,
		BaseURL:  cfg.Embedder.BaseURL,
		Model:    cfg.Embedder.Model,
		APIKey:   cfg.Embedder.APIKey,
		Timeout:  time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return embeddings.NewFixed(inner, cfg.Embedder.Dimension), nil
}

func openTwitter(cfg *config.Config) *twitter.Client {
	return twitter.NewClient(twitter.Config{
		ConsumerKey:    cfg.Twitter.ConsumerKey,
		ConsumerSecret: cfg.Twitter.ConsumerSecret,
		CallbackURL:    cfg.Twitter.CallbackURL,
		APIBaseURL:     cfg.Twitter.APIBaseURL,
	})
}
