package app

import (
	"log"
	"os"
	"time"

	"zooclient/internal/config"
	"zooclient/internal/decisiontree"
	"zooclient/internal/provider"
	"zooclient/internal/storage/sqlite"
	"zooclient/internal/subjects"
	"zooclient/internal/syncer"
	"zooclient/internal/zooniverse"
)

func Main() {
	cfg := config.LoadConfig()
	httpTimeout := time.Duration(cfg.ExternalHTTPTimeoutSeconds) * time.Second
	log.Printf(
		"Config loaded. DB=%s CacheDir=%s Groups=%d MinCachedItems=%d PrefetchSchedule=%q ShowDiscussQuestion=%v ExternalHTTPTimeout=%s",
		cfg.DBPath,
		cfg.CacheDir,
		len(cfg.GroupIDs),
		cfg.MinCachedItems,
		cfg.PrefetchSchedule,
		cfg.ShowDiscussQuestion,
		httpTimeout,
	)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	defer db.Close()

	os.MkdirAll(cfg.CacheDir, 0755)
	log.Printf("Image cache dir: %s", cfg.CacheDir)

	tree, err := decisiontree.Load(cfg.DecisionTreePath)
	if err != nil {
		log.Fatalf("Failed to load decision tree: %v", err)
	}

	store := provider.New(db, cfg.CacheDir)
	client := zooniverse.NewClient(cfg.APIBaseURL, cfg.GroupIDs, httpTimeout)
	adder := subjects.NewAdder(store, httpTimeout)
	store.AttachRemote(client, adder)

	sync := syncer.New(store, client, adder, cfg.MinCachedItems)
	store.AttachSyncRequester(sync)
	sync.Start()
	sync.StartScheduler(cfg.PrefetchSchedule)
	defer sync.Stop()

	// Kick off an initial top-up so the cache fills while the user reads
	// the first question.
	sync.RequestSync()

	log.Println("Starting Galaxy Zoo client...")
	if err := runConsole(store, tree, cfg); err != nil {
		log.Fatalf("Console error: %v", err)
	}
	adder.Wait()
}
