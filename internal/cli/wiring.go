package cli

import (
	"fmt"

	"academybot/config"
	"academybot/internal/adapter/matcher"
	"academybot/internal/adapter/provider"
	"academybot/internal/adapter/store"
	"academybot/internal/domain"
	"academybot/internal/port"
	"academybot/internal/usecase"
)

// stores bundles the bbolt-backed corpus store and vector index that share
// one database file.
type stores struct {
	corpus *store.BoltStore
	index  *store.BoltVectorIndex
}

func (s *stores) Close() error {
	return s.corpus.Close()
}

// openStores opens the corpus database, creating the store directory on
// first use.
func openStores(dimension int) (*stores, error) {
	dbPath := cfg.ResolveStorePath(rootDir)
	if err := config.EnsureStoreDir(dbPath); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	corpus, err := store.NewBoltStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus store: %w", err)
	}

	index, err := store.NewBoltVectorIndex(corpus.DB(), dimension)
	if err != nil {
		corpus.Close()
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	return &stores{corpus: corpus, index: index}, nil
}

// buildEngine wires the full answer pipeline from config: curated matcher,
// embedding retriever, prompt assembler and provider router.
func buildEngine(st *stores, embedder port.Embedder) (*usecase.Engine, error) {
	curated, err := st.corpus.ListBySource(domain.SourceCurated)
	if err != nil {
		return nil, fmt.Errorf("failed to load curated records: %w", err)
	}

	retriever := usecase.NewRetrieveUseCase(
		embedder,
		st.index,
		st.corpus,
		cfg.Retrieve.LexicalBonus,
		cfg.Retrieve.MinQuestionTokens,
		logger,
	)
	prompts := usecase.NewPromptAssembler(cfg.Prompt.PerHitChars, cfg.Prompt.TotalChars)
	router := provider.NewRouter(cfg.Providers, cfg.Router, logger)

	return usecase.NewEngine(
		matcher.New(curated),
		retriever,
		prompts,
		router,
		cfg.Arbiter.CuratedThreshold,
		cfg.Arbiter.RetrievalThreshold,
		cfg.Arbiter.RetrieveK,
		logger,
	), nil
}
