package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"academybot/internal/adapter/provider"
	"academybot/internal/domain"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show corpus and provider status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output corpus stats as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	dbPath := cfg.ResolveStorePath(GetRootDir())
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No corpus store found. Run 'academybot ingest' first.")
		return nil
	}

	st, err := openStores(cfg.Embedding.Dimension)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.corpus.Count()
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	vectors, err := st.index.Count()
	if err != nil {
		return fmt.Errorf("failed to count vectors: %w", err)
	}
	curated, err := st.corpus.ListBySource(domain.SourceCurated)
	if err != nil {
		return fmt.Errorf("failed to list curated records: %w", err)
	}

	if statusJSON {
		stats := domain.CorpusStats{
			Records:   records,
			Vectors:   vectors,
			Dimension: st.index.Dimension(),
		}
		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Corpus store: %s\n", dbPath)
	fmt.Printf("  Records:         %d\n", records)
	fmt.Printf("  Curated records: %d\n", len(curated))
	fmt.Printf("  Vectors:         %d (dimension %d)\n", vectors, st.index.Dimension())

	router := provider.NewRouter(cfg.Providers, cfg.Router, logger)
	health := router.Health()

	fmt.Printf("\nProviders (%d configured, %d usable):\n", len(cfg.Providers), len(health))
	if len(health) == 0 {
		fmt.Println("  none (check provider API key environment variables)")
	}
	for _, h := range health {
		state := "healthy"
		switch {
		case h.AuthDown:
			state = "auth failed"
		case !h.Healthy:
			state = "unhealthy"
		case time.Now().Before(h.CooldownUntil):
			state = fmt.Sprintf("cooling down until %s", h.CooldownUntil.Format(time.Kitchen))
		}
		fmt.Printf("  %-10s %s\n", h.Name, state)
	}
	return nil
}
