package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"academybot/internal/adapter/embedding"
	"academybot/internal/domain"
)

var (
	askJSON      bool
	askNoKB      bool
	askLanguage  string
	askMaxTokens int
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one member question",
	Long: `Answer a question through the full routing pipeline: curated table
first, then embedding retrieval with provider generation, then fallback.

Examples:
  academybot ask "what is the lms"
  academybot ask --json "how do I cancel my subscription"
  academybot ask --lang Spanish "como accedo a mis cursos"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the full response as JSON")
	askCmd.Flags().BoolVar(&askNoKB, "no-kb", false, "skip knowledge base retrieval")
	askCmd.Flags().StringVar(&askLanguage, "lang", "", "respond in this language")
	askCmd.Flags().IntVar(&askMaxTokens, "max-tokens", 0, "cap provider completion tokens")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	st, err := openStores(embedder.Dimension())
	if err != nil {
		return err
	}
	defer st.Close()

	engine, err := buildEngine(st, embedder)
	if err != nil {
		return err
	}

	opts := domain.DefaultAnswerOptions()
	opts.UseKnowledgeBase = !askNoKB
	opts.Language = askLanguage
	opts.MaxTokens = askMaxTokens

	resp, err := engine.Answer(cmd.Context(), question, opts)
	if err != nil {
		if cmd.Context().Err() != nil {
			return context.Canceled
		}
		return fmt.Errorf("answer failed: %w", err)
	}

	if askJSON {
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(resp.Text)
	fmt.Printf("\n[%s, confidence %.2f]\n", resp.Layer, resp.Confidence)
	if len(resp.Attribution) > 0 {
		fmt.Printf("Sources: %s\n", strings.Join(resp.Attribution, ", "))
	}
	return nil
}
