package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"academybot/internal/adapter/embedding"
	"academybot/internal/adapter/fs"
	"academybot/internal/adapter/watcher"
	"academybot/internal/usecase"
)

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Load corpus JSON files into the answer store",
	Long: `Ingest Q&A corpus files from the given directory (default: the corpus
directory from config). Each file is a JSON document of the form
{"documents": [{"question": ..., "answer": ...}, ...]}. Records are embedded
and stored for retrieval.

Examples:
  academybot ingest                # Ingest the configured corpus directory
  academybot ingest ./corpus       # Ingest a specific directory
  academybot ingest --watch        # Keep running and re-ingest on changes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep running and re-ingest when corpus files change")
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir := filepath.Join(GetRootDir(), cfg.Corpus.Dir)
	if len(args) > 0 {
		var err error
		dir, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("corpus directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dir)
	}

	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	st, err := openStores(embedder.Dimension())
	if err != nil {
		return err
	}
	defer st.Close()

	ingestUC := usecase.NewIngestUseCase(st.corpus, st.index, embedder, logger)
	walker := fs.NewWalker(cfg.Corpus.Includes, cfg.Corpus.Excludes)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := walker.Walk(dir)
	if err != nil {
		return fmt.Errorf("failed to scan corpus directory: %w", err)
	}
	if len(files) == 0 && !ingestWatch {
		return fmt.Errorf("no corpus files found under %s", dir)
	}

	if len(files) > 0 {
		if err := ingestWithProgress(ctx, ingestUC, st, files); err != nil {
			return err
		}
	}

	if !ingestWatch {
		return nil
	}

	fmt.Printf("Watching %s for changes (ctrl-c to stop)...\n", dir)
	w := watcher.New(walker, 2*time.Second, logger)
	err = w.Run(ctx, dir, func(ctx context.Context, paths []string) error {
		return ingestWithProgress(ctx, ingestUC, st, paths)
	})
	if ctx.Err() != nil {
		fmt.Println("\nStopped.")
		return nil
	}
	return err
}

// ingestWithProgress runs one ingest pass over the given files with a
// terminal progress bar keyed to record count.
func ingestWithProgress(ctx context.Context, ingestUC *usecase.IngestUseCase, st *stores, files []string) error {
	fmt.Printf("Ingesting %d corpus file(s)...\n", len(files))

	var barMu sync.Mutex
	bar := progressbar.NewOptions(-1,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
	ingestUC.OnRecord = func() {
		barMu.Lock()
		bar.Add(1)
		barMu.Unlock()
	}
	defer func() { ingestUC.OnRecord = nil }()

	result, err := ingestUC.IngestFiles(ctx, files)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	records, err := st.corpus.Count()
	if err != nil {
		logger.Warn("failed to count records", zap.Error(err))
	}

	fmt.Printf("\nIngest complete:\n")
	fmt.Printf("  Records added:   %d\n", result.Added)
	fmt.Printf("  Records skipped: %d\n", result.Skipped)
	fmt.Printf("  Corpus size:     %d\n", records)
	return nil
}
