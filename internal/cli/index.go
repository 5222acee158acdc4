package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"aria/config"
	"aria/internal/adapter/chunker"
	"aria/internal/adapter/corpus"
	"aria/internal/usecase"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build the embedding index from course files",
	Long: `Index scans the course directory for JSON content files, splits them into
sentence-bounded chunks, embeds every chunk, and writes the snapshot the
ask and chat commands load at startup.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	root := rootDir
	if len(args) > 0 {
		root = args[0]
	}

	builder := usecase.NewBuilder(
		corpus.NewWalker(cfg.Corpus.Includes, cfg.Corpus.Excludes),
		corpus.NewExtractor(chunker.NewSentenceChunker(cfg.Corpus.ChunkSize, cfg.Corpus.ChunkOverlap)),
		newEmbedder(cfg),
		cfg.Embedding.BatchSize,
		true,
		logger,
	)

	fmt.Printf("Scanning %s...\n", root)
	result, err := builder.Build(root, config.SnapshotPath(rootDir))
	if err != nil {
		return err
	}

	fmt.Printf("\nIndexed %d files into %d chunks (%d slides, %d questions, %d solutions)\n",
		result.Files, result.Chunks, result.Slides, result.Questions, result.Solutions)
	return nil
}
