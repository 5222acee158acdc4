package usecase

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"aria/internal/adapter/corpus"
	"aria/internal/adapter/index"
	"aria/internal/domain"
	"aria/internal/port"
)

// Builder turns raw course files into a persisted embedding snapshot.
type Builder struct {
	walker    *corpus.Walker
	extractor *corpus.Extractor
	embedder  port.Embedder
	batchSize int
	progress  bool
	logger    *zap.Logger
}

type BuildResult struct {
	Files     int
	Chunks    int
	Slides    int
	Questions int
	Solutions int
}

func NewBuilder(walker *corpus.Walker, extractor *corpus.Extractor, embedder port.Embedder, batchSize int, progress bool, logger *zap.Logger) *Builder {
	if batchSize <= 0 {
		batchSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		walker:    walker,
		extractor: extractor,
		embedder:  embedder,
		batchSize: batchSize,
		progress:  progress,
		logger:    logger,
	}
}

// Build walks root, extracts and chunks every course file, embeds the
// chunks in batches, and writes the snapshot. Files that fail to parse are
// skipped with a warning so one bad export does not sink the whole build.
func (b *Builder) Build(root, snapshotPath string) (BuildResult, error) {
	var result BuildResult

	files, err := b.walker.Walk(root)
	if err != nil {
		return result, fmt.Errorf("scan corpus: %w", err)
	}
	result.Files = len(files)

	var chunks []domain.Chunk
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			b.logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
			continue
		}

		extracted, err := b.extractor.Extract(path, data)
		if err != nil {
			b.logger.Warn("skipping unparseable file", zap.String("path", path), zap.Error(err))
			continue
		}
		chunks = append(chunks, extracted...)
	}

	result.Chunks = len(chunks)
	for _, c := range chunks {
		switch c.Metadata.ContentType {
		case domain.ContentCourseSlide:
			result.Slides++
		case domain.ContentExerciseQuestion:
			result.Questions++
		case domain.ContentExerciseSolution:
			result.Solutions++
		}
	}

	if len(chunks) == 0 {
		b.logger.Warn("no chunks extracted", zap.String("root", root))
		return result, index.Save(snapshotPath, domain.IndexData{})
	}

	var bar *progressbar.ProgressBar
	if b.progress {
		bar = progressbar.NewOptions(len(chunks),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
			progressbar.OptionOnCompletion(func() {
				fmt.Println()
			}),
		)
	}

	data := domain.IndexData{
		Documents:  make([]string, len(chunks)),
		Embeddings: make([][]float32, 0, len(chunks)),
		Metadatas:  make([]domain.Metadata, len(chunks)),
	}
	for i, c := range chunks {
		data.Documents[i] = c.Text
		data.Metadatas[i] = c.Metadata
	}

	for i := 0; i < len(data.Documents); i += b.batchSize {
		end := i + b.batchSize
		if end > len(data.Documents) {
			end = len(data.Documents)
		}

		vectors, err := b.embedder.Embed(data.Documents[i:end])
		if err != nil {
			return result, fmt.Errorf("embed batch at %d: %w", i, err)
		}
		data.Embeddings = append(data.Embeddings, vectors...)

		if bar != nil {
			bar.Set(end)
		}
	}

	if err := index.Save(snapshotPath, data); err != nil {
		return result, err
	}

	b.logger.Info("index built",
		zap.Int("files", result.Files),
		zap.Int("chunks", result.Chunks),
		zap.String("snapshot", snapshotPath))
	return result, nil
}
