package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fppclabs/opinionsearch/internal/citation"
	"github.com/fppclabs/opinionsearch/internal/corpus"
	"github.com/fppclabs/opinionsearch/internal/embed"
	"github.com/fppclabs/opinionsearch/internal/store"

	oserrors "github.com/fppclabs/opinionsearch/internal/errors"
)

// newIndexCmd creates the index command.
func newIndexCmd() *cobra.Command {
	var force bool
	var skipEmbeddings bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the lexical, citation, and vector indexes",
		Long: `Walk the extracted opinion corpus and build all three indexes:
the BM25 lexical index, the citation inverted maps, and the
multi-field embedding index (qa_text, facts, analysis).

Embedding requires OPENAI_API_KEY unless embeddings.provider is
'static'. Use --skip-embeddings to build only the lexical and
citation indexes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), force, skipEmbeddings)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Rebuild indexes even if they already exist")
	cmd.Flags().BoolVar(&skipEmbeddings, "skip-embeddings", false, "Skip the vector index build")

	return cmd
}

func runIndex(ctx context.Context, force, skipEmbeddings bool) error {
	log := slog.Default()

	if err := os.MkdirAll(cfg.Paths.IndexDir, 0o755); err != nil {
		return oserrors.Wrap(oserrors.ErrCodeIndexWrite, err)
	}

	lexicalPath := lexicalIndexPath(cfg)
	if _, err := os.Stat(lexicalPath); err == nil {
		if !force {
			return oserrors.New(oserrors.ErrCodeIndexWrite,
				"index already exists: "+lexicalPath, nil).
				WithSuggestion("pass --force to rebuild")
		}
		if err := os.RemoveAll(lexicalPath); err != nil {
			return oserrors.Wrap(oserrors.ErrCodeIndexWrite, err)
		}
	}

	opinions, err := corpus.Load(cfg.Paths.DataDir, log)
	if err != nil {
		return err
	}
	if len(opinions) == 0 {
		return oserrors.ValidationError("corpus is empty: "+cfg.Paths.DataDir, nil)
	}

	log.Info("building lexical index", slog.String("path", lexicalPath))
	lexical, err := store.NewBleveLexicalIndex(lexicalPath)
	if err != nil {
		return err
	}
	defer lexical.Close()
	if err := lexical.Index(ctx, corpus.Documents(opinions)); err != nil {
		return err
	}

	log.Info("building citation index")
	citations := citation.BuildIndex(corpus.DocumentCitations(opinions))
	if err := citations.Save(citationIndexPath(cfg)); err != nil {
		return err
	}

	if skipEmbeddings {
		log.Info("skipping vector index build")
		fmt.Printf("Indexed %d opinions (lexical + citation only)\n", len(opinions))
		return nil
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	defer embedder.Close()

	vector, err := buildVectorIndex(ctx, opinions, embedder, log)
	if err != nil {
		return err
	}
	if err := vector.Save(vectorIndexPath(cfg)); err != nil {
		return err
	}

	fmt.Printf("Indexed %d opinions into %s\n", len(opinions), cfg.Paths.IndexDir)
	return nil
}

// buildVectorIndex embeds the three text fields. The qa_text master
// field covers every opinion; facts and analysis only cover opinions
// whose sections were long enough to embed.
func buildVectorIndex(ctx context.Context, opinions []corpus.Opinion, embedder embed.Embedder, log *slog.Logger) (*store.MultiVectorIndex, error) {
	master, err := embedField(ctx, embedder, "qa_text", opinions, corpus.Opinion.QAText, log)
	if err != nil {
		return nil, err
	}

	facts, err := embedField(ctx, embedder, "facts", opinions, corpus.Opinion.FactsText, log)
	if err != nil {
		return nil, err
	}

	analysis, err := embedField(ctx, embedder, "analysis", opinions, corpus.Opinion.AnalysisText, log)
	if err != nil {
		return nil, err
	}

	return store.NewMultiVectorIndex(master, facts, analysis)
}

// embedField batches one field's non-empty texts through the embedder.
func embedField(ctx context.Context, embedder embed.Embedder, name string, opinions []corpus.Opinion, text func(corpus.Opinion) string, log *slog.Logger) (store.VectorField, error) {
	field := store.VectorField{Name: name}

	var texts []string
	for _, op := range opinions {
		t := text(op)
		if t == "" {
			continue
		}
		field.IDs = append(field.IDs, op.ID)
		texts = append(texts, t)
	}

	batchSize := cfg.Embeddings.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return store.VectorField{}, err
		}
		field.Vectors = append(field.Vectors, vecs...)

		log.Info("embedding field",
			slog.String("field", name),
			slog.Int("done", end),
			slog.Int("total", len(texts)))
	}

	return field, nil
}
