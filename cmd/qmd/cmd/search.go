package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quickmd/qmd/internal/embed"
	"github.com/quickmd/qmd/internal/search"
	"github.com/quickmd/qmd/internal/store"
)

// searchOptions carries the flags shared by search, vsearch, and query.
type searchOptions struct {
	limit      int
	collection string
	minScore   float64
	noCache    bool
	jsonOut    bool
	all        bool
	model      string
}

func (o *searchOptions) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&o.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&o.collection, "collection", "c", "", "Restrict results to one collection")
	cmd.Flags().Float64Var(&o.minScore, "min-score", 0, "Drop results scoring below this threshold")
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "Bypass the result cache")
	cmd.Flags().BoolVar(&o.jsonOut, "json", false, "Emit results as JSON")
	cmd.Flags().BoolVar(&o.all, "all", false, "Print full document bodies instead of snippets")
	cmd.Flags().StringVar(&o.model, "model", embed.StaticModelName, "Embedding model (static or an Ollama model name)")
}

func (o *searchOptions) engineOptions() search.Options {
	return search.Options{
		Limit:      o.limit,
		Collection: o.collection,
		MinScore:   o.minScore,
		NoCache:    o.noCache,
	}
}

// searchFunc is one of the engine's three query paths.
type searchFunc func(e *search.Engine, ctx context.Context, query string, opts search.Options) ([]store.SearchResult, error)

func newSearchCmd(env *appEnv) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Keyword search (BM25 full-text)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, env, opts, args[0], (*search.Engine).Search)
		},
	}
	opts.register(cmd)
	return cmd
}

func newVSearchCmd(env *appEnv) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "vsearch <query>",
		Short: "Semantic search over embedded documents",
		Long: `Searches by vector similarity. Requires embeddings; run 'qmd embed'
after indexing to generate them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, env, opts, args[0], (*search.Engine).VSearch)
		},
	}
	opts.register(cmd)
	return cmd
}

func newQueryCmd(env *appEnv) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Hybrid search fusing keyword and semantic results",
		Long: `Runs keyword and vector search and fuses the two lists with
reciprocal rank fusion. When the top keyword hit is decisive the vector
pass is skipped; when no embeddings exist results are keyword-only.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, env, opts, args[0], (*search.Engine).Query)
		},
	}
	opts.register(cmd)
	return cmd
}

func runSearch(cmd *cobra.Command, env *appEnv, opts *searchOptions, query string, fn searchFunc) error {
	s, err := env.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	embedder := newEmbedder(opts.model)
	defer embedder.Close()

	engine := search.NewEngine(s, search.NewVectorEngine(s, embedder))

	results, err := fn(engine, cmd.Context(), query, opts.engineOptions())
	if err != nil {
		return err
	}
	return printResults(cmd, query, results, opts)
}

// newEmbedder picks the embedding backend by model name. The static
// model needs no server; anything else goes through Ollama with an LRU
// cache in front.
func newEmbedder(model string) embed.Embedder {
	if model == "" || model == embed.StaticModelName {
		return embed.NewStaticEmbedder()
	}
	inner := embed.NewOllamaEmbedder(embed.OllamaConfig{Model: model})
	cached, err := embed.NewCachedEmbedder(inner, embed.DefaultCacheSize)
	if err != nil {
		return inner
	}
	return cached
}

func printResults(cmd *cobra.Command, query string, results []store.SearchResult, opts *searchOptions) error {
	out := cmd.OutOrStdout()

	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}

	for i, r := range results {
		fmt.Fprintf(out, "%d. [%s] %s (%.2f)\n", i+1, r.Docid, r.DisplayPath, r.Score)
		if r.Title != "" {
			fmt.Fprintf(out, "   %s\n", r.Title)
		}
		if opts.all {
			fmt.Fprintln(out, indentBody(r.Body))
		} else if snippet := search.ExtractSnippet(r.Body, query, 0); snippet != "" {
			fmt.Fprintf(out, "   %s\n", snippet)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func indentBody(body string) string {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "   " + line
	}
	return strings.Join(lines, "\n")
}
