package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quickmd/qmd/internal/resolver"
)

func newGetCmd(env *appEnv) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "get <docid|path>",
		Short: "Fetch a document by docid or path",
		Long: `Resolves the reference and prints the document. Accepts a docid
(optionally prefixed with #), a qmd:// virtual path, a collection/path
pair, a filesystem path inside a collection root, or a bare path suffix.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.loadConfig()
			if err != nil {
				return err
			}
			s, err := env.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			doc, err := resolver.New(s, cfg).FetchDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}

			fmt.Fprintf(out, "# %s [%s]\n", doc.DisplayPath, doc.Docid)
			if doc.Context != "" {
				fmt.Fprintf(out, "Context: %s\n", doc.Context)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, doc.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the document as JSON")
	return cmd
}
