package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quickmd/qmd/internal/embed"
	"github.com/quickmd/qmd/internal/preflight"
	"github.com/quickmd/qmd/internal/store"
)

func newDoctorCmd(env *appEnv) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment before indexing",
		Long: `Verifies the database location is writable, disk space and file
descriptor limits are adequate, and the embedding backend is reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := env.dbPath
			if dbPath == "" {
				dbPath = store.DefaultPath()
			}

			embedder := newEmbedder(model)
			defer embedder.Close()

			results := preflight.Run(cmd.Context(), dbPath, embedder)
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %-20s %s\n", r.Status, r.Name, r.Message)
			}
			if preflight.Critical(results) {
				return fmt.Errorf("environment is not ready")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ready")
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", embed.StaticModelName, "Embedding model to probe")
	return cmd
}
