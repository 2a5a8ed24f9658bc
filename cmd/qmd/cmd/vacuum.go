package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVacuumCmd(env *appEnv) *cobra.Command {
	var purgeHistory bool

	cmd := &cobra.Command{
		Use:   "vacuum",
		Short: "Remove orphaned data and compact the database",
		Long: `Drops content rows no document or embedding references, drops
embedding rows whose content is gone, and compacts the database file.
With --purge-history, inactive document rows are deleted too; their
docids will never resolve again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := env.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if purgeHistory {
				deleted, err := s.DeleteInactiveDocuments(ctx, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Purged %d inactive documents.\n", deleted)
			}

			content, err := s.CleanupOrphanedContent(ctx)
			if err != nil {
				return err
			}
			vectors, err := s.CleanupOrphanedVectors(ctx)
			if err != nil {
				return err
			}
			if err := s.ClearCache(ctx); err != nil {
				return err
			}
			if err := s.Vacuum(); err != nil {
				return err
			}

			fmt.Fprintf(out, "Removed %d orphaned content rows and %d orphaned vectors.\n", content, vectors)
			return nil
		},
	}
	cmd.Flags().BoolVar(&purgeHistory, "purge-history", false, "Also delete inactive document rows")
	return cmd
}
