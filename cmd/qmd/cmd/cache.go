package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(env *appEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persistent result cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop all cached search results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := env.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.ClearCache(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Result cache cleared.")
			return nil
		},
	})
	return cmd
}
