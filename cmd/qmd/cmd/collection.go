package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCollectionCmd(env *appEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage document collections",
	}
	cmd.AddCommand(newCollectionAddCmd(env))
	cmd.AddCommand(newCollectionListCmd(env))
	cmd.AddCommand(newCollectionRemoveCmd(env))
	cmd.AddCommand(newCollectionRenameCmd(env))
	cmd.AddCommand(newCollectionContextCmd(env))
	return cmd
}

func newCollectionAddCmd(env *appEnv) *cobra.Command {
	var pattern string
	var context string

	cmd := &cobra.Command{
		Use:   "add <name> <path>",
		Short: "Register a directory as a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.AddCollection(args[0], args[1], pattern, context); err != nil {
				return err
			}
			if err := env.saveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added collection %q. Run 'qmd index %s' to index it.\n", args[0], args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "Glob pattern for files to index (default **/*.md)")
	cmd.Flags().StringVar(&context, "context", "", "Context string attached to documents from this collection")
	return cmd
}

func newCollectionListCmd(env *appEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.loadConfig()
			if err != nil {
				return err
			}
			cols := cfg.ListCollections()
			if len(cols) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No collections configured. Add one with 'qmd collection add <name> <path>'.")
				return nil
			}
			for _, col := range cols {
				pattern := col.Pattern
				if pattern == "" {
					pattern = "**/*.md"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s  (%s)\n", col.Name, col.Path, pattern)
			}
			return nil
		},
	}
}

func newCollectionRemoveCmd(env *appEnv) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a collection from the config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RemoveCollection(args[0]); err != nil {
				return err
			}
			if err := env.saveConfig(cfg); err != nil {
				return err
			}

			if purge {
				s, err := env.openStore()
				if err != nil {
					return err
				}
				defer s.Close()
				removed, err := s.RemoveCollectionDocuments(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if _, err := s.CleanupOrphanedContent(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed collection %q and %d indexed documents.\n", args[0], removed)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed collection %q from the config. Indexed documents kept; use --purge to drop them.\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete the collection's documents from the index")
	return cmd
}

func newCollectionRenameCmd(env *appEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a collection in config and index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RenameCollection(args[0], args[1]); err != nil {
				return err
			}
			if err := env.saveConfig(cfg); err != nil {
				return err
			}

			s, err := env.openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.RenameCollectionDocuments(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			if err := s.ClearCache(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed collection %q to %q.\n", args[0], args[1])
			return nil
		},
	}
}

func newCollectionContextCmd(env *appEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "context <collection[/path]> <text>",
		Short: "Attach a context string to a collection or path prefix",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.loadConfig()
			if err != nil {
				return err
			}
			cfg.SetContext(args[0], args[1])
			if err := env.saveConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Context set for %q.\n", args[0])
			return nil
		},
	}
}
