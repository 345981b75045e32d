package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and edit the store index",
	}

	cmd.AddCommand(newStoreLsCmd(), newStoreAddCmd(), newStoreRmCmd(), newStoreIsPathCmd())
	return cmd
}

func newStoreLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List every registered store path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := idx.List()
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}

func newStoreAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>",
		Short: "Register an existing path as a completed store entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return idx.Register(args[0])
		},
	}
}

func newStoreRmCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "rm [path]",
		Short: "Unregister and delete a store path (or every path with --all)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if len(args) > 0 {
					return fmt.Errorf("cannot combine a path argument with --all")
				}
				paths, err := idx.List()
				if err != nil {
					return err
				}
				for _, p := range paths {
					if err := idx.Unregister(p); err != nil {
						return err
					}
				}
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("rm requires a path argument, or --all")
			}
			return idx.Unregister(args[0])
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "remove every registered store path")
	return cmd
}

func newStoreIsPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "is-path <path>",
		Short: "Report whether a path is a registered store entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registered, err := idx.IsRegistered(args[0])
			if err != nil {
				return err
			}
			if !registered {
				return fmt.Errorf("%s is not a registered store path", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "registered")
			return nil
		},
	}
}
