package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/embernet/tapestry-sub001/internal/storage"
	"github.com/embernet/tapestry-sub001/internal/tools"
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Manage workspaces",
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		status, _ := cmd.Flags().GetString("status")
		list, err := a.meta.ListWorkspaces(status)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSTATUS\tUPDATED\tDESCRIPTION")
		for _, w := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", w.Name, w.Status, w.UpdatedAt, w.Description)
		}
		return tw.Flush()
	},
}

var workspaceCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		desc, _ := cmd.Flags().GetString("description")
		w, err := a.meta.CreateWorkspace(args[0], desc)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created workspace %q.\n", w.Name)
		return nil
	},
}

var workspaceArchiveCmd = &cobra.Command{
	Use:   "archive NAME",
	Short: "Archive a workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMeta(func(m *storage.MetaStore) error {
			_, err := m.ArchiveWorkspace(args[0])
			return err
		})
	},
}

var workspaceRestoreCmd = &cobra.Command{
	Use:   "restore NAME",
	Short: "Restore an archived workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMeta(func(m *storage.MetaStore) error {
			_, err := m.RestoreWorkspace(args[0])
			return err
		})
	},
}

var workspaceDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Permanently delete a workspace and its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMeta(func(m *storage.MetaStore) error {
			return m.DeleteWorkspace(args[0])
		})
	},
}

var workspaceExportCmd = &cobra.Command{
	Use:   "export NAME",
	Short: "Print a workspace snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.session.Switch(args[0]); err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(a.store.Snapshot())
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Describe the tools the model can call",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		fmt.Fprint(cmd.OutOrStdout(), tools.Docs(a.dispatcher.Definitions()))
		return nil
	},
}

func withMeta(fn func(*storage.MetaStore) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a.meta)
}

func init() {
	workspaceListCmd.Flags().String("status", storage.StatusActive, "Filter by status: active, archived or all")
	workspaceCreateCmd.Flags().String("description", "", "Workspace description")
	workspaceCmd.AddCommand(workspaceListCmd, workspaceCreateCmd, workspaceArchiveCmd,
		workspaceRestoreCmd, workspaceDeleteCmd, workspaceExportCmd)
}
