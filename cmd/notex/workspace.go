package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"notex/pkg/ui"
	"notex/pkg/workspace"
)

var (
	workspaceDescription string
	workspacePurge       bool
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Manage named conversion workspaces",
	Long: `Workspaces give each document a stable home for its checkpoint, rendered
images and LaTeX output, so repeated conversions need only the workspace
name.`,
}

var workspaceCreateCmd = &cobra.Command{
	Use:   "create <name> <pdf>",
	Short: "Create a workspace for a PDF",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openWorkspaceManager()
		if err != nil {
			return err
		}
		pdfPath, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}
		ws, err := mgr.Create(args[0], pdfPath, workspaceDescription)
		if err != nil {
			ui.PrintError("Failed to create workspace", err.Error())
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Workspace %q created at %s", ws.Name, ws.Dir))
		return nil
	},
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openWorkspaceManager()
		if err != nil {
			return err
		}
		current, _ := mgr.Current()
		workspaces := mgr.List()
		if len(workspaces) == 0 {
			ui.PrintInfo("Workspaces", "none")
			return nil
		}
		for _, ws := range workspaces {
			marker := "  "
			if ws.Name == current {
				marker = ui.Green("* ")
			}
			fmt.Printf("%s%-20s %s\n", marker, ws.Name, ui.Dim(ws.PDFPath))
			if ws.Description != "" {
				fmt.Printf("    %s\n", ws.Description)
			}
		}
		return nil
	},
}

var workspaceUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the current workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openWorkspaceManager()
		if err != nil {
			return err
		}
		if err := mgr.SetCurrent(args[0]); err != nil {
			ui.PrintError("Failed to switch workspace", err.Error())
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Current workspace is now %q", args[0]))
		return nil
	},
}

var workspaceRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a workspace from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openWorkspaceManager()
		if err != nil {
			return err
		}
		if err := mgr.Remove(args[0], workspacePurge); err != nil {
			ui.PrintError("Failed to remove workspace", err.Error())
			return err
		}
		if workspacePurge {
			ui.PrintSuccess(fmt.Sprintf("Workspace %q removed along with its files", args[0]))
		} else {
			ui.PrintSuccess(fmt.Sprintf("Workspace %q removed (files kept on disk)", args[0]))
		}
		return nil
	},
}

func init() {
	workspaceCreateCmd.Flags().StringVar(&workspaceDescription, "description", "", "workspace description")
	workspaceRemoveCmd.Flags().BoolVar(&workspacePurge, "purge", false, "also delete the workspace directory")
	workspaceCmd.AddCommand(workspaceCreateCmd)
	workspaceCmd.AddCommand(workspaceListCmd)
	workspaceCmd.AddCommand(workspaceUseCmd)
	workspaceCmd.AddCommand(workspaceRemoveCmd)
	rootCmd.AddCommand(workspaceCmd)
}

func openWorkspaceManager() (*workspace.Manager, error) {
	base, err := defaultWorkspaceBase()
	if err != nil {
		return nil, err
	}
	return workspace.NewManager(base)
}
