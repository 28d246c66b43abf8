package main

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"notex/pkg/checkpoint"
	"notex/pkg/ui"
	"notex/pkg/workspace"
)

var (
	checkpointWorkspace string
	checkpointDir       string
	checkpointVerbose   bool
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or clear recorded conversion progress",
}

var checkpointStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-page conversion status",
	RunE:  runCheckpointStatus,
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the checkpoint, forcing a full reconversion on the next run",
	RunE:  runCheckpointClear,
}

func init() {
	checkpointCmd.PersistentFlags().StringVarP(&checkpointWorkspace, "workspace", "w", "", "named workspace")
	checkpointCmd.PersistentFlags().StringVarP(&checkpointDir, "dir", "d", "./output", "output directory of an ad hoc run")
	checkpointStatusCmd.Flags().BoolVarP(&checkpointVerbose, "verbose", "v", false, "list every page")
	checkpointCmd.AddCommand(checkpointStatusCmd)
	checkpointCmd.AddCommand(checkpointClearCmd)
	rootCmd.AddCommand(checkpointCmd)
}

// checkpointPath resolves the checkpoint file from the workspace flag or the
// ad hoc output directory
func checkpointPath() (string, error) {
	if checkpointWorkspace == "" {
		return filepath.Join(checkpointDir, "checkpoint.json"), nil
	}
	base, err := defaultWorkspaceBase()
	if err != nil {
		return "", err
	}
	mgr, err := workspace.NewManager(base)
	if err != nil {
		return "", err
	}
	ws, err := mgr.Get(checkpointWorkspace)
	if err != nil {
		return "", err
	}
	return ws.CheckpointPath(), nil
}

func runCheckpointStatus(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	path, err := checkpointPath()
	if err != nil {
		return err
	}

	set, err := checkpoint.NewStore(path).Inspect()
	if err != nil {
		ui.PrintError("Cannot read checkpoint", err.Error())
		return err
	}
	if set == nil {
		ui.PrintInfo("Checkpoint", "none (nothing converted yet)")
		return nil
	}

	counts := make(map[checkpoint.Status]int)
	pages := make([]int, 0, len(set.Pages))
	for page, rec := range set.Pages {
		counts[rec.Status]++
		pages = append(pages, page)
	}
	sort.Ints(pages)

	ui.PrintInfo("Document", set.PDF)
	ui.PrintInfo("Checkpoint", path)
	ui.PrintInfo("Updated", set.UpdatedAt.Format("2006-01-02 15:04:05"))
	ui.PrintInfo("Succeeded", fmt.Sprintf("%d", counts[checkpoint.StatusSucceeded]))
	ui.PrintInfo("Failed", fmt.Sprintf("%d", counts[checkpoint.StatusFailed]))

	if checkpointVerbose {
		fmt.Println()
		for _, page := range pages {
			rec := set.Pages[page]
			switch rec.Status {
			case checkpoint.StatusSucceeded:
				fmt.Printf("  %s page %-4d %s\n", ui.Green("ok  "), page, ui.Dim(rec.Result))
			case checkpoint.StatusFailed:
				fmt.Printf("  %s page %-4d attempts=%d %s\n", ui.Red("fail"), page, rec.Attempts, rec.LastError)
			default:
				fmt.Printf("  %s page %-4d\n", ui.Yellow("pend"), page)
			}
		}
	}
	return nil
}

func runCheckpointClear(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	path, err := checkpointPath()
	if err != nil {
		return err
	}

	store := checkpoint.NewStore(path)
	if !store.Exists() {
		ui.PrintInfo("Checkpoint", "none to clear")
		return nil
	}
	if err := store.Clear(); err != nil {
		ui.PrintError("Failed to clear checkpoint", err.Error())
		return err
	}
	ui.PrintSuccess("Checkpoint cleared")
	return nil
}
