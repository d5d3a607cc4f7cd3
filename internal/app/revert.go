package app

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/keelworks/tweakctl/internal/executor"
	"github.com/keelworks/tweakctl/internal/output"
	"github.com/keelworks/tweakctl/internal/restore"
)

var revertFlagYes bool

var revertCmd = &cobra.Command{
	Use:   "revert [latest|restore-point-id]",
	Short: "Undo an apply by replaying its restore point",
	Long: `Replay the revert operations recorded in a restore point. With no
argument (or "latest") the newest restore point is used.

Examples:
  tweakctl revert
  tweakctl revert latest
  tweakctl revert 20260830T101500_8f14e45f-ceea-4672-950f-01b1c7a0e3a4`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRevert,
}

func init() {
	revertCmd.Flags().BoolVarP(&revertFlagYes, "yes", "y", false, "skip confirmation prompt")
	RootCmd.AddCommand(revertCmd)
}

func runRevert(cmd *cobra.Command, args []string) error {
	paths, err := getPaths()
	if err != nil {
		return err
	}
	store := restore.NewStore(paths.RestorePoints())

	var point *restore.Point
	if len(args) == 0 || strings.EqualFold(args[0], "latest") {
		point, err = store.Latest()
		if err != nil {
			return err
		}
		if point == nil {
			fmt.Println("No restore points found.")
			return nil
		}
	} else {
		point, err = store.Get(args[0])
		if err != nil {
			return err
		}
	}

	fmt.Print(output.RenderRestorePointDetail(point))

	if !revertFlagYes {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Revert %d operations", len(point.Operations)),
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			fmt.Println("Revert cancelled.")
			return nil
		}
	}

	fmt.Println()
	ex := executor.New(newRunner(paths))
	res, err := restore.Apply(cmd.Context(), ex, point)
	if err != nil {
		return err
	}

	fmt.Print(output.RenderExecutionResult(res))
	if !res.Success() {
		_, failed := res.Counts()
		return fmt.Errorf("%d revert operations failed", failed)
	}
	return nil
}
