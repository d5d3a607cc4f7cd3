package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keelworks/tweakctl/internal/output"
	"github.com/keelworks/tweakctl/internal/restore"
)

var restorePointCmd = &cobra.Command{
	Use:   "restorepoint",
	Short: "Inspect and manage restore points",
}

var restorePointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List restore points, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := getPaths()
		if err != nil {
			return err
		}
		points, err := restore.NewStore(paths.RestorePoints()).List()
		if err != nil {
			return err
		}
		fmt.Print(output.RenderRestorePointTable(points))
		return nil
	},
}

var restorePointShowCmd = &cobra.Command{
	Use:   "show <restore-point-id>",
	Short: "Show a restore point's selections and revert operations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := getPaths()
		if err != nil {
			return err
		}
		point, err := restore.NewStore(paths.RestorePoints()).Get(args[0])
		if err != nil {
			return err
		}
		fmt.Print(output.RenderRestorePointDetail(point))
		return nil
	},
}

var restorePointDeleteCmd = &cobra.Command{
	Use:   "delete <restore-point-id>",
	Short: "Delete a restore point",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := getPaths()
		if err != nil {
			return err
		}
		if err := restore.NewStore(paths.RestorePoints()).Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted restore point %s\n", args[0])
		return nil
	},
}

func init() {
	restorePointCmd.AddCommand(restorePointListCmd)
	restorePointCmd.AddCommand(restorePointShowCmd)
	restorePointCmd.AddCommand(restorePointDeleteCmd)
	RootCmd.AddCommand(restorePointCmd)
}
