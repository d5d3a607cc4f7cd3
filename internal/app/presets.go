package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List presets and their tweak states",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := getPaths()
		if err != nil {
			return err
		}
		cat, err := loadCatalog(paths)
		if err != nil {
			return err
		}

		presets := cat.Presets()
		if len(presets) == 0 {
			fmt.Println("No presets in the catalog.")
			return nil
		}

		for i, p := range presets {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("%s — %s\n", p.ID, p.Name)

			ids := make([]string, 0, len(p.States))
			for id := range p.States {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				side := "disable"
				if p.States[id] {
					side = "enable"
				}
				fmt.Printf("  %-28s %s\n", id, side)
			}
		}
		return nil
	},
}

var tweaksCmd = &cobra.Command{
	Use:   "tweaks",
	Short: "List tweaks in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := getPaths()
		if err != nil {
			return err
		}
		cat, err := loadCatalog(paths)
		if err != nil {
			return err
		}

		tweaks := cat.Tweaks()
		if len(tweaks) == 0 {
			fmt.Println("No tweaks in the catalog.")
			return nil
		}

		fmt.Printf("%-28s %-10s %-8s %s\n", "ID", "Category", "Risk", "Sides")
		fmt.Println(strings.Repeat("─", 64))
		for _, t := range tweaks {
			var sides []string
			if t.Enable != nil {
				sides = append(sides, "enable")
			}
			if t.Disable != nil {
				sides = append(sides, "disable")
			}
			fmt.Printf("%-28s %-10s %-8s %s\n", t.ID, t.Category, t.Risk, strings.Join(sides, ", "))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(presetsCmd)
	RootCmd.AddCommand(tweaksCmd)
}
