package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/spf13/cobra"

	"github.com/keelworks/tweakctl/internal/restore"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment and data directory health",
	RunE:  runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	failures := 0
	check := func(ok bool, label, detail string) {
		mark := "✓"
		if !ok {
			mark = "✗"
			failures++
		}
		if detail != "" {
			fmt.Printf("%s %-24s %s\n", mark, label, detail)
		} else {
			fmt.Printf("%s %s\n", mark, label)
		}
	}

	if info, err := host.Info(); err == nil {
		fmt.Printf("Host: %s (%s %s)\n", info.Hostname, info.Platform, info.PlatformVersion)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Printf("Memory: %s total, %s available\n",
			humanize.IBytes(vm.Total), humanize.IBytes(vm.Available))
	}
	fmt.Println()

	paths, err := getPaths()
	if err != nil {
		check(false, "data directory", err.Error())
		return fmt.Errorf("%d checks failed", failures)
	}
	check(true, "data directory", paths.Root)

	if usage, err := disk.Usage(paths.Root); err == nil {
		low := usage.Free < 1<<30
		check(!low, "free disk space", humanize.IBytes(usage.Free))
	}

	// Writability: the queue and restore points both need it.
	probePath := filepath.Join(paths.Root, ".doctor")
	if err := os.WriteFile(probePath, []byte("ok"), 0o644); err != nil {
		check(false, "data directory writable", err.Error())
	} else {
		os.Remove(probePath)
		check(true, "data directory writable", "")
	}

	if cat, err := loadCatalog(paths); err != nil {
		check(false, "catalog", err.Error())
	} else {
		check(true, "catalog", fmt.Sprintf("%d tweaks, %d tasks, %d presets",
			len(cat.Tweaks()), len(cat.Tasks()), len(cat.Presets())))

		missing := 0
		for _, t := range cat.Tasks() {
			if _, err := os.Stat(paths.ResolveScript(t.Script)); err != nil {
				missing++
			}
		}
		check(missing == 0, "task scripts", fmt.Sprintf("%d missing", missing))
	}

	if points, err := restore.NewStore(paths.RestorePoints()).List(); err != nil {
		check(false, "restore points", err.Error())
	} else {
		check(true, "restore points", fmt.Sprintf("%d on disk (keeping %d)", len(points), restore.Retention))
	}

	if failures > 0 {
		return fmt.Errorf("%d checks failed", failures)
	}
	fmt.Println("\nAll checks passed.")
	return nil
}
