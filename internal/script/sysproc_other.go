//go:build !windows

package script

import "os/exec"

func beforeExec() []func(*exec.Cmd) {
	return nil
}
