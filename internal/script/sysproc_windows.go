//go:build windows

package script

import (
	"os/exec"
	"syscall"
)

// beforeExec sets the CREATE_NO_WINDOW flag so child scripts do not flash a
// console window when tweakctl is launched from a shortcut.
func beforeExec() []func(*exec.Cmd) {
	return []func(*exec.Cmd){
		func(c *exec.Cmd) {
			c.SysProcAttr = &syscall.SysProcAttr{
				CreationFlags: 0x08000000, // CREATE_NO_WINDOW
			}
		},
	}
}
