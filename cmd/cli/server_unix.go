//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// detach puts cmd in its own process group so terminal signals miss it
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
