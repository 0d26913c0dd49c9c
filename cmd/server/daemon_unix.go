//go:build !windows

package main

import "syscall"

// daemonAttr starts the server in a new session, detached from the terminal
func daemonAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
