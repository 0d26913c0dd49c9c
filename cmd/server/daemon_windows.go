//go:build windows

package main

import "syscall"

const detachedProcess = 0x00000008

// daemonAttr starts the server without a console
func daemonAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
		HideWindow:    true,
	}
}
