//go:build darwin || freebsd || linux

package logger

import (
	"os"

	"golang.org/x/sys/unix"
)

const SupportsColorEscapes = true

// Only stderr is ever inspected, so there is no need to cache this
func GetTerminalInfo(file *os.File) (info TerminalInfo) {
	if _, err := unix.IoctlGetTermios(int(file.Fd()), ioctlReadTermios); err == nil {
		info.IsTTY = true
		info.UseColorEscapes = !hasNoColorEnvironmentVariable()
	}
	return
}
