//go:build !darwin && !freebsd && !linux

package logger

import "os"

// Terminal detection is not implemented here, so output is never colored
// unless color is forced
const SupportsColorEscapes = false

func GetTerminalInfo(*os.File) TerminalInfo {
	return TerminalInfo{}
}
