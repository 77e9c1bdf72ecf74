//go:build windows

package log

// no ansi colors on the windows console
const colorReset = ""

func (l logLevel) Color() string {
	return ""
}
