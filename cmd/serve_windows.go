//go:build windows

package cmd

import "os"

// shutdownSignals returns the OS signals that stop pir serve and pir api.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
