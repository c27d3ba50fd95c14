package rcp

import (
	"time"

	"github.com/tarm/serial"
)

// OpenSerial opens device at baud and wraps it as a Transport. A UART is the
// usual RCP attachment; a Unix-socket IPC peer can be wrapped with New
// directly for co-located test RCPs.
func OpenSerial(device string, baud int, host HostAPIVersion) (*Transport, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 2 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return New(port, host), nil
}
