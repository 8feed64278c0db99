//go:build rp2040 || rp2350

package platform

import (
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// LogUART configures UART0 for log output and returns it as a writer.
func LogUART(baud uint32, tx, rx machine.Pin) *uartx.UART {
	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{BaudRate: baud, TX: tx, RX: rx})
	return u
}
