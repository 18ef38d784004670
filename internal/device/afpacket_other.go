//go:build !linux

package device

import (
	"fmt"

	"firestige.xyz/otus-inject/internal/core"
)

func openAFPacket(opts Options) (Sink, error) {
	return nil, fmt.Errorf("%w: afpacket is only available on linux", core.ErrDeviceOpen)
}
