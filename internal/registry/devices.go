// Package registry links every device backend into the binary.
package registry

import (
	_ "github.com/Alia5/dofstream/device/mock"      // Register simulated device
	_ "github.com/Alia5/dofstream/device/replay"    // Register replay device
	_ "github.com/Alia5/dofstream/device/serialdev" // Register serial device
)
