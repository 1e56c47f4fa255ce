//go:build !nogpu

package native

import (
	// Register the Vulkan HAL so id.Vulkan resolves.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)
