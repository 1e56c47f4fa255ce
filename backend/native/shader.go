package native

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"

	"github.com/gogpu/gpuactor/backend"
	"github.com/gogpu/gpuactor/protocol"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// compileWGSL compiles WGSL source to SPIR-V words.
func compileWGSL(src string) ([]uint32, error) {
	code, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: compile shader: %v", backend.ErrInvalidDescriptor, err)
	}
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: SPIR-V length %d is not word aligned", backend.ErrInvalidDescriptor, len(code))
	}
	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}

// shaderCode returns the SPIR-V words for desc. WGSL is compiled once per
// distinct source.
func (b *Backend) shaderCode(desc protocol.ShaderModuleDescriptor) ([]uint32, error) {
	if len(desc.SPIRV) > 0 {
		if desc.SPIRV[0] != spirvMagic {
			return nil, fmt.Errorf("%w: bad SPIR-V magic %#x", backend.ErrInvalidDescriptor, desc.SPIRV[0])
		}
		return desc.SPIRV, nil
	}
	return b.shaders.GetOrCreate(sha256.Sum256([]byte(desc.WGSL)), func() ([]uint32, error) {
		return compileWGSL(desc.WGSL)
	})
}

// ShaderCacheStats reports the WGSL compilation cache counters and the
// number of cached modules.
func (b *Backend) ShaderCacheStats() (hits, misses uint64, size int) {
	s := b.shaders.Stats()
	return s.Hits, s.Misses, s.Len
}
