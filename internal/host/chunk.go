package host

// Chunk keys pack the chunk x coordinate into the low 24 bits and z into the
// next 24, both two's complement.

const chunkAxisMask = 0xFFFFFF

// ChunkKey packs chunk coordinates into a key.
func ChunkKey(x, z int) int64 {
	return int64(z&chunkAxisMask)<<24 | int64(x&chunkAxisMask)
}

// ChunkXZ unpacks a key produced by ChunkKey.
func ChunkXZ(key int64) (x, z int) {
	return signExtend24(key & chunkAxisMask), signExtend24((key >> 24) & chunkAxisMask)
}

func signExtend24(v int64) int {
	return int(v << 40 >> 40)
}
