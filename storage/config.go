package storage

// Config holds every option the core recognizes (spec §6's exhaustive
// list). A CLI, config file parser, or other external collaborator
// is responsible for producing one; this package never reads flags or
// files itself.
type Config struct {
	MemtableSizeThresholdBytes int
	WALEnabled                 bool
	WALSegmentSizeBytes        int
	CompressionDefault         string
	CompressionChunkLengthBytes int
	BloomFPRate                float64
	BlockSizeBytes             int
	CompactionLevelSizeMultiplier int
	CompactionLevel0FileTrigger   int
	CompactionMaxConcurrent       int
	ReadChunkCacheBytes           int
	GCGraceSeconds                int64
}

// DefaultConfig returns the values this engine ships with absent
// caller overrides, chosen to match the reference producer's own
// defaults named throughout spec.md.
func DefaultConfig() Config {
	return Config{
		MemtableSizeThresholdBytes:    64 << 20,
		WALEnabled:                    true,
		WALSegmentSizeBytes:           128 << 20,
		CompressionDefault:            "lz4",
		CompressionChunkLengthBytes:   64 << 10,
		BloomFPRate:                   0.01,
		BlockSizeBytes:                64 << 10,
		CompactionLevelSizeMultiplier: 10,
		CompactionLevel0FileTrigger:   4,
		CompactionMaxConcurrent:       2,
		ReadChunkCacheBytes:           16 << 20,
		GCGraceSeconds:                10 * 24 * 60 * 60,
	}
}
