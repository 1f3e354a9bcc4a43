package spd

import "github.com/mscrnt/spdtool/internal/spdcore"

// Re-exported for callers that only import internal/spd.
var (
	ErrBadLength = spdcore.ErrBadLength
	ErrCrc       = spdcore.ErrCrc
)
