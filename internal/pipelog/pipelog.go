// Package pipelog supplies the structured logger the pipeline elements
// use, defaulting to the process-wide livekit logger when a caller
// doesn't supply one.
package pipelog

import "github.com/livekit/protocol/logger"

// Default returns l if non-nil, otherwise the process-wide logger.
func Default(l logger.Logger) logger.Logger {
	if l != nil {
		return l
	}
	return logger.GetLogger()
}
