package errprocess

import (
	"fmt"

	"video_ingest_service/pkg/logger"

	"go.uber.org/zap"
)

// Wrap logs "<errMsg> : <cause>" and returns an error with the same text that
// still unwraps to cause, so typed domain errors stay reachable by errors.As.
func Wrap(errMsg string, cause error) error {
	wrapped := fmt.Errorf("%s : %w", errMsg, cause)
	logger.Log.Error(wrapped.Error(), zap.NamedError("cause", cause))
	return wrapped
}
