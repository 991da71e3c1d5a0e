package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger returns a child of the process logger tagged with component.
func Logger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
