package testlog

import (
	"testing"

	"github.com/danmuck/corehost/internal/logging"
	"github.com/rs/zerolog/log"
)

// Start configures the test logging profile and tags the output with the
// running test name.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("test start")
}
