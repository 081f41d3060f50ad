package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacquetc/qleany/logging"
)

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			log, err := logging.NewLogger(level, format)
			require.NoError(t, err, "%s/%s", level, format)
			require.NotNil(t, log)
			log.Sync()
		}
	}
}

func TestNewLoggerRejectsBadInput(t *testing.T) {
	_, err := logging.NewLogger("verbose", "json")
	assert.Error(t, err)

	_, err = logging.NewLogger("info", "xml")
	assert.Error(t, err)
}
