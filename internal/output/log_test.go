package output

import (
	"bytes"
	"os"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestSetupLoggingLevels(t *testing.T) {
	var buf bytes.Buffer
	SetupLoggingTo(&buf, false)
	assert.Equal(t, log.InfoLevel, Logger.GetLevel())
	Debug("hidden")
	Info("shown", "count", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "count=2")

	buf.Reset()
	SetupLoggingTo(&buf, true)
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())
	Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestFormatterFor(t *testing.T) {
	assert.Equal(t, log.TextFormatter, formatterFor(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "log")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	assert.Equal(t, log.LogfmtFormatter, formatterFor(f))
}
