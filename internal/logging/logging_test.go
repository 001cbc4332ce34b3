package logging

import (
	"bytes"
	"fmt"
	"testing"

	"bulkctl/cli/internal/errors"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("warn", &buf)
	require.NoError(t, err)

	l.Info("quiet line")
	l.Warn("loud line", l.Args("job_id", "750X"))
	assert.NotContains(t, buf.String(), "quiet line")
	assert.Contains(t, buf.String(), "loud line")
	assert.Contains(t, buf.String(), "750X")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, pterm.LogLevelInfo, l)

	l, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, pterm.LogLevelDebug, l)

	_, err = ParseLevel("chatty")
	assert.True(t, errors.Is(err, errors.Configuration))
}

func TestFormatJobError(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	err := errors.AtStage(errors.Remote("job status", 401, []byte("Bearer 00Dxx!secret")), errors.StagePoll, "750ABC")
	out := FormatJobError(err)
	assert.Contains(t, out, "Lost track of the job")
	assert.Contains(t, out, "HTTP 401")
	assert.Contains(t, out, "bulkctl login")
	assert.Contains(t, out, "bulkctl jobs status 750ABC")
	assert.NotContains(t, out, "secret")
}

func TestFormatJobErrorWithoutJob(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	out := FormatJobError(errors.AtStage(errors.New(errors.Configuration, "batch size must be positive"), errors.StageValidate, ""))
	assert.Contains(t, out, "Request rejected")
	assert.NotContains(t, out, "bulkctl jobs")

	out = FormatJobError(fmt.Errorf("plain"))
	assert.Contains(t, out, "Command failed")
	assert.Equal(t, "", FormatJobError(nil))
}

func TestPresentError(t *testing.T) {
	assert.Equal(t, "connect: dial postgres://*:*@db", PresentError("connect", fmt.Errorf("dial postgres://u:p@db")))
	assert.Empty(t, PresentError("x", nil))
}
