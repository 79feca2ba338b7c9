package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdshield/lora"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunTxConfig(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, discardLogger(), "", lora.Freq868_1M, 14, false, "")
	require.NoError(t, err)
	assert.Equal(t, "expected=14dBm configured=22dBm paDutyCycle=3 hpMax=2 deviceSel=0 paLut=1 ramp=40µs\n", out.String())

	out.Reset()
	err = run(&out, discardLogger(), "", 2400*lora.MegaHertz, 14, false, "")
	require.NoError(t, err)
	assert.Equal(t, "expected=14dBm configured=22dBm paDutyCycle=0 hpMax=1 deviceSel=0 paLut=1 ramp=40µs\n", out.String())
}

func TestRunTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(&out, discardLogger(), "", lora.Freq915_0M, 0, true, ""))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 33)
	assert.Equal(t, []string{"dBm", "power", "hpMax", "paDutyCycle", "deviceSel", "paLut"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"-9", "2", "1", "1", "0", "1"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"22", "22", "7", "4", "0", "1"}, strings.Fields(lines[32]))

	out.Reset()
	require.NoError(t, run(&out, discardLogger(), "", 100*lora.MegaHertz, 0, true, ""))
	assert.Contains(t, out.String(), "100MHz is outside 150MHz-960MHz")
}

func TestRunProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bench\nregulator: ldo\n"), 0644))
	var logs, out bytes.Buffer
	logger := newLogger(&logs, "debug", "text")
	require.NoError(t, run(&out, logger, path, lora.Freq868_1M, -9, false, ""))
	assert.Contains(t, out.String(), "configured=2dBm")
	assert.Contains(t, logs.String(), "board=bench")
	assert.Contains(t, logs.String(), "regulator=LDO")
	assert.Contains(t, logs.String(), "ExpectedOutPwr=-9")

	require.NoError(t, os.WriteFile(path, []byte("regulator: buck\n"), 0644))
	assert.Error(t, run(&out, logger, path, lora.Freq868_1M, 0, false, ""))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestClampInt8(t *testing.T) {
	assert.Equal(t, int8(-128), clampInt8(-1000))
	assert.Equal(t, int8(127), clampInt8(1000))
	assert.Equal(t, int8(14), clampInt8(14))
}
