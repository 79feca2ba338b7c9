package shield

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdshield/lora"
	"github.com/cdshield/lora/sx126x"
)

// documented is the PA table as specified for the shield, one entry per dBm
// from MinPower: {configured power, hpMax, paDutyCycle}.
var documented = [...][3]int{
	{2, 1, 1}, {5, 1, 0}, {5, 1, 1}, {8, 1, 0}, {3, 2, 0}, {9, 1, 0}, {10, 1, 0}, {11, 1, 0},
	{13, 1, 1}, {19, 1, 1}, {16, 1, 1}, {20, 1, 0}, {18, 1, 3}, {21, 1, 0}, {16, 2, 0}, {22, 1, 0},
	{22, 1, 1}, {22, 1, 2}, {22, 1, 3}, {22, 1, 4}, {22, 2, 0}, {22, 2, 1}, {22, 2, 2}, {22, 2, 3},
	{22, 3, 1}, {22, 3, 2}, {22, 5, 0}, {22, 5, 1}, {22, 5, 2}, {22, 6, 3}, {22, 6, 4}, {22, 7, 4},
}

func expectedRow(dBm int8) PowerConfig {
	d := documented[int(dBm)-int(MinPower)]
	return PowerConfig{
		Power: int8(d[0]),
		PA:    sx126x.PAConfig{HPMax: uint8(d[1]), DutyCycle: uint8(d[2]), DeviceSel: sx126x.DeviceSelSX1262, PALUT: 1},
	}
}

func TestLookupInRange(t *testing.T) {
	require.Len(t, documented, int(MaxPower-MinPower)+1)
	for _, freq := range []lora.Frequency{SubGHz.Min, lora.Freq169_4M, lora.Freq433_0M, lora.Freq868_1M, lora.Freq915_0M, SubGHz.Max} {
		for dBm := MinPower; dBm <= MaxPower; dBm++ {
			got := Lookup(freq, dBm)
			if diff := cmp.Diff(expectedRow(dBm), got); diff != "" {
				t.Errorf("freq=%s power=%ddBm mismatch (-want +got):\n%s", freq, dBm, diff)
			}
		}
	}
}

func TestLookupFallback(t *testing.T) {
	def := expectedRow(DefaultPower)
	assert.Equal(t, int8(22), def.Power)
	assert.Equal(t, uint8(1), def.PA.HPMax)
	assert.Equal(t, uint8(0), def.PA.DutyCycle)

	for dBm := int8(math.MinInt8); dBm < MinPower; dBm++ {
		assert.Equal(t, def, Lookup(lora.Freq868_1M, dBm), "power=%d", dBm)
	}
	for dBm := int(MaxPower) + 1; dBm <= math.MaxInt8; dBm++ {
		assert.Equal(t, def, Lookup(lora.Freq868_1M, int8(dBm)), "power=%d", dBm)
	}
	outOfBand := []lora.Frequency{0, -lora.Freq868_1M, SubGHz.Min - 1, SubGHz.Max + 1, 2400 * lora.MegaHertz, math.MaxInt64}
	for _, freq := range outOfBand {
		for dBm := MinPower; dBm <= MaxPower; dBm++ {
			assert.Equal(t, def, Lookup(freq, dBm), "freq=%s power=%d", freq, dBm)
		}
	}
}

func TestTxConfig(t *testing.T) {
	s := New()
	testCases := []struct {
		desc   string
		in     sx126x.TxConfigInput
		expect sx126x.TxConfigOutput
	}{
		{
			desc: "14dBm EU868",
			in:   sx126x.TxConfigInput{Frequency: lora.Freq868_1M, SystemOutputPower: 14},
			expect: sx126x.TxConfigOutput{
				PA:              sx126x.PAConfig{DutyCycle: 3, HPMax: 2, PALUT: 1},
				RampTime:        sx126x.Ramp40us,
				ConfiguredPower: 22,
				ExpectedPower:   14,
			},
		},
		{
			desc: "minimum power",
			in:   sx126x.TxConfigInput{Frequency: lora.Freq433_0M, SystemOutputPower: -9},
			expect: sx126x.TxConfigOutput{
				PA:              sx126x.PAConfig{DutyCycle: 1, HPMax: 1, PALUT: 1},
				RampTime:        sx126x.Ramp40us,
				ConfiguredPower: 2,
				ExpectedPower:   -9,
			},
		},
		{
			desc: "too much power falls back but keeps expected",
			in:   sx126x.TxConfigInput{Frequency: lora.Freq915_0M, SystemOutputPower: 30},
			expect: sx126x.TxConfigOutput{
				PA:              sx126x.PAConfig{HPMax: 1, PALUT: 1},
				RampTime:        sx126x.Ramp40us,
				ConfiguredPower: 22,
				ExpectedPower:   30,
			},
		},
		{
			desc: "2.4GHz falls back",
			in:   sx126x.TxConfigInput{Frequency: 2400 * lora.MegaHertz, SystemOutputPower: 0},
			expect: sx126x.TxConfigOutput{
				PA:              sx126x.PAConfig{HPMax: 1, PALUT: 1},
				RampTime:        sx126x.Ramp40us,
				ConfiguredPower: 22,
				ExpectedPower:   0,
			},
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			got := s.TxConfig(tC.in)
			if diff := cmp.Diff(tC.expect, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	s := New()
	assert.Equal(t, sx126x.RegulatorDCDC, s.RegulatorMode())
	assert.True(t, s.DIO2IsRFSwitch())
	assert.Equal(t, sx126x.XOSCConfig{}, s.XOSCConfig())
	assert.Equal(t, sx126x.OCP(0x38), s.OCP())
}

func TestOptions(t *testing.T) {
	s := New(
		WithDIO2TxEnable(false),
		WithRegulator(sx126x.RegulatorLDO),
		WithTCXO(sx126x.TCXO1_8V, 320),
		WithOCP(sx126x.OCPFromMilliamps(100)),
	)
	assert.Equal(t, sx126x.RegulatorLDO, s.RegulatorMode())
	assert.False(t, s.DIO2IsRFSwitch())
	assert.Equal(t, sx126x.XOSCConfig{TCXORadioControlled: true, SupplyVoltage: sx126x.TCXO1_8V, StartupTicks: 320}, s.XOSCConfig())
	assert.Equal(t, sx126x.OCP(40), s.OCP())
	// Board options never change the PA table.
	assert.Equal(t, New().TxConfig(sx126x.TxConfigInput{Frequency: lora.Freq868_1M, SystemOutputPower: 10}),
		s.TxConfig(sx126x.TxConfigInput{Frequency: lora.Freq868_1M, SystemOutputPower: 10}))
}

func TestDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := New(WithLogger(l))
	s.RegulatorMode()
	s.DIO2IsRFSwitch()
	s.TxConfig(sx126x.TxConfigInput{Frequency: lora.Freq868_1M, SystemOutputPower: 22})
	out := buf.String()
	assert.Contains(t, out, "RegMode=DC-DC")
	assert.Contains(t, out, "DIO2TxEnable=true")
	assert.Contains(t, out, "Frequency=868.1MHz")
	assert.Contains(t, out, "ExpectedOutPwr=22")
	assert.Contains(t, out, "hpMax=7")

	buf.Reset()
	quiet := New(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	quiet.TxConfig(sx126x.TxConfigInput{Frequency: lora.Freq868_1M})
	assert.Empty(t, buf.String(), "debug records below the handler level")
}
