package sx126x

import (
	"math"
	"strconv"
	"time"

	"github.com/cdshield/lora"
)

// BoardSupport is implemented by board support packages. It supplies the
// values that depend on how the SX126x is wired on a given board rather than
// on the chip itself. The Device queries it synchronously each time it
// programs the chip, so implementations must be cheap and must not block.
type BoardSupport interface {
	// RegulatorMode returns the power regulator the board is designed for.
	RegulatorMode() RegulatorMode
	// DIO2IsRFSwitch reports whether DIO2 drives the board's RF switch.
	DIO2IsRFSwitch() bool
	// TxConfig returns the PA configuration, output power and ramp time to
	// program for the requested frequency and system output power.
	TxConfig(in TxConfigInput) TxConfigOutput
	// XOSCConfig returns the oscillator setup. Boards without a TCXO return
	// the zero value.
	XOSCConfig() XOSCConfig
	// OCP returns the over current protection level.
	OCP() OCP
}

// TxConfigInput is what the driver asks a board for when preparing a transmission.
type TxConfigInput struct {
	Frequency lora.Frequency
	// SystemOutputPower is the power in dBm wanted at the antenna connector.
	SystemOutputPower int8
}

// TxConfigOutput is the chip configuration a board returns for a TxConfigInput.
type TxConfigOutput struct {
	PA       PAConfig
	RampTime RampTime
	// ConfiguredPower is the power parameter of SetTxParams, in dBm. Together
	// with PA it yields ExpectedPower at the chip output.
	ConfiguredPower int8
	// ExpectedPower is the chip output power in dBm the board expects.
	ExpectedPower int8
}

// XOSCConfig describes the board's oscillator.
type XOSCConfig struct {
	// TCXORadioControlled is set when a TCXO is supplied through DIO3.
	// When false the other fields are meaningless.
	TCXORadioControlled bool
	SupplyVoltage       TCXOVoltage
	// StartupTicks is the TCXO startup time in steps of RTCStep.
	StartupTicks uint32
}

// RegulatorMode selects the chip's power regulator.
type RegulatorMode uint8

const (
	// RegulatorLDO uses only the linear regulator.
	RegulatorLDO RegulatorMode = 0
	// RegulatorDCDC uses the DC-DC converter, which needs the inductor fitted on the board.
	RegulatorDCDC RegulatorMode = 1
)

func (r RegulatorMode) String() string {
	switch r {
	case RegulatorLDO:
		return "LDO"
	case RegulatorDCDC:
		return "DC-DC"
	}
	return "RegulatorMode(" + strconv.Itoa(int(r)) + ")"
}

// Device selectors of SetPaConfig.
const (
	DeviceSelSX1262 uint8 = 0
	DeviceSelSX1261 uint8 = 1
)

// PAConfig holds the parameters of the SetPaConfig command. See the
// SX1261/2 datasheet, 13.1.14 SetPaConfig.
type PAConfig struct {
	// DutyCycle controls the duty cycle (conduction angle) of both PAs.
	DutyCycle uint8
	// HPMax selects the size of the SX1262 high power PA. Ignored on SX1261.
	HPMax uint8
	// DeviceSel is DeviceSelSX1262 or DeviceSelSX1261.
	DeviceSel uint8
	// PALUT is reserved and always 1.
	PALUT uint8
}

func (pa PAConfig) String() string {
	return "paDutyCycle=" + strconv.Itoa(int(pa.DutyCycle)) +
		" hpMax=" + strconv.Itoa(int(pa.HPMax)) +
		" deviceSel=" + strconv.Itoa(int(pa.DeviceSel)) +
		" paLut=" + strconv.Itoa(int(pa.PALUT))
}

// RampTime is the PA ramp up time of SetTxParams.
type RampTime uint8

const (
	Ramp10us RampTime = iota
	Ramp20us
	Ramp40us
	Ramp80us
	Ramp200us
	Ramp800us
	Ramp1700us
	Ramp3400us
)

var rampDurations = [Ramp3400us + 1]time.Duration{
	Ramp10us:   10 * time.Microsecond,
	Ramp20us:   20 * time.Microsecond,
	Ramp40us:   40 * time.Microsecond,
	Ramp80us:   80 * time.Microsecond,
	Ramp200us:  200 * time.Microsecond,
	Ramp800us:  800 * time.Microsecond,
	Ramp1700us: 1700 * time.Microsecond,
	Ramp3400us: 3400 * time.Microsecond,
}

// Duration returns the ramp time or 0 for an invalid value.
func (r RampTime) Duration() time.Duration {
	if r > Ramp3400us {
		return 0
	}
	return rampDurations[r]
}

func (r RampTime) String() string {
	if r > Ramp3400us {
		return "RampTime(" + strconv.Itoa(int(r)) + ")"
	}
	return r.Duration().String()
}

// TCXOVoltage is the supply voltage DIO3 outputs to a TCXO.
type TCXOVoltage uint8

const (
	TCXO1_6V TCXOVoltage = iota
	TCXO1_7V
	TCXO1_8V
	TCXO2_2V
	TCXO2_4V
	TCXO2_7V
	TCXO3_0V
	TCXO3_3V
)

var tcxoMillivolts = [TCXO3_3V + 1]uint16{
	TCXO1_6V: 1600,
	TCXO1_7V: 1700,
	TCXO1_8V: 1800,
	TCXO2_2V: 2200,
	TCXO2_4V: 2400,
	TCXO2_7V: 2700,
	TCXO3_0V: 3000,
	TCXO3_3V: 3300,
}

// Millivolts returns the supply voltage or 0 for an invalid value.
func (v TCXOVoltage) Millivolts() uint16 {
	if v > TCXO3_3V {
		return 0
	}
	return tcxoMillivolts[v]
}

func (v TCXOVoltage) String() string {
	mv := v.Millivolts()
	if mv == 0 {
		return "TCXOVoltage(" + strconv.Itoa(int(v)) + ")"
	}
	return strconv.FormatFloat(float64(mv)/1000, 'f', 1, 64) + "V"
}

// TCXOVoltageFromMillivolts returns the TCXOVoltage that supplies exactly mv
// millivolts. ok is false if the chip can not output that voltage.
func TCXOVoltageFromMillivolts(mv uint16) (v TCXOVoltage, ok bool) {
	for i, got := range tcxoMillivolts {
		if got == mv {
			return TCXOVoltage(i), true
		}
	}
	return 0, false
}

// RTCStep is the period of the 64kHz RTC used for timeouts and the TCXO startup delay.
const RTCStep = 15625 * time.Nanosecond

// maxRTCTicks is the largest 24 bit delay.
const maxRTCTicks = 1<<24 - 1

// RTCTicks converts d to RTC steps, rounding up so the delay is never shorter than d.
// Durations beyond the 24 bit limit saturate.
func RTCTicks(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	ticks := (d + RTCStep - 1) / RTCStep
	if ticks > maxRTCTicks {
		return maxRTCTicks
	}
	return uint32(ticks)
}

// OCP is an over current protection level in steps of 2.5mA.
type OCP uint8

const (
	ocpStepMicroamps = 2500
	// OCPMax is the highest level the OCP register holds.
	OCPMax OCP = 0x3F
	// OCPDefaultSX1262 is the SX1262 reset value, 140mA.
	OCPDefaultSX1262 OCP = 0x38
	// OCPDefaultSX1261 is the SX1261 reset value, 60mA.
	OCPDefaultSX1261 OCP = 0x18
)

// Milliamps returns the current limit.
func (o OCP) Milliamps() float64 {
	return float64(o) * ocpStepMicroamps / 1000
}

func (o OCP) String() string {
	return strconv.FormatFloat(o.Milliamps(), 'f', -1, 64) + "mA"
}

// OCPFromMilliamps returns the highest OCP level not exceeding mA.
// Values outside the register's range are clamped. NaN maps to the SX1262
// reset value.
func OCPFromMilliamps(mA float64) OCP {
	switch {
	case math.IsNaN(mA):
		return OCPDefaultSX1262
	case mA <= 0:
		return 0
	}
	steps := int(mA * 1000 / ocpStepMicroamps)
	if steps > int(OCPMax) {
		return OCPMax
	}
	return OCP(steps)
}
