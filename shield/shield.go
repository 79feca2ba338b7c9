// Package shield is the board support package of the Connected Development
// SX1262 shield. It tells an sx126x.Device how the chip is wired on the board:
// DC-DC regulator, DIO2 driving the RF switch, no TCXO, 140mA over current
// protection and a PA table for the sub-GHz band.
package shield

import (
	"context"
	"log/slog"

	"github.com/cdshield/lora/sx126x"
)

const (
	// modemTxOffset is the loss in dB between chip output and antenna connector.
	modemTxOffset int8 = 0
	rampTime           = sx126x.Ramp40us
	// From SX1261-2 Data Sheet, Table 5-2.
	defaultOCP = sx126x.OCPDefaultSX1262
)

// Shield implements sx126x.BoardSupport. The zero value is not usable, use New.
type Shield struct {
	dio2TxEnable bool
	regulator    sx126x.RegulatorMode
	xosc         sx126x.XOSCConfig
	ocp          sx126x.OCP
	log          *slog.Logger
}

var _ sx126x.BoardSupport = (*Shield)(nil)

// Option customizes a Shield for board variants.
type Option func(*Shield)

// WithDIO2TxEnable sets whether DIO2 drives the RF switch. Defaults to true.
func WithDIO2TxEnable(enable bool) Option {
	return func(s *Shield) { s.dio2TxEnable = enable }
}

// WithRegulator overrides the DC-DC regulator default, for boards without the inductor.
func WithRegulator(mode sx126x.RegulatorMode) Option {
	return func(s *Shield) { s.regulator = mode }
}

// WithTCXO declares a TCXO powered from DIO3.
func WithTCXO(v sx126x.TCXOVoltage, startupTicks uint32) Option {
	return func(s *Shield) {
		s.xosc = sx126x.XOSCConfig{TCXORadioControlled: true, SupplyVoltage: v, StartupTicks: startupTicks}
	}
}

// WithOCP overrides the over current protection level.
func WithOCP(ocp sx126x.OCP) Option {
	return func(s *Shield) { s.ocp = ocp }
}

// WithLogger logs every query at debug level to l.
func WithLogger(l *slog.Logger) Option {
	return func(s *Shield) { s.log = l }
}

func New(opts ...Option) *Shield {
	s := Shield{
		dio2TxEnable: true,
		regulator:    sx126x.RegulatorDCDC,
		ocp:          defaultOCP,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &s
}

func (s *Shield) RegulatorMode() sx126x.RegulatorMode {
	s.debug("regulator", slog.String("RegMode", s.regulator.String()))
	return s.regulator
}

func (s *Shield) DIO2IsRFSwitch() bool {
	s.debug("rf switch", slog.Bool("DIO2TxEnable", s.dio2TxEnable))
	return s.dio2TxEnable
}

// TxConfig resolves the PA table row for the requested power. ExpectedPower
// echoes the request even when it falls outside the table and the default
// row is configured instead.
func (s *Shield) TxConfig(in sx126x.TxConfigInput) sx126x.TxConfigOutput {
	expected := in.SystemOutputPower + modemTxOffset
	pwr := Lookup(in.Frequency, expected)
	out := sx126x.TxConfigOutput{
		PA:              pwr.PA,
		RampTime:        rampTime,
		ConfiguredPower: pwr.Power,
		ExpectedPower:   expected,
	}
	s.debug("tx config",
		slog.String("Frequency", in.Frequency.String()),
		slog.Int("ExpectedOutPwr", int(out.ExpectedPower)),
		slog.Int("ConfiguredOutPower", int(out.ConfiguredPower)),
		slog.Int("PaDutyCycle", int(out.PA.DutyCycle)),
		slog.Int("hpMax", int(out.PA.HPMax)),
	)
	return out
}

// XOSCConfig returns the zero value unless a TCXO was declared with WithTCXO.
func (s *Shield) XOSCConfig() sx126x.XOSCConfig {
	return s.xosc
}

func (s *Shield) OCP() sx126x.OCP {
	return s.ocp
}

func (s *Shield) debug(msg string, attrs ...slog.Attr) {
	if s.log == nil {
		return
	}
	s.log.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}
