// Package profile loads board descriptions of SX1262 shield variants from
// YAML, the way a devicetree overlay describes the wiring on an RTOS build.
package profile

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/cdshield/lora/shield"
	"github.com/cdshield/lora/sx126x"
)

// Profile describes how an SX1262 is wired on a board.
type Profile struct {
	Name string `yaml:"name"`
	// DIO2TxEnable is a pointer so an absent key keeps the shield default.
	DIO2TxEnable *bool  `yaml:"dio2_tx_enable"`
	Regulator    string `yaml:"regulator"`
	// OCPMilliamps must be a multiple of 2.5mA. Zero is a valid limit.
	OCPMilliamps *float64 `yaml:"ocp_ma"`
	TCXO         struct {
		Enabled   bool    `yaml:"enabled"`
		Voltage   float64 `yaml:"voltage"`
		StartupUs int64   `yaml:"startup_us"`
	} `yaml:"tcxo"`
}

const (
	DefaultName      = "cd-sx1262-shield"
	RegulatorDCDC    = "dcdc"
	RegulatorLDO     = "ldo"
	defaultOCP       = 140
	defaultTCXOStart = 5000
	// maxTCXOStartup is the longest delay SetDIO3AsTCXOCtrl's 24 bit field holds.
	maxTCXOStartup = sx126x.RTCStep * (1<<24 - 1)
)

var (
	errBadRegulator = errors.New("regulator must be dcdc or ldo")
	errOCPRange     = errors.New("ocp_ma out of range")
	errOCPStep      = errors.New("ocp_ma must be a multiple of 2.5mA")
	errTCXOVoltage  = errors.New("unsupported TCXO voltage")
	errTCXOStartup  = errors.New("TCXO startup time out of range")
)

// Default returns the profile of the stock shield.
func Default() *Profile {
	p := &Profile{}
	p.setDefaults()
	return p
}

// Load reads a profile from a YAML file, fills unset fields with the stock
// shield values and validates it.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return Parse(data)
}

// Parse is Load for in-memory YAML.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	p.setDefaults()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", p.Name, err)
	}
	return &p, nil
}

func (p *Profile) setDefaults() {
	if p.Name == "" {
		p.Name = DefaultName
	}
	if p.DIO2TxEnable == nil {
		enable := true
		p.DIO2TxEnable = &enable
	}
	if p.Regulator == "" {
		p.Regulator = RegulatorDCDC
	}
	p.Regulator = strings.ToLower(p.Regulator)
	if p.OCPMilliamps == nil {
		ocp := float64(defaultOCP)
		p.OCPMilliamps = &ocp
	}
	if p.TCXO.Enabled && p.TCXO.StartupUs == 0 {
		p.TCXO.StartupUs = defaultTCXOStart
	}
}

// Validate checks the profile describes something the chip can do.
func (p *Profile) Validate() error {
	if _, err := p.regulatorMode(); err != nil {
		return err
	}
	if _, err := p.ocp(); err != nil {
		return err
	}
	if !p.TCXO.Enabled {
		return nil
	}
	if _, err := p.tcxoVoltage(); err != nil {
		return err
	}
	if p.TCXO.StartupUs < 0 || p.TCXO.StartupUs > int64(maxTCXOStartup/time.Microsecond) {
		return fmt.Errorf("%w: %dus", errTCXOStartup, p.TCXO.StartupUs)
	}
	return nil
}

func (p *Profile) regulatorMode() (sx126x.RegulatorMode, error) {
	switch p.Regulator {
	case RegulatorDCDC:
		return sx126x.RegulatorDCDC, nil
	case RegulatorLDO:
		return sx126x.RegulatorLDO, nil
	}
	return 0, fmt.Errorf("%w: got %q", errBadRegulator, p.Regulator)
}

// ocp returns the over current limit. An unset limit is the stock one.
func (p *Profile) ocp() (sx126x.OCP, error) {
	if p.OCPMilliamps == nil {
		return sx126x.OCPDefaultSX1262, nil
	}
	mA := *p.OCPMilliamps
	if !(mA >= 0 && mA <= sx126x.OCPMax.Milliamps()) {
		return 0, fmt.Errorf("%w: %vmA, max %s", errOCPRange, mA, sx126x.OCPMax)
	}
	ocp := sx126x.OCPFromMilliamps(mA)
	if ocp.Milliamps() != mA {
		return 0, fmt.Errorf("%w: got %vmA, nearest below is %s", errOCPStep, mA, ocp)
	}
	return ocp, nil
}

func (p *Profile) tcxoVoltage() (sx126x.TCXOVoltage, error) {
	mv := math.Round(p.TCXO.Voltage * 1000)
	if mv > 0 && mv <= math.MaxUint16 {
		if v, ok := sx126x.TCXOVoltageFromMillivolts(uint16(mv)); ok {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %vV", errTCXOVoltage, p.TCXO.Voltage)
}

// Shield builds the board support package the profile describes. The profile
// is validated first. logger may be nil.
func (p *Profile) Shield(logger *slog.Logger) (*shield.Shield, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", p.Name, err)
	}
	reg, err := p.regulatorMode()
	if err != nil {
		return nil, err
	}
	ocp, err := p.ocp()
	if err != nil {
		return nil, err
	}
	opts := []shield.Option{
		shield.WithRegulator(reg),
		shield.WithOCP(ocp),
	}
	if p.DIO2TxEnable != nil {
		opts = append(opts, shield.WithDIO2TxEnable(*p.DIO2TxEnable))
	}
	if p.TCXO.Enabled {
		v, err := p.tcxoVoltage()
		if err != nil {
			return nil, err
		}
		startup := time.Duration(p.TCXO.StartupUs) * time.Microsecond
		opts = append(opts, shield.WithTCXO(v, sx126x.RTCTicks(startup)))
	}
	if logger != nil {
		opts = append(opts, shield.WithLogger(logger.With(slog.String("board", p.Name))))
	}
	return shield.New(opts...), nil
}
