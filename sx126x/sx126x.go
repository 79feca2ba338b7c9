/*
Package sx126x implements the command layer of the SX126x LoRa transceiver
family (SX1261, SX1262, SX1268) needed to bring a chip up on a given board.

Unlike the SX127x the SX126x is not register mapped. It is driven by opcodes
sent over SPI, each followed by its parameters. After every command the chip
raises BUSY while it processes it and no new command may be issued until BUSY
is low again:

	NSS   ‾‾\__________________/‾‾‾‾‾‾‾‾‾‾‾‾‾‾‾‾‾‾‾‾‾
	MOSI     | opcode | params |
	BUSY  ______________________/‾‾‾‾‾‾‾‾‾‾\___________
	                             processing  ready

Everything that depends on how the chip is wired on a board (regulator, RF
switch, TCXO, PA tables, OCP) is supplied by a BoardSupport implementation.
*/
package sx126x

import (
	"encoding/binary"
	"errors"
	"runtime"
	"time"

	"github.com/cdshield/lora"
)

// PinOutput is a function that sets the logic-level of a pin to high (true)
// or low (false). It is used to abstract a GPIO pin interface.
type PinOutput func(level bool)

// PinInput is a function that reads the logic-level of a pin.
type PinInput func() (level bool)

type SPI interface {
	Transfer(w byte) (byte, error)
	Tx(writeBuffer, readBuffer []byte) error
}

// Device is an SX126x transceiver. It is not safe for concurrent use.
type Device struct {
	bus  SPI
	cs   PinOutput
	rst  PinOutput
	busy PinInput
	bsp  BoardSupport
	// BusyTimeout bounds the wait for BUSY to go low before each command.
	BusyTimeout time.Duration
	buf         [8]byte
	rbuf        [8]byte
}

const (
	defaultBusyTimeout = 50 * time.Millisecond
	// busySettle is waited in place of polling when no BUSY pin is wired.
	busySettle = 2 * time.Millisecond
)

// NewDevice returns a Device on bus. busy may be nil, in which case a fixed
// delay is waited before every command.
func NewDevice(bus SPI, cs, reset PinOutput, busy PinInput) *Device {
	d := Device{bus: bus, cs: cs, rst: reset, busy: busy, BusyTimeout: defaultBusyTimeout}
	return &d
}

var (
	ErrNotDetected    = errors.New("sx126x not detected")
	ErrBusyTimeout    = errors.New("sx126x busy timeout")
	errNoBoard        = errors.New("no board support configured, call ApplyBoard first")
	errTxPowerRange   = errors.New("configured tx power out of range for device")
	errBadDeviceSel   = errors.New("bad PA device selection")
	errBadRampTime    = errors.New("bad ramp time")
	errBadTCXOVoltage = errors.New("bad TCXO voltage")
	errTCXODelay      = errors.New("TCXO startup delay exceeds 24 bits")
	errBadRegulator   = errors.New("bad regulator mode")
	errOCPRange       = errors.New("OCP level out of range")
	errOCPMismatch    = errors.New("OCP register readback mismatch")
	errParamsTooLong  = errors.New("command parameters too long")
)

// Reset pulses the reset line and waits for the chip to come out of reset.
func (d *Device) Reset() {
	if d.rst == nil {
		return
	}
	d.rst(false)
	time.Sleep(time.Millisecond) // Datasheet asks for at least 100us.
	d.rst(true)
	time.Sleep(5 * time.Millisecond)
}

// IsConnected reads the status byte and checks it reports a valid chip mode.
// A floating or shorted MISO line reads as 0x00 or 0xFF, neither of which
// holds a valid mode.
func (d *Device) IsConnected() bool {
	status, err := d.Status()
	if err != nil {
		return false
	}
	mode := status.ChipMode()
	return mode >= ModeStandbyRC && mode <= ModeTx
}

// Status issues GetStatus.
func (d *Device) Status() (Status, error) {
	err := d.read(opGetStatus, 1)
	return Status(d.rbuf[1]), err
}

// SetStandby puts the chip in standby running off the RC oscillator, or the
// crystal oscillator if xosc is true.
func (d *Device) SetStandby(xosc bool) error {
	return d.command(opSetStandby, b2u8(xosc))
}

// ApplyBoard programs the board dependent configuration of bsp into the chip
// and keeps bsp for later SetTxPower calls. The chip must be in STDBY_RC.
func (d *Device) ApplyBoard(bsp BoardSupport) (err error) {
	err = d.SetRegulatorMode(bsp.RegulatorMode())
	if err != nil {
		return err
	}
	err = d.SetDIO2AsRFSwitch(bsp.DIO2IsRFSwitch())
	if err != nil {
		return err
	}
	xosc := bsp.XOSCConfig()
	if xosc.TCXORadioControlled {
		err = d.SetDIO3AsTCXOCtrl(xosc.SupplyVoltage, xosc.StartupTicks)
		if err != nil {
			return err
		}
		// The chip flags XOSC_START_ERR at power up when a TCXO is fitted.
		err = d.ClearDeviceErrors()
		if err != nil {
			return err
		}
	}
	err = d.SetOCP(bsp.OCP())
	if err != nil {
		return err
	}
	d.bsp = bsp
	return nil
}

// SetTxPower asks the board for the Tx configuration matching freq and
// systemPower and writes it to the chip. It returns the configuration used.
func (d *Device) SetTxPower(freq lora.Frequency, systemPower int8) (TxConfigOutput, error) {
	if d.bsp == nil {
		return TxConfigOutput{}, errNoBoard
	}
	cfg := d.bsp.TxConfig(TxConfigInput{Frequency: freq, SystemOutputPower: systemPower})
	err := d.SetPAConfig(cfg.PA)
	if err != nil {
		return cfg, err
	}
	err = d.SetTxParams(cfg.ConfiguredPower, cfg.RampTime, cfg.PA.DeviceSel)
	if err != nil {
		return cfg, err
	}
	// SetPaConfig resets the OCP level to the device default.
	return cfg, d.SetOCP(d.bsp.OCP())
}

// SetRegulatorMode selects the LDO or DC-DC regulator.
func (d *Device) SetRegulatorMode(mode RegulatorMode) error {
	if mode > RegulatorDCDC {
		return errBadRegulator
	}
	return d.command(opSetRegulatorMode, byte(mode))
}

// SetDIO2AsRFSwitch makes DIO2 follow the Tx state to drive an RF switch.
func (d *Device) SetDIO2AsRFSwitch(enable bool) error {
	return d.command(opSetDIO2AsRfSwitchCtrl, b2u8(enable))
}

// SetDIO3AsTCXOCtrl powers a TCXO from DIO3 at voltage v. startupTicks, in
// steps of RTCStep, is how long the chip waits for the TCXO to settle.
func (d *Device) SetDIO3AsTCXOCtrl(v TCXOVoltage, startupTicks uint32) error {
	if v > TCXO3_3V {
		return errBadTCXOVoltage
	}
	if startupTicks > maxRTCTicks {
		return errTCXODelay
	}
	var delay [4]byte
	binary.BigEndian.PutUint32(delay[:], startupTicks)
	return d.command(opSetDIO3AsTCXOCtrl, byte(v), delay[1], delay[2], delay[3])
}

// SetPAConfig issues SetPaConfig.
func (d *Device) SetPAConfig(pa PAConfig) error {
	if pa.DeviceSel > DeviceSelSX1261 {
		return errBadDeviceSel
	}
	return d.command(opSetPaConfig, pa.DutyCycle, pa.HPMax, pa.DeviceSel, pa.PALUT)
}

// SetTxParams issues SetTxParams. The valid power range depends on the PA
// selected by deviceSel: -9..22dBm for the SX1262 high power PA and
// -17..14dBm for the SX1261 low power PA.
func (d *Device) SetTxParams(power int8, ramp RampTime, deviceSel uint8) error {
	switch {
	case ramp > Ramp3400us:
		return errBadRampTime
	case deviceSel == DeviceSelSX1262 && (power < -9 || power > 22):
		return errTxPowerRange
	case deviceSel == DeviceSelSX1261 && (power < -17 || power > 14):
		return errTxPowerRange
	case deviceSel > DeviceSelSX1261:
		return errBadDeviceSel
	}
	return d.command(opSetTxParams, byte(power), byte(ramp))
}

// SetOCP writes the over current protection level and reads it back.
func (d *Device) SetOCP(ocp OCP) error {
	if ocp > OCPMax {
		return errOCPRange
	}
	err := d.writeRegister(regOCPConfiguration, byte(ocp))
	if err != nil {
		return err
	}
	got, err := d.OCP()
	if err != nil {
		return err
	}
	if got != ocp {
		return errOCPMismatch
	}
	return nil
}

// OCP reads the over current protection level.
func (d *Device) OCP() (OCP, error) {
	v, err := d.readRegister(regOCPConfiguration)
	return OCP(v), err
}

// DeviceErrors issues GetDeviceErrors and returns the OpError flags.
//   - bit 0: RC64k calibration failed
//   - bit 1: RC13M calibration failed
//   - bit 2: PLL calibration failed
//   - bit 3: ADC calibration failed
//   - bit 4: image calibration failed
//   - bit 5: XOSC failed to start
//   - bit 6: PLL failed to lock
//   - bit 8: PA ramping failed
func (d *Device) DeviceErrors() (uint16, error) {
	err := d.read(opGetDeviceErrors, 3)
	return binary.BigEndian.Uint16(d.rbuf[2:4]), err
}

// ClearDeviceErrors clears all OpError flags.
func (d *Device) ClearDeviceErrors() error {
	return d.command(opClearDeviceErrors, 0, 0)
}

func (d *Device) writeRegister(addr uint16, value byte) error {
	return d.command(opWriteRegister, byte(addr>>8), byte(addr), value)
}

func (d *Device) readRegister(addr uint16) (byte, error) {
	err := d.read(opReadRegister, 4, byte(addr>>8), byte(addr))
	// Response: status on each byte up to and including the NOP after the address.
	return d.rbuf[4], err
}

// command writes op followed by params.
func (d *Device) command(op opcode, params ...byte) error {
	if len(params) >= len(d.buf) {
		return errParamsTooLong
	}
	d.buf[0] = byte(op)
	n := 1 + copy(d.buf[1:], params)
	return d.tx(d.buf[:n], nil)
}

// read writes op and params and clocks NOPs until n bytes follow the opcode.
// The full response, opcode position included, is left in d.rbuf.
func (d *Device) read(op opcode, n int, params ...byte) error {
	if n >= len(d.buf) || len(params) > n {
		return errParamsTooLong
	}
	d.buf[0] = byte(op)
	copy(d.buf[1:], params)
	for i := 1 + len(params); i <= n; i++ {
		d.buf[i] = 0 // NOP
	}
	d.rbuf = [len(d.rbuf)]byte{}
	return d.tx(d.buf[:n+1], d.rbuf[:n+1])
}

func (d *Device) tx(w, r []byte) error {
	err := d.waitBusy()
	if err != nil {
		return err
	}
	d.csEnable(true)
	err = d.bus.Tx(w, r)
	d.csEnable(false)
	return err
}

func (d *Device) waitBusy() error {
	if d.busy == nil {
		time.Sleep(busySettle)
		return nil
	}
	timeout := d.BusyTimeout
	if timeout <= 0 {
		timeout = defaultBusyTimeout
	}
	deadline := time.Now().Add(timeout)
	for d.busy() {
		if time.Now().After(deadline) {
			return ErrBusyTimeout
		}
		runtime.Gosched() // Yield to scheduler.
	}
	return nil
}

func (d *Device) csEnable(b bool) {
	d.cs(!b)
}

func b2u8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
