// Package buspirate drives a Bus Pirate in binary SPI mode so a host can talk
// to an SX126x over USB. The Bus Pirate AUX pin is used as the radio's reset
// line; BUSY is not wired so sx126x.Device falls back to a fixed delay.
package buspirate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Binary mode commands.
const (
	cmdBinaryReset = 0x00 // Enter/return to raw bitbang mode.
	cmdEnterSPI    = 0x01
	cmdCSLow       = 0x02
	cmdCSHigh      = 0x03
	cmdHardReset   = 0x0F
	cmdBulk        = 0x10 // | number of bytes - 1.
	cmdPeripherals = 0x40 // | power<<3 | pullups<<2 | aux<<1 | cs.
	cmdSpeed       = 0x60 // | speed.
	cmdSPIConfig   = 0x80 // | hiz<<3 | ckp<<2 | cke<<1 | smp.

	ack        = 0x01
	maxBulk    = 16
	maxRetries = 20

	periphPower = 1 << 3
	periphAUX   = 1 << 1
	periphCS    = 1 << 0
)

// Speed is the SPI clock.
type Speed uint8

const (
	Speed30k Speed = iota
	Speed125k
	Speed250k
	Speed1M
	Speed2M
	Speed2_6M
	Speed4M
	Speed8M
)

var (
	bbioID = []byte("BBIO1")
	spiID  = []byte("SPI1")

	errNoBinaryMode = errors.New("bus pirate did not enter binary mode")
	errNoSPIMode    = errors.New("bus pirate did not enter SPI mode")
	errNoAck        = errors.New("bus pirate did not acknowledge command")
	errReadTimeout  = errors.New("bus pirate read timeout")
)

// Bridge is an SPI master on a Bus Pirate. It satisfies the SPI interface of
// the chip drivers; CS and Reset are usable as their pin functions.
type Bridge struct {
	rw     io.ReadWriter
	closer io.Closer
	periph byte
	// err holds the first failure of a pin function, which can not return it.
	err error
	buf [maxBulk]byte
}

// Open opens the Bus Pirate on a serial port and puts it in SPI mode 0 at speed
// with 3.3V push-pull outputs, power supply on, CS and reset high.
func Open(portName string, speed Speed) (*Bridge, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}
	err = port.SetReadTimeout(50 * time.Millisecond)
	if err != nil {
		port.Close()
		return nil, err
	}
	b, err := New(port, speed)
	if err != nil {
		port.Close()
		return nil, err
	}
	b.closer = port
	return b, nil
}

// New configures a Bus Pirate reachable through rw. Reads from rw must return
// (0, nil) or an error on timeout rather than block forever.
func New(rw io.ReadWriter, speed Speed) (*Bridge, error) {
	b := &Bridge{rw: rw}
	err := b.enterBinary()
	if err != nil {
		return nil, err
	}
	if err = b.write(cmdEnterSPI); err != nil {
		return nil, err
	}
	got, err := b.read(len(spiID))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(got, spiID) {
		return nil, errNoSPIMode
	}
	// Mode 0: clock idle low, sample on the active edge. 3.3V outputs.
	const hiz, ckp, cke, smp = 1, 0, 1, 0
	if err = b.command(cmdSPIConfig | hiz<<3 | ckp<<2 | cke<<1 | smp); err != nil {
		return nil, err
	}
	if err = b.command(cmdSpeed | byte(speed&0b111)); err != nil {
		return nil, err
	}
	b.periph = periphPower | periphAUX | periphCS
	if err = b.command(cmdPeripherals | b.periph); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bridge) enterBinary() error {
	for i := 0; i < maxRetries; i++ {
		if err := b.write(cmdBinaryReset); err != nil {
			return err
		}
		got, err := b.read(len(bbioID))
		if err == nil && bytes.Equal(got, bbioID) {
			return nil
		}
	}
	return errNoBinaryMode
}

// Tx clocks out w while reading into r. Either may be nil; the shorter one is
// padded with zeros or discarded respectively.
func (b *Bridge) Tx(w, r []byte) error {
	if b.err != nil {
		return b.err
	}
	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	for off := 0; off < n; off += maxBulk {
		chunk := n - off
		if chunk > maxBulk {
			chunk = maxBulk
		}
		out := b.buf[:chunk]
		for i := range out {
			out[i] = 0
			if off+i < len(w) {
				out[i] = w[off+i]
			}
		}
		err := b.command(cmdBulk | byte(chunk-1))
		if err != nil {
			return err
		}
		err = b.write(out...)
		if err != nil {
			return err
		}
		in, err := b.read(chunk)
		if err != nil {
			return err
		}
		if off < len(r) {
			copy(r[off:], in)
		}
	}
	return nil
}

// Transfer clocks out a single byte and returns the byte read.
func (b *Bridge) Transfer(w byte) (byte, error) {
	var r [1]byte
	err := b.Tx([]byte{w}, r[:])
	return r[0], err
}

// CS sets chip select. Failures are reported by the next Tx.
func (b *Bridge) CS(level bool) {
	cmd := byte(cmdCSLow)
	if level {
		cmd = cmdCSHigh
	}
	b.keep(b.command(cmd))
}

// Reset sets the AUX pin wired to the radio's reset line. Failures are reported by the next Tx.
func (b *Bridge) Reset(level bool) {
	if level {
		b.periph |= periphAUX
	} else {
		b.periph &^= periphAUX
	}
	b.keep(b.command(cmdPeripherals | b.periph))
}

// Err returns the first error hit by CS or Reset.
func (b *Bridge) Err() error { return b.err }

// Close returns the Bus Pirate to its terminal and closes the port if Open created it.
func (b *Bridge) Close() error {
	err := b.write(cmdBinaryReset)
	if err == nil {
		_, err = b.read(len(bbioID))
	}
	if err == nil {
		err = b.command(cmdHardReset)
	}
	if b.closer != nil {
		if cerr := b.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (b *Bridge) keep(err error) {
	if b.err == nil {
		b.err = err
	}
}

// command writes a single byte command and waits for its acknowledge.
func (b *Bridge) command(cmd byte) error {
	if err := b.write(cmd); err != nil {
		return err
	}
	got, err := b.read(1)
	if err != nil {
		return err
	}
	if got[0] != ack {
		return fmt.Errorf("%w: command 0x%02x got 0x%02x", errNoAck, cmd, got[0])
	}
	return nil
}

func (b *Bridge) write(p ...byte) error {
	_, err := b.rw.Write(p)
	return err
}

// read reads exactly n bytes, giving up after a few empty reads.
func (b *Bridge) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	got, empty := 0, 0
	for got < n {
		m, err := b.rw.Read(buf[got:])
		if err != nil {
			return buf[:got], err
		}
		if m == 0 {
			empty++
			if empty > 2 {
				return buf[:got], errReadTimeout
			}
			continue
		}
		got += m
	}
	return buf, nil
}
