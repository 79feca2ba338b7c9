// Package lora holds radio-agnostic types shared by the chip drivers and
// board support packages in this module.
package lora

import "strconv"

// Frequency is a radio frequency in hertz. It is used both for carrier
// (center) frequencies and for the limits of the bands a board supports.
// The frequency programmed into a radio must match the band its front-end
// was designed for or the radio may fail to transmit or even be damaged.
type Frequency int64

func (f Frequency) Hertz() int64 { return int64(f) }

// String returns the frequency in the largest unit that keeps it readable,
// i.e. "868.1MHz" or "125kHz".
func (f Frequency) String() string {
	switch {
	case f >= GigaHertz || f <= -GigaHertz:
		return strconv.FormatFloat(float64(f)/float64(GigaHertz), 'f', -1, 64) + "GHz"
	case f >= MegaHertz || f <= -MegaHertz:
		return strconv.FormatFloat(float64(f)/float64(MegaHertz), 'f', -1, 64) + "MHz"
	case f >= KiloHertz || f <= -KiloHertz:
		return strconv.FormatFloat(float64(f)/float64(KiloHertz), 'f', -1, 64) + "kHz"
	}
	return strconv.FormatInt(int64(f), 10) + "Hz"
}

const (
	Hertz     Frequency = 1
	KiloHertz Frequency = 1000 * Hertz
	MegaHertz Frequency = 1000 * KiloHertz
	GigaHertz Frequency = 1000 * MegaHertz
)

// Common LoRa frequencies
const (
	// 433.05MHz  Low limit medical, scientific and industrial band.
	Freq433_0M = 433050000 * Hertz
	// 434.8MHz High limit medical, scientific and industrial band.
	Freq434_8M = 434790000 * Hertz
	Freq868_1M = 868100000 * Hertz
	Freq868_5M = 868500000 * Hertz
	Freq915_0M = 915000000 * Hertz
	Freq916_8M = 916800000 * Hertz
	Freq923_3M = 923300000 * Hertz
)

// 169.4MHz radio band ([Wize]), formerly known as ERMES band. Historically used by pagers.
//
// [Wize]: https://en.wikipedia.org/wiki/Wize_technology
const (
	Freq169_4M = 169400000 * Hertz
	Freq169_8M = 169812500 * Hertz
)

// Band is an inclusive frequency range.
type Band struct {
	Min, Max Frequency
}

// Contains reports whether f lies within the band, limits included.
func (b Band) Contains(f Frequency) bool {
	return b.Min <= f && f <= b.Max
}

func (b Band) String() string {
	return b.Min.String() + "-" + b.Max.String()
}
