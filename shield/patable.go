package shield

import (
	"github.com/cdshield/lora"
	"github.com/cdshield/lora/sx126x"
)

// Output power range in dBm the PA table covers, limits included.
const (
	MinPower int8 = -9
	MaxPower int8 = 22
	// DefaultPower is the row returned for any request outside SubGHz or
	// outside MinPower..MaxPower.
	DefaultPower int8 = 6
)

// SubGHz is the band the shield's matching network is designed for.
var SubGHz = lora.Band{Min: 150 * lora.MegaHertz, Max: 960 * lora.MegaHertz}

// PowerConfig is a row of the PA table: the SetTxParams power and the
// SetPaConfig parameters that together yield a given output power.
type PowerConfig struct {
	Power int8
	PA    sx126x.PAConfig
}

func row(power int8, hpMax, dutyCycle uint8) PowerConfig {
	return PowerConfig{
		Power: power,
		PA: sx126x.PAConfig{
			DutyCycle: dutyCycle,
			HPMax:     hpMax,
			DeviceSel: sx126x.DeviceSelSX1262,
			PALUT:     1,
		},
	}
}

// paTable is indexed by expected output power minus MinPower.
var paTable = [MaxPower - MinPower + 1]PowerConfig{
	row(2, 1, 1),  // -9dBm
	row(5, 1, 0),  // -8dBm
	row(5, 1, 1),  // -7dBm
	row(8, 1, 0),  // -6dBm
	row(3, 2, 0),  // -5dBm
	row(9, 1, 0),  // -4dBm
	row(10, 1, 0), // -3dBm
	row(11, 1, 0), // -2dBm
	row(13, 1, 1), // -1dBm
	row(19, 1, 1), // 0dBm
	row(16, 1, 1), // 1dBm
	row(20, 1, 0), // 2dBm
	row(18, 1, 3), // 3dBm
	row(21, 1, 0), // 4dBm
	row(16, 2, 0), // 5dBm
	row(22, 1, 0), // 6dBm
	row(22, 1, 1), // 7dBm
	row(22, 1, 2), // 8dBm
	row(22, 1, 3), // 9dBm
	row(22, 1, 4), // 10dBm
	row(22, 2, 0), // 11dBm
	row(22, 2, 1), // 12dBm
	row(22, 2, 2), // 13dBm
	row(22, 2, 3), // 14dBm
	row(22, 3, 1), // 15dBm
	row(22, 3, 2), // 16dBm
	row(22, 5, 0), // 17dBm
	row(22, 5, 1), // 18dBm
	row(22, 5, 2), // 19dBm
	row(22, 6, 3), // 20dBm
	row(22, 6, 4), // 21dBm
	row(22, 7, 4), // 22dBm
}

// Lookup returns the PA table row for an expected output power of dBm at
// freq. Requests outside SubGHz or outside MinPower..MaxPower are not an
// error: they silently get the DefaultPower row so the radio is always left
// in a safe configuration.
func Lookup(freq lora.Frequency, dBm int8) PowerConfig {
	if SubGHz.Contains(freq) && MinPower <= dBm && dBm <= MaxPower {
		return paTable[int(dBm)-int(MinPower)]
	}
	return paTable[DefaultPower-MinPower]
}
