// Command patable prints the transmit configuration the SX1262 shield board
// support package resolves for a frequency and output power, and can program
// it into a radio attached to a Bus Pirate.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cdshield/lora"
	"github.com/cdshield/lora/internal/buspirate"
	"github.com/cdshield/lora/shield"
	"github.com/cdshield/lora/shield/profile"
	"github.com/cdshield/lora/sx126x"
)

func main() {
	var (
		profilePath = flag.String("profile", "", "Board profile YAML file (default: stock shield)")
		freq        = flag.Int64("freq", lora.Freq868_1M.Hertz(), "Carrier frequency in Hz")
		power       = flag.Int("power", 14, "Requested output power in dBm")
		all         = flag.Bool("all", false, "Print the whole PA table")
		port        = flag.String("port", "", "Bus Pirate serial port; when set the radio is programmed")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		logFormat   = flag.String("log-format", "text", "Log format: text or json")
	)
	flag.Parse()

	logger := newLogger(os.Stderr, *logLevel, *logFormat)
	err := run(os.Stdout, logger, *profilePath, lora.Frequency(*freq), clampInt8(*power), *all, *port)
	if err != nil {
		logger.Error("patable failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(w io.Writer, logger *slog.Logger, profilePath string, freq lora.Frequency, power int8, all bool, port string) error {
	p := profile.Default()
	if profilePath != "" {
		var err error
		p, err = profile.Load(profilePath)
		if err != nil {
			return err
		}
	}
	board, err := p.Shield(logger)
	if err != nil {
		return err
	}
	logger.Info("board loaded",
		slog.String("board", p.Name),
		slog.String("regulator", board.RegulatorMode().String()),
		slog.Bool("dio2RFSwitch", board.DIO2IsRFSwitch()),
		slog.String("ocp", board.OCP().String()),
	)
	if all {
		return printTable(w, freq)
	}
	if port == "" {
		return printTxConfig(w, board.TxConfig(sx126x.TxConfigInput{Frequency: freq, SystemOutputPower: power}))
	}
	return program(w, logger, board, port, freq, power)
}

func printTable(w io.Writer, freq lora.Frequency) error {
	if !shield.SubGHz.Contains(freq) {
		fmt.Fprintf(w, "%s is outside %s: every request uses the %ddBm row\n", freq, shield.SubGHz, shield.DefaultPower)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "dBm\tpower\thpMax\tpaDutyCycle\tdeviceSel\tpaLut")
	for dBm := shield.MinPower; ; dBm++ {
		row := shield.Lookup(freq, dBm)
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\n", dBm, row.Power, row.PA.HPMax, row.PA.DutyCycle, row.PA.DeviceSel, row.PA.PALUT)
		if dBm == shield.MaxPower {
			break
		}
	}
	return tw.Flush()
}

func printTxConfig(w io.Writer, cfg sx126x.TxConfigOutput) error {
	_, err := fmt.Fprintf(w, "expected=%ddBm configured=%ddBm %s ramp=%s\n",
		cfg.ExpectedPower, cfg.ConfiguredPower, cfg.PA, cfg.RampTime)
	return err
}

func program(w io.Writer, logger *slog.Logger, board sx126x.BoardSupport, port string, freq lora.Frequency, power int8) (err error) {
	bridge, err := buspirate.Open(port, buspirate.Speed1M)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, bridge.Close())
	}()
	dev := sx126x.NewDevice(bridge, bridge.CS, bridge.Reset, nil)
	dev.Reset()
	if !dev.IsConnected() {
		return errors.Join(sx126x.ErrNotDetected, bridge.Err())
	}
	if err = dev.SetStandby(false); err != nil {
		return err
	}
	if err = dev.ApplyBoard(board); err != nil {
		return fmt.Errorf("apply board: %w", err)
	}
	cfg, err := dev.SetTxPower(freq, power)
	if err != nil {
		return fmt.Errorf("set tx power: %w", err)
	}
	status, err := dev.Status()
	if err != nil {
		return err
	}
	logger.Info("radio programmed", slog.String("port", port), slog.String("status", status.String()))
	return printTxConfig(w, cfg)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func clampInt8(v int) int8 {
	switch {
	case v < math.MinInt8:
		return math.MinInt8
	case v > math.MaxInt8:
		return math.MaxInt8
	}
	return int8(v)
}
