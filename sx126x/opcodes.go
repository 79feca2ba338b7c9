package sx126x

import "strconv"

type opcode uint8

// Command opcodes. SX1261/2 datasheet, chapter 13.
const (
	opSetStandby            opcode = 0x80
	opSetTxParams           opcode = 0x8E
	opSetPaConfig           opcode = 0x95
	opSetRegulatorMode      opcode = 0x96
	opSetDIO3AsTCXOCtrl     opcode = 0x97
	opSetDIO2AsRfSwitchCtrl opcode = 0x9D
	opWriteRegister         opcode = 0x0D
	opReadRegister          opcode = 0x1D
	opGetStatus             opcode = 0xC0
	opGetDeviceErrors       opcode = 0x17
	opClearDeviceErrors     opcode = 0x07
)

func (op opcode) String() (s string) {
	switch op {
	case opSetStandby:
		s = "SetStandby"
	case opSetTxParams:
		s = "SetTxParams"
	case opSetPaConfig:
		s = "SetPaConfig"
	case opSetRegulatorMode:
		s = "SetRegulatorMode"
	case opSetDIO3AsTCXOCtrl:
		s = "SetDIO3AsTCXOCtrl"
	case opSetDIO2AsRfSwitchCtrl:
		s = "SetDIO2AsRfSwitchCtrl"
	case opWriteRegister:
		s = "WriteRegister"
	case opReadRegister:
		s = "ReadRegister"
	case opGetStatus:
		s = "GetStatus"
	case opGetDeviceErrors:
		s = "GetDeviceErrors"
	case opClearDeviceErrors:
		s = "ClearDeviceErrors"
	default:
		s = "opcode(0x" + strconv.FormatUint(uint64(op), 16) + ")"
	}
	return s
}

// Registers.
const regOCPConfiguration uint16 = 0x08E7

// ChipMode is the operating mode reported in the status byte.
type ChipMode uint8

const (
	ModeStandbyRC   ChipMode = 0x2
	ModeStandbyXOSC ChipMode = 0x3
	ModeFS          ChipMode = 0x4
	ModeRx          ChipMode = 0x5
	ModeTx          ChipMode = 0x6
)

func (m ChipMode) String() (s string) {
	switch m {
	case ModeStandbyRC:
		s = "stdby-rc"
	case ModeStandbyXOSC:
		s = "stdby-xosc"
	case ModeFS:
		s = "fs"
	case ModeRx:
		s = "rx"
	case ModeTx:
		s = "tx"
	default:
		s = "unknown"
	}
	return s
}

// CommandStatus is the outcome of the previous command, reported in the status byte.
type CommandStatus uint8

const (
	StatusDataAvailable    CommandStatus = 0x2
	StatusCommandTimeout   CommandStatus = 0x3
	StatusProcessingError  CommandStatus = 0x4
	StatusExecutionFailure CommandStatus = 0x5
	StatusTxDone           CommandStatus = 0x6
)

func (c CommandStatus) String() (s string) {
	switch c {
	case StatusDataAvailable:
		s = "data-available"
	case StatusCommandTimeout:
		s = "cmd-timeout"
	case StatusProcessingError:
		s = "cmd-processing-error"
	case StatusExecutionFailure:
		s = "cmd-exec-failure"
	case StatusTxDone:
		s = "tx-done"
	default:
		s = "ok"
	}
	return s
}

// Status is the byte returned by GetStatus.
type Status uint8

func (s Status) ChipMode() ChipMode           { return ChipMode(s>>4) & 0b111 }
func (s Status) CommandStatus() CommandStatus { return CommandStatus(s>>1) & 0b111 }

func (s Status) String() string {
	return "mode=" + s.ChipMode().String() + " cmd=" + s.CommandStatus().String()
}
