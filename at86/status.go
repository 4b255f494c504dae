package at86

import (
	"fmt"
	"strings"
)

// Status is the 5-bit TRX_STATUS value reported by the chip.
type Status uint8

const (
	StatusPOn                  Status = 0x00
	StatusBusyRx               Status = 0x01
	StatusBusyTx               Status = 0x02
	StatusRxOn                 Status = 0x06
	StatusTrxOff               Status = 0x08
	StatusPllOn                Status = 0x09
	StatusSleep                Status = 0x0F
	StatusPrepDeepSleep        Status = 0x10
	StatusBusyRxAack           Status = 0x11
	StatusBusyTxAret           Status = 0x12
	StatusRxAackOn             Status = 0x16
	StatusTxAretOn             Status = 0x19
	StatusTransitionInProgress Status = 0x1F
)

var statusNames = map[Status]string{
	StatusPOn:                  "P_ON",
	StatusBusyRx:               "BUSY_RX",
	StatusBusyTx:               "BUSY_TX",
	StatusRxOn:                 "RX_ON",
	StatusTrxOff:               "TRX_OFF",
	StatusPllOn:                "PLL_ON",
	StatusSleep:                "SLEEP",
	StatusPrepDeepSleep:        "PREP_DEEP_SLEEP",
	StatusBusyRxAack:           "BUSY_RX_AACK",
	StatusBusyTxAret:           "BUSY_TX_ARET",
	StatusRxAackOn:             "RX_AACK_ON",
	StatusTxAretOn:             "TX_ARET_ON",
	StatusTransitionInProgress: "STATE_TRANSITION_IN_PROGRESS",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(s))
}

// Command is a TRX_CMD value written to the TRX_STATE register. Issuing a
// command requests a transition; the chip reports the outcome in Status.
type Command uint8

const (
	CmdNOP           Command = 0x00
	CmdTxStart       Command = 0x02
	CmdForceTrxOff   Command = 0x03
	CmdForcePllOn    Command = 0x04
	CmdRxOn          Command = 0x06
	CmdTrxOff        Command = 0x08
	CmdPllOn         Command = 0x09
	CmdPrepDeepSleep Command = 0x10
	CmdRxAackOn      Command = 0x16
	CmdTxAretOn      Command = 0x19
)

var commandNames = map[Command]string{
	CmdNOP:           "NOP",
	CmdTxStart:       "TX_START",
	CmdForceTrxOff:   "FORCE_TRX_OFF",
	CmdForcePllOn:    "FORCE_PLL_ON",
	CmdRxOn:          "RX_ON",
	CmdTrxOff:        "TRX_OFF",
	CmdPllOn:         "PLL_ON",
	CmdPrepDeepSleep: "PREP_DEEP_SLEEP",
	CmdRxAackOn:      "RX_AACK_ON",
	CmdTxAretOn:      "TX_ARET_ON",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(c))
}

// IRQ is the interrupt cause bitmask shared by IRQ_MASK and IRQ_STATUS.
// Several causes may be set at once.
type IRQ uint8

const (
	IrqPllLock IRQ = 1 << iota
	IrqPllUnlock
	IrqRxStart
	IrqTrxEnd
	IrqCcaEdDone
	IrqAddressMatch
	IrqTrxUnderrun
	IrqBatLow
)

var irqNames = [8]string{
	"PLL_LOCK", "PLL_UNLOCK", "RX_START", "TRX_END",
	"CCA_ED_DONE", "AMI", "TRX_UR", "BAT_LOW",
}

// Has reports whether every cause in mask is set.
func (i IRQ) Has(mask IRQ) bool {
	return i&mask == mask
}

func (i IRQ) String() string {
	if i == 0 {
		return "none"
	}
	var parts []string
	for bit := 0; bit < 8; bit++ {
		if i&(1<<bit) != 0 {
			parts = append(parts, irqNames[bit])
		}
	}
	return strings.Join(parts, "|")
}
