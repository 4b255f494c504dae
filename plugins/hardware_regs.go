package plugins

import "github.com/linht/rf-manager/at86"

// Register descriptions for UI
var RegisterDescriptions = map[uint8]string{
	at86.RegTrxStatus:  "TRX_STATUS - CCA result and transceiver status",
	at86.RegTrxState:   "TRX_STATE - TRAC status and state command",
	at86.RegTrxCtrl0:   "TRX_CTRL_0 - PMU and CLKM control",
	at86.RegTrxCtrl1:   "TRX_CTRL_1 - IRQ polarity and auto CRC",
	at86.RegPhyTxPwr:   "PHY_TX_PWR - Transmit power",
	at86.RegPhyRssi:    "PHY_RSSI - RSSI and CRC valid",
	at86.RegPhyEdLevel: "PHY_ED_LEVEL - Energy detection level",
	at86.RegPhyCcCca:   "PHY_CC_CCA - Channel and CCA mode",
	at86.RegCcaThres:   "CCA_THRES - CCA energy threshold",
	at86.RegIrqMask:    "IRQ_MASK - Interrupt enable",
	at86.RegIrqStatus:  "IRQ_STATUS - Interrupt cause (read clears)",
	at86.RegVregCtrl:   "VREG_CTRL - Voltage regulator control",
	at86.RegBatmon:     "BATMON - Battery monitor",
	at86.RegXoscCtrl:   "XOSC_CTRL - Crystal oscillator control",
	at86.RegPartNum:    "PART_NUM - Part number",
	at86.RegVersionNum: "VERSION_NUM - Revision",
	at86.RegManID0:     "MAN_ID_0 - Manufacturer ID low byte",
	at86.RegManID1:     "MAN_ID_1 - Manufacturer ID high byte",
	at86.RegShortAddr0: "SHORT_ADDR_0 - Short address low byte",
	at86.RegShortAddr1: "SHORT_ADDR_1 - Short address high byte",
	at86.RegPanID0:     "PAN_ID_0 - PAN ID low byte",
	at86.RegPanID1:     "PAN_ID_1 - PAN ID high byte",
	at86.RegPhyPmuVal:  "PHY_PMU_VALUE - Phase measurement",
}

// Registers that are cleared by reading them, excluded from register reads
var volatileRegisters = map[uint8]bool{
	at86.RegIrqStatus: true,
}

// Named register fields reported by the fields endpoint
var registerFields = map[string]at86.Field{
	"trx_status":     at86.FieldTrxStatus,
	"trac_status":    at86.FieldTracState,
	"clkm_ctrl":      at86.FieldClkmCtrl,
	"pmu_en":         at86.FieldPmuEn,
	"irq_polarity":   at86.FieldIrqPolarity,
	"tx_auto_crc_on": at86.FieldTxAutoCrcOn,
	"tx_pwr":         at86.FieldTxPwr,
	"rssi":           at86.FieldRssi,
	"rx_crc_valid":   at86.FieldRxCrcValid,
	"channel":        at86.FieldChannel,
	"cca_mode":       at86.FieldCcaMode,
	"cca_request":    at86.FieldCcaRequest,
	"cca_ed_thres":   at86.FieldCcaEdThres,
	"batmon_ok":      at86.FieldBatmonOk,
}

// State commands accepted by the state endpoint
var stateCommands = map[string]at86.Command{
	"nop":             at86.CmdNOP,
	"tx_start":        at86.CmdTxStart,
	"force_trx_off":   at86.CmdForceTrxOff,
	"force_pll_on":    at86.CmdForcePllOn,
	"rx_on":           at86.CmdRxOn,
	"trx_off":         at86.CmdTrxOff,
	"pll_on":          at86.CmdPllOn,
	"prep_deep_sleep": at86.CmdPrepDeepSleep,
}
