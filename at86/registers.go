package at86

// AT86RF233 register addresses
const (
	RegTrxStatus  = 0x01 // Transceiver status
	RegTrxState   = 0x02 // State control command
	RegTrxCtrl0   = 0x03 // Clock output and PMU control
	RegTrxCtrl1   = 0x04 // IRQ polarity, auto CRC, SPI command mode
	RegPhyTxPwr   = 0x05 // TX output power
	RegPhyRssi    = 0x06 // RSSI and CRC valid
	RegPhyEdLevel = 0x07 // Energy detection level
	RegPhyCcCca   = 0x08 // Channel and CCA mode
	RegCcaThres   = 0x09 // CCA threshold
	RegIrqMask    = 0x0E // Interrupt enable
	RegIrqStatus  = 0x0F // Interrupt cause, cleared on read
	RegVregCtrl   = 0x10 // Voltage regulator status
	RegBatmon     = 0x11 // Battery monitor
	RegXoscCtrl   = 0x12 // Crystal oscillator
	RegPartNum    = 0x1C // Part number
	RegVersionNum = 0x1D // Part revision
	RegManID0     = 0x1E // JEDEC manufacturer ID, low byte
	RegManID1     = 0x1F // JEDEC manufacturer ID, high byte
	RegShortAddr0 = 0x20 // Short address, low byte
	RegShortAddr1 = 0x21 // Short address, high byte
	RegPanID0     = 0x22 // PAN ID, low byte
	RegPanID1     = 0x23 // PAN ID, high byte
	RegIEEEAddr0  = 0x24 // Extended address, bytes 0x24-0x2B
	RegPhyPmuVal  = 0x3B // Phase measurement value

	// MaxRegister is the highest addressable register.
	MaxRegister = 0x3F
)

// Register fields used by the driver
var (
	FieldTrxStatus = Field{Reg: RegTrxStatus, Mask: 0x1F, Shift: 0}

	FieldTracState = Field{Reg: RegTrxState, Mask: 0xE0, Shift: 5}

	FieldClkmCtrl = Field{Reg: RegTrxCtrl0, Mask: 0x07, Shift: 0}
	FieldPmuEn    = Field{Reg: RegTrxCtrl0, Mask: 0x20, Shift: 5}

	FieldIrqPolarity = Field{Reg: RegTrxCtrl1, Mask: 0x01, Shift: 0}
	FieldTxAutoCrcOn = Field{Reg: RegTrxCtrl1, Mask: 0x20, Shift: 5}

	FieldTxPwr = Field{Reg: RegPhyTxPwr, Mask: 0x0F, Shift: 0}

	FieldRssi       = Field{Reg: RegPhyRssi, Mask: 0x1F, Shift: 0}
	FieldRxCrcValid = Field{Reg: RegPhyRssi, Mask: 0x80, Shift: 7}

	FieldChannel    = Field{Reg: RegPhyCcCca, Mask: 0x1F, Shift: 0}
	FieldCcaMode    = Field{Reg: RegPhyCcCca, Mask: 0x60, Shift: 5}
	FieldCcaRequest = Field{Reg: RegPhyCcCca, Mask: 0x80, Shift: 7}

	FieldCcaEdThres = Field{Reg: RegCcaThres, Mask: 0x0F, Shift: 0}

	FieldBatmonOk = Field{Reg: RegBatmon, Mask: 0x20, Shift: 5}
)

// Expected identification values for the AT86RF233
const (
	PartNumAT86RF233  = 0x0B
	VersionRevB       = 0x02
	ManufacturerAtmel = 0x001F
)
