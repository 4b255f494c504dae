package at86

// Transmit power range covered by the lookup tables, in dBm.
const (
	MinTxPowerDbm = -17
	MaxTxPowerDbm = 4
)

// dbmToTxPwr maps dBm+17 to a TX_PWR code. Index 0 is -17 dBm, index 21 is
// +4 dBm. Several dBm values share a code where the chip has no exact step.
var dbmToTxPwr = [22]uint8{
	0x0F, 0x0F, 0x0F, 0x0E, 0x0E, 0x0E,
	0x0E, 0x0D, 0x0D, 0x0D, 0x0C, 0x0C,
	0x0B, 0x0B, 0x0A, 0x09, 0x08, 0x07,
	0x06, 0x05, 0x03, 0x00,
}

// txPwrToDbm maps a 4-bit TX_PWR code to its nominal output in dBm.
var txPwrToDbm = [16]int{
	4, 4, 3, 3, 2, 2, 1, 0, -1, -2, -3, -4, -6, -8, -12, -17,
}

// PowerCode converts dBm to a TX_PWR code, clamping to the table range.
func PowerCode(dbm int) uint8 {
	idx := dbm - MinTxPowerDbm
	if idx < 0 {
		idx = 0
	} else if idx > len(dbmToTxPwr)-1 {
		idx = len(dbmToTxPwr) - 1
	}
	return dbmToTxPwr[idx]
}

// PowerDbm converts a TX_PWR code to dBm. Only the low four bits are used.
func PowerDbm(code uint8) int {
	return txPwrToDbm[code&0x0F]
}

// TxPower returns the configured transmit power in dBm.
func (d *Device) TxPower() (int, error) {
	code, err := d.Field(FieldTxPwr)
	if err != nil {
		return 0, err
	}
	return PowerDbm(code), nil
}

// SetTxPower sets the transmit power. The value is clamped to
// [MinTxPowerDbm, MaxTxPowerDbm] and quantized by the power table, so
// TxPower may report a different value than requested.
func (d *Device) SetTxPower(dbm int) error {
	return d.SetField(FieldTxPwr, PowerCode(dbm))
}
