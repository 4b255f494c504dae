package radio

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/linht/rf-manager/at86"
)

// MaxPhases bounds the phase samples kept per reception.
const MaxPhases = 256

// Reception is the outcome of one receive operation.
type Reception struct {
	ID       uuid.UUID     `json:"id"`
	Length   int           `json:"length"`
	Address  uint8         `json:"address"`
	Payload  HexBytes      `json:"payload"`
	Valid    bool          `json:"valid"`
	CRCValid bool          `json:"crc_valid"`
	RSSI     uint8         `json:"rssi"`
	Phases   HexBytes      `json:"phases"`
	Duration time.Duration `json:"duration_ns"`
	Time     time.Time     `json:"time"`
}

// Transmission is the outcome of one transmit operation.
type Transmission struct {
	ID       uuid.UUID     `json:"id"`
	Payload  HexBytes      `json:"payload"`
	Trace    []at86.Status `json:"-"`
	States   []string      `json:"states"`
	Duration time.Duration `json:"duration_ns"`
	Time     time.Time     `json:"time"`
}

// HexBytes marshals as a lowercase hex string.
type HexBytes []byte

func (h HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h)), nil
}

func (h *HexBytes) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	*h = b
	return nil
}
