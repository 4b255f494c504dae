package radio

// Defaults of the link test frame: one address byte followed by fill bytes.
const (
	DefaultAddress   = 0xAA
	DefaultFill      = 0xFF
	DefaultFrameSize = 32
)

// BuildFrame returns a size-byte frame whose first byte is address and
// whose remaining bytes are fill. size is clamped to [1, 127].
func BuildFrame(address, fill uint8, size int) []byte {
	if size < 1 {
		size = 1
	}
	if size > 127 {
		size = 127
	}
	frame := make([]byte, size)
	frame[0] = address
	for i := 1; i < size; i++ {
		frame[i] = fill
	}
	return frame
}
