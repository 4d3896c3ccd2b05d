package cdc

// Config controls driver-wide behavior. The original driver exposed these as
// compile-time CFG_TUH_CDC_* feature flags; here they're runtime fields set
// once at construction, following the teacher's constructor-option style
// (device.NewDeviceBuilder, host.NewTransferManager(host, workers)).
type Config struct {
	// MaxInterfaces bounds the interface table (slots.go). The original
	// driver sized this array at compile time via CFG_TUH_CDC_ITF_MAX.
	MaxInterfaces int

	// StreamBufferSize is the ring buffer capacity, in bytes, allocated per
	// direction per mounted interface.
	StreamBufferSize int

	// EnableLineCoding controls whether enumeration sets the line coding:
	// SET_LINE_CODING on ACM (CFG_TUH_CDC_ENABLE_ACM_SET_LINE_CODING
	// upstream), SET_BAUD_RATE on FTDI and SET_BAUDRATE on CP210x. FTDI's
	// RESET and CP210x's IFC_ENABLE are issued regardless.
	EnableLineCoding bool

	// EnableLineState controls whether enumeration asserts DTR/RTS:
	// SET_CONTROL_LINE_STATE on ACM
	// (CFG_TUH_CDC_ENABLE_ACM_SET_CONTROL_LINE_STATE upstream), MODEM_CTRL
	// on FTDI and SET_MHS on CP210x.
	EnableLineState bool

	// Workers is the number of goroutines driving the TransferManager this
	// driver submits control and bulk transfers through.
	Workers int
}

// DefaultConfig returns the configuration used when none is supplied:
// 8 interfaces, 256-byte stream buffers, line coding and line state enabled,
// matching the original driver's default feature-flag values.
func DefaultConfig() Config {
	return Config{
		MaxInterfaces:    8,
		StreamBufferSize: 256,
		EnableLineCoding: true,
		EnableLineState:  true,
		Workers:          2,
	}
}
