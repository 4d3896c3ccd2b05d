package cdc

// Vendor IDs and product allow-lists for the vendor-specific protocol
// variants, carried forward from the original driver's hardcoded tables
// (see SPEC_FULL.md §3). Dispatch (§4.4) consults these only after a
// vendor-class (0xFF/0xFF/0xFF or 0xFF/0x00/0x00) interface has already
// been seen; they are never used to override a standards-based ACM match.

// FTDIVendorID is Future Technology Devices International's USB vendor ID.
const FTDIVendorID = 0x0403

// FTDIProductIDs is the allow-list of FTDI product IDs recognized as FTDI
// serial adapters.
var FTDIProductIDs = []uint16{
	0x6001, // FT232AM/BM/R/RL/RQ
	0x6010, // FT2232C/D/L/H
	0x6011, // FT4232H
	0x6014, // FT232H
	0x6015, // FT230X/FT231X/FT234X
}

// CP210xVendorID is Silicon Labs' USB vendor ID.
const CP210xVendorID = 0x10C4

// CP210xProductIDs is the allow-list of CP210x product IDs recognized as
// CP210x serial adapters.
var CP210xProductIDs = []uint16{
	0xEA60, // CP2102/CP2109
	0xEA70, // CP2105
	0xEA80, // CP2108
}

func containsPID(list []uint16, pid uint16) bool {
	for _, p := range list {
		if p == pid {
			return true
		}
	}
	return false
}

// DetectVendor returns the protocol variant matching (vid, pid) against the
// allow-lists above, or ProtocolUnknown if neither matches.
func DetectVendor(vid, pid uint16) Protocol {
	switch {
	case vid == FTDIVendorID && containsPID(FTDIProductIDs, pid):
		return ProtocolFTDI
	case vid == CP210xVendorID && containsPID(CP210xProductIDs, pid):
		return ProtocolCP210x
	default:
		return ProtocolUnknown
	}
}

// FTDI vendor requests (bRequest), from the original driver.
const (
	FTDIRequestReset      = 0x00
	FTDIRequestModemCtrl  = 0x01
	FTDIRequestSetBaud    = 0x03
	FTDIRequestSetData    = 0x04
)

// FTDIResetSIO is the wValue for FTDIRequestReset that resets the SIO
// (serial input/output) state, as opposed to purge-RX/purge-TX variants.
const FTDIResetSIO = 0

// FTDIFixedBaudDivisor is the hardcoded 9600-baud divisor used by the
// original driver regardless of the requested bit rate. See spec.md §9 and
// DESIGN.md: this is a documented open point, not a bug this module fixes.
const FTDIFixedBaudDivisor = 0x4138

// CP210x vendor requests (bRequest), from the original driver.
const (
	CP210xRequestIFCEnable  = 0x00
	CP210xRequestSetBaud    = 0x1E
	CP210xRequestSetLineCtl = 0x03
	CP210xRequestSetMHS     = 0x07
)

// CP210xIFCEnable is the wValue enabling the UART interface.
const CP210xIFCEnable = 1
