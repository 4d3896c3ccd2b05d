package cdc

import "github.com/usbserial/cdchost/host"

// openFTDI recognizes an FTDI vendor-specific interface: the device's
// (VID, PID) must match the FTDI allow list (vendor.go), since a
// vendor-class interface descriptor alone carries no chip identity.
// Mirrors ftdi_open in the original driver.
func openFTDI(dev *host.Device, idx int) (*openResult, bool) {
	if DetectVendor(dev.VendorID(), dev.ProductID()) != ProtocolFTDI {
		return nil, false
	}
	ifaces := dev.Interfaces()
	itf := ifaces[idx]
	if itf.InterfaceClass != ClassVendor || itf.InterfaceSubClass != 0xff || itf.InterfaceProtocol != 0xff {
		return nil, false
	}
	if itf.NumEndpoints != 2 {
		return nil, false
	}

	epIn, epOut, _, mps := scanEndpoints(dev, idx)
	if epIn == 0 || epOut == 0 {
		return nil, false
	}

	return &openResult{
		protocol:      ProtocolFTDI,
		itfNum:        itf.InterfaceNumber,
		subClass:      itf.InterfaceSubClass,
		epIn:          epIn,
		epOut:         epOut,
		maxPacketSize: mps,
		consumed:      1,
	}, true
}
