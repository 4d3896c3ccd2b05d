package cdc

import "github.com/usbserial/cdchost/host"

// openCP210x recognizes a Silicon Labs CP210x vendor-specific interface,
// gated on the CP210x VID/PID allow list (vendor.go). Mirrors cp210x_open
// in the original driver.
func openCP210x(dev *host.Device, idx int) (*openResult, bool) {
	if DetectVendor(dev.VendorID(), dev.ProductID()) != ProtocolCP210x {
		return nil, false
	}
	ifaces := dev.Interfaces()
	itf := ifaces[idx]
	if itf.InterfaceClass != ClassVendor || itf.InterfaceSubClass != 0 || itf.InterfaceProtocol != 0 {
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
		protocol:      ProtocolCP210x,
		itfNum:        itf.InterfaceNumber,
		subClass:      itf.InterfaceSubClass,
		epIn:          epIn,
		epOut:         epOut,
		maxPacketSize: mps,
		consumed:      1,
	}, true
}
