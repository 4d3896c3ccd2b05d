package cdc

import "github.com/usbserial/cdchost/host"

// openResult is what a Protocol Opener hands back to the enumeration state
// machine: everything needed to populate a slot except the stream buffers,
// which Driver.Open allocates once the protocol is known.
type openResult struct {
	protocol      Protocol
	itfNum        uint8
	dataItfNum    uint8 // 0 if the variant has no separate data interface
	subClass      uint8
	acmCap        uint8
	notifEndpoint uint8 // 0 if none
	epIn, epOut   uint8
	maxPacketSize uint16
	// consumed is how many entries of dev.Interfaces(), starting at the
	// index passed to the opener, this interface occupies (2 for an ACM
	// comm interface whose data interface directly follows it, 1 otherwise).
	consumed int
}

// scanEndpoints classifies the endpoints listed against one interface
// position into bulk IN/OUT and (if present) interrupt IN for notifications.
// Returns the bulk max packet size, taken from whichever bulk endpoint is
// seen (both directions share one size on every variant this driver
// supports).
func scanEndpoints(dev *host.Device, idx int) (epIn, epOut, notif uint8, maxPacketSize uint16) {
	for _, ep := range dev.InterfaceEndpoints(idx) {
		switch {
		case ep.IsBulk() && ep.IsIn():
			epIn = ep.EndpointAddress
			maxPacketSize = ep.MaxPacketSize
		case ep.IsBulk() && ep.IsOut():
			epOut = ep.EndpointAddress
			maxPacketSize = ep.MaxPacketSize
		case ep.IsInterrupt() && ep.IsIn():
			notif = ep.EndpointAddress
		}
	}
	return
}

// tryOpeners attempts every Protocol Opener in turn against each interface
// of dev.Interfaces() in order, returning the first match. Vendor
// openers additionally require the device's (VID, PID) to match an allow
// list, since a vendor-class interface alone doesn't say which chip it is.
func tryOpeners(dev *host.Device) (*openResult, error) {
	ifaces := dev.Interfaces()
	for idx := range ifaces {
		if res, ok := openACM(dev, idx); ok {
			return res, nil
		}
		if res, ok := openFTDI(dev, idx); ok {
			return res, nil
		}
		if res, ok := openCP210x(dev, idx); ok {
			return res, nil
		}
	}
	return nil, ErrDescriptorInvalid
}
