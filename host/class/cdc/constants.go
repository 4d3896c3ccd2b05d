package cdc

// Serial protocol variants recognized by the driver.
type Protocol uint8

// Protocol variants.
const (
	ProtocolUnknown Protocol = iota
	ProtocolACM
	ProtocolFTDI
	ProtocolCP210x
)

// String returns a human-readable protocol name.
func (p Protocol) String() string {
	switch p {
	case ProtocolACM:
		return "ACM"
	case ProtocolFTDI:
		return "FTDI"
	case ProtocolCP210x:
		return "CP210x"
	default:
		return "unknown"
	}
}

// CDC class/subclass/protocol codes (USB CDC 1.2 and functional descriptors).
const (
	ClassCDC     = 0x02 // Communications Device Class
	ClassCDCData = 0x0A // CDC Data Class

	SubclassACM = 0x02 // Abstract Control Model

	ClassVendor = 0xFF // Vendor-specific class used by FTDI/CP210x
)

// CDC class-specific descriptor types and functional-descriptor subtypes.
const (
	DescriptorTypeCSInterface = 0x24

	SubtypeHeader         = 0x00
	SubtypeCallManagement = 0x01
	SubtypeACM            = 0x02
	SubtypeUnion          = 0x06
)

// ACM functional descriptor capability bits (bmCapabilities).
const (
	ACMCapCommFeature = 1 << 0
	ACMCapLineCoding  = 1 << 1 // "supports line request": SET/GET_LINE_CODING, SET_CONTROL_LINE_STATE
	ACMCapSendBreak   = 1 << 2
	ACMCapNetworkConn = 1 << 3
)

// ACM class requests (bRequest), per USB CDC 1.2 §6.2.
const (
	RequestSetLineCoding       = 0x20
	RequestGetLineCoding       = 0x21
	RequestSetControlLineState = 0x22
	RequestSendBreak           = 0x23
)

// bmRequestType bytes for the on-wire control request table (spec.md §6).
const (
	RequestTypeACMOut   = 0x21 // OUT, class, interface
	RequestTypeFTDIOut  = 0x40 // OUT, vendor, device
	RequestTypeCP210xOut = 0x41 // OUT, vendor, interface
)

// Control line state bits (SET_CONTROL_LINE_STATE wValue, FTDI/CP210x modem
// control wValue low byte).
const (
	ControlLineDTR = 1 << 0
	ControlLineRTS = 1 << 1
)

// LineCoding is the 7-byte CDC line coding structure (spec.md §6): baud
// rate, stop bits, parity, data bits, little-endian on the wire.
type LineCoding struct {
	BitRate  uint32
	StopBits uint8
	Parity   uint8
	DataBits uint8
}

// LineCodingSize is the wire size of LineCoding in bytes.
const LineCodingSize = 7

// Stop bit values.
const (
	StopBits1   = 0
	StopBits1_5 = 1
	StopBits2   = 2
)

// Parity values.
const (
	ParityNone  = 0
	ParityOdd   = 1
	ParityEven  = 2
	ParityMark  = 3
	ParitySpace = 4
)

// DefaultLineCoding is 115200 8N1, matching the teacher's device-side default.
var DefaultLineCoding = LineCoding{
	BitRate:  115200,
	StopBits: StopBits1,
	Parity:   ParityNone,
	DataBits: 8,
}

// MarshalTo writes the line coding to buf in wire order. Returns the number
// of bytes written, or 0 if buf is too small.
func (lc *LineCoding) MarshalTo(buf []byte) int {
	if len(buf) < LineCodingSize {
		return 0
	}
	buf[0] = byte(lc.BitRate)
	buf[1] = byte(lc.BitRate >> 8)
	buf[2] = byte(lc.BitRate >> 16)
	buf[3] = byte(lc.BitRate >> 24)
	buf[4] = lc.StopBits
	buf[5] = lc.Parity
	buf[6] = lc.DataBits
	return LineCodingSize
}

// ParseLineCoding parses the first LineCodingSize bytes of data into out.
// Returns false, leaving out unchanged, if data is shorter than
// LineCodingSize.
func ParseLineCoding(data []byte, out *LineCoding) bool {
	if len(data) < LineCodingSize {
		return false
	}
	out.BitRate = uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	out.StopBits = data[4]
	out.Parity = data[5]
	out.DataBits = data[6]
	return true
}

// HeaderDescriptor is the CDC Header Functional Descriptor.
type HeaderDescriptor struct {
	CDCVersion uint16
}

// HeaderDescriptorSize is the encoded size of HeaderDescriptor.
const HeaderDescriptorSize = 5

// CallManagementDescriptor is the Call Management Functional Descriptor.
type CallManagementDescriptor struct {
	Capabilities  uint8
	DataInterface uint8
}

// CallManagementDescriptorSize is the encoded size of CallManagementDescriptor.
const CallManagementDescriptorSize = 5

// ACMDescriptor is the Abstract Control Management Functional Descriptor.
type ACMDescriptor struct {
	Capabilities uint8
}

// ACMDescriptorSize is the encoded size of ACMDescriptor.
const ACMDescriptorSize = 4

// UnionDescriptor is the Union Functional Descriptor (one subordinate interface).
type UnionDescriptor struct {
	MasterInterface uint8
	SlaveInterface0 uint8
}

// UnionDescriptorSize is the encoded size of UnionDescriptor.
const UnionDescriptorSize = 5

// flattenDescriptors concatenates the raw class-specific descriptor blocks
// Device.ClassDescriptors returns back into one contiguous buffer, matching
// the layout parseACMFunctional and parseCallManagement expect.
func flattenDescriptors(blocks [][]byte) []byte {
	total := 0
	for _, b := range blocks {
		total += len(b)
	}
	out := make([]byte, 0, total)
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}

// parseCallManagement walks the class-specific interface descriptors for the
// Call Management Functional Descriptor, returning its capabilities and data
// interface number.
func parseCallManagement(class []byte) (CallManagementDescriptor, bool) {
	offset := 0
	for offset+2 <= len(class) {
		length := int(class[offset])
		if length < 2 || offset+length > len(class) {
			break
		}
		descType := class[offset+1]
		if descType == DescriptorTypeCSInterface && length >= 5 {
			subtype := class[offset+2]
			if subtype == SubtypeCallManagement {
				return CallManagementDescriptor{
					Capabilities:  class[offset+3],
					DataInterface: class[offset+4],
				}, true
			}
		}
		offset += length
	}
	return CallManagementDescriptor{}, false
}

// parseACMFunctional walks the class-specific interface descriptors found
// between the interface descriptor and the first endpoint/interface
// descriptor, extracting the ACM functional descriptor's capability bits.
// Returns the capability byte and true if an ACM functional descriptor was
// found.
func parseACMFunctional(class []byte) (uint8, bool) {
	offset := 0
	for offset+2 <= len(class) {
		length := int(class[offset])
		if length < 2 || offset+length > len(class) {
			break
		}
		descType := class[offset+1]
		if descType == DescriptorTypeCSInterface && length >= 4 {
			subtype := class[offset+2]
			if subtype == SubtypeACM {
				return class[offset+3], true
			}
		}
		offset += length
	}
	return 0, false
}
