package cdc

import "github.com/usbserial/cdchost/host"

// openACM recognizes a standards-based CDC-ACM communication interface at
// position idx in dev.Interfaces(), locates its paired data interface via
// the Union (preferred) or Call Management functional descriptor, and
// resolves both interfaces' endpoints. Mirrors acm_open in the original
// driver, generalized from a fixed comm/data pair assumption to actually
// reading the Union descriptor, since nothing here can assume the data
// interface is always "communication interface number + 1".
func openACM(dev *host.Device, idx int) (*openResult, bool) {
	ifaces := dev.Interfaces()
	itf := ifaces[idx]
	if itf.InterfaceClass != ClassCDC || itf.InterfaceSubClass != SubclassACM {
		return nil, false
	}

	class := flattenDescriptors(dev.ClassDescriptors(idx))
	acmCap, _ := parseACMFunctional(class)

	var dataItfNum uint8
	haveDataItf := false
	if union, ok := parseUnion(class); ok {
		dataItfNum, haveDataItf = union.SlaveInterface0, true
	} else if cm, ok := parseCallManagement(class); ok {
		dataItfNum, haveDataItf = cm.DataInterface, true
	}

	dataIdx := -1
	if haveDataItf {
		dataIdx = findInterfacePosition(ifaces, dataItfNum)
	}
	if dataIdx < 0 && idx+1 < len(ifaces) && ifaces[idx+1].InterfaceClass == ClassCDCData {
		dataIdx = idx + 1
		dataItfNum = ifaces[dataIdx].InterfaceNumber
	}
	if dataIdx < 0 {
		return nil, false
	}

	epIn, epOut, _, mps := scanEndpoints(dev, dataIdx)
	if epIn == 0 || epOut == 0 {
		return nil, false
	}

	_, _, notif, _ := scanEndpoints(dev, idx)

	consumed := 1
	if dataIdx == idx+1 {
		consumed = 2
	}

	return &openResult{
		protocol:      ProtocolACM,
		itfNum:        itf.InterfaceNumber,
		dataItfNum:    dataItfNum,
		subClass:      itf.InterfaceSubClass,
		acmCap:        acmCap,
		notifEndpoint: notif,
		epIn:          epIn,
		epOut:         epOut,
		maxPacketSize: mps,
		consumed:      consumed,
	}, true
}

func findInterfacePosition(ifaces []host.InterfaceDescriptor, num uint8) int {
	for i := range ifaces {
		if ifaces[i].InterfaceNumber == num {
			return i
		}
	}
	return -1
}

func parseUnion(class []byte) (UnionDescriptor, bool) {
	offset := 0
	for offset+2 <= len(class) {
		length := int(class[offset])
		if length < 2 || offset+length > len(class) {
			break
		}
		descType := class[offset+1]
		if descType == DescriptorTypeCSInterface && length >= 5 {
			if class[offset+2] == SubtypeUnion {
				return UnionDescriptor{
					MasterInterface: class[offset+3],
					SlaveInterface0: class[offset+4],
				}, true
			}
		}
		offset += length
	}
	return UnionDescriptor{}, false
}
