package cdc

import (
	"context"
	"sync"

	"github.com/usbserial/cdchost/host"
	"github.com/usbserial/cdchost/host/hal"
	"github.com/usbserial/cdchost/pkg"
)

// mockHAL implements hal.HostHAL, recording every control and bulk transfer
// it receives so enumeration sequences can be asserted byte-for-byte. Styled
// after host/host_test.go's mockHAL.
type mockHAL struct {
	mu sync.Mutex

	controlLog []hal.SetupPacket
	controlData [][]byte

	bulkLog []bulkCall

	// controlErrAt, if set, makes the Nth (0-indexed) control transfer fail.
	controlErrAt int
	controlErr   error
	controlCount int

	bulkResult int
	bulkErr    error

	// rxFeed supplies payloads returned by bulk-IN transfers, so RX pacing
	// is driven by the test instead of spinning. Closing it causes pending
	// and future IN reads to fail, as if the device disconnected.
	rxFeed chan []byte
}

type bulkCall struct {
	endpoint uint8
	data     []byte
}

func newMockHAL() *mockHAL {
	return &mockHAL{controlErrAt: -1, rxFeed: make(chan []byte, 16)}
}

func (m *mockHAL) Init(ctx context.Context) error { return nil }
func (m *mockHAL) Start() error                   { return nil }
func (m *mockHAL) Stop() error                    { return nil }
func (m *mockHAL) Close() error                   { return nil }
func (m *mockHAL) NumPorts() int                  { return 1 }
func (m *mockHAL) GetPortStatus(port int) (hal.PortStatus, error) {
	return hal.PortStatus{}, nil
}
func (m *mockHAL) PortSpeed(port int) hal.Speed { return hal.SpeedFull }
func (m *mockHAL) ResetPort(port int) error     { return nil }
func (m *mockHAL) EnablePort(port int, enable bool) error { return nil }

func (m *mockHAL) ControlTransfer(ctx context.Context, addr hal.DeviceAddress, setup *hal.SetupPacket, data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	m.controlLog = append(m.controlLog, *setup)
	m.controlData = append(m.controlData, cp)

	idx := m.controlCount
	m.controlCount++
	if m.controlErrAt == idx {
		return 0, m.controlErr
	}
	return len(data), nil
}

func (m *mockHAL) BulkTransfer(ctx context.Context, addr hal.DeviceAddress, endpoint uint8, data []byte) (int, error) {
	if endpoint&0x80 != 0 {
		select {
		case payload, ok := <-m.rxFeed:
			if !ok {
				return 0, pkg.ErrCancelled
			}
			n := copy(data, payload)
			m.mu.Lock()
			cp := make([]byte, n)
			copy(cp, data[:n])
			m.bulkLog = append(m.bulkLog, bulkCall{endpoint: endpoint, data: cp})
			m.mu.Unlock()
			return n, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	m.mu.Lock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.bulkLog = append(m.bulkLog, bulkCall{endpoint: endpoint, data: cp})
	err := m.bulkErr
	m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func (m *mockHAL) InterruptTransfer(ctx context.Context, addr hal.DeviceAddress, endpoint uint8, data []byte) (int, error) {
	return 0, nil
}

func (m *mockHAL) IsochronousTransfer(ctx context.Context, addr hal.DeviceAddress, endpoint uint8, data []byte) (int, error) {
	return 0, nil
}

func (m *mockHAL) SetDeviceAddress(ctx context.Context, newAddr hal.DeviceAddress) error {
	return nil
}

func (m *mockHAL) ClaimInterface(addr hal.DeviceAddress, iface uint8) error   { return nil }
func (m *mockHAL) ReleaseInterface(addr hal.DeviceAddress, iface uint8) error { return nil }

func (m *mockHAL) WaitForConnection(ctx context.Context) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (m *mockHAL) WaitForDisconnection(ctx context.Context) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func (m *mockHAL) requests() []hal.SetupPacket {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]hal.SetupPacket, len(m.controlLog))
	copy(out, m.controlLog)
	return out
}

// --- descriptor builders -----------------------------------------------

func le16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }

func deviceDescriptor(vid, pid uint16) []byte {
	return []byte{
		18, 1, // bLength, bDescriptorType
		0x00, 0x02, // bcdUSB
		0, 0, 0, // class/subclass/protocol
		64,                // bMaxPacketSize0
		byte(vid), byte(vid >> 8),
		byte(pid), byte(pid >> 8),
		0, 0, // bcdDevice
		0, 0, 0, // string indices
		1, // bNumConfigurations
	}
}

// acmConfigDescriptor builds a minimal single-configuration descriptor tree
// with one CDC-ACM comm interface (with Union+ACM functional descriptors and
// an interrupt IN notification endpoint) followed by one CDC-Data interface
// with bulk IN/OUT endpoints.
func acmConfigDescriptor() []byte {
	return acmConfigDescriptorWithCap(ACMCapLineCoding)
}

// acmConfigDescriptorWithCap is acmConfigDescriptor with the ACM functional
// descriptor's bmCapabilities byte set explicitly, so tests can exercise a
// comm interface that does not advertise support_line_request.
func acmConfigDescriptorWithCap(cap byte) []byte {
	var buf []byte
	appendDesc := func(b ...byte) { buf = append(buf, b...) }

	comm := []byte{
		9, 4, 0, 0, 1, ClassCDC, SubclassACM, 0, 0, // interface 0
		5, DescriptorTypeCSInterface, SubtypeHeader, 0x10, 0x01,
		5, DescriptorTypeCSInterface, SubtypeCallManagement, 0x00, 1,
		4, DescriptorTypeCSInterface, SubtypeACM, cap,
		5, DescriptorTypeCSInterface, SubtypeUnion, 0, 1,
		7, 5, 0x83, 3, 8, 0, 10, // interrupt IN endpoint 0x83
	}
	data := []byte{
		9, 4, 1, 0, 2, ClassCDCData, 0, 0, 0, // interface 1
		7, 5, 0x81, 2, 64, 0, 0, // bulk IN 0x81
		7, 5, 0x01, 2, 64, 0, 0, // bulk OUT 0x01
	}

	total := 9 + len(comm) + len(data)
	config := []byte{
		9, 2, byte(total), byte(total >> 8), 2, 1, 0, 0x80, 50,
	}
	appendDesc(config...)
	appendDesc(comm...)
	appendDesc(data...)
	return buf
}

// vendorConfigDescriptor builds a single vendor-class interface with bulk
// IN/OUT endpoints and sub_class/protocol 0xff/0xff, as FTDI parts present.
func vendorConfigDescriptor() []byte {
	return vendorConfigDescriptorWith(0xFF, 0xFF)
}

// cp210xConfigDescriptor is vendorConfigDescriptor with sub_class/protocol
// 0/0, as CP210x parts present.
func cp210xConfigDescriptor() []byte {
	return vendorConfigDescriptorWith(0, 0)
}

func vendorConfigDescriptorWith(subClass, protocol byte) []byte {
	itf := []byte{
		9, 4, 0, 0, 2, ClassVendor, subClass, protocol, 0,
		7, 5, 0x81, 2, 64, 0, 0,
		7, 5, 0x01, 2, 64, 0, 0,
	}
	total := 9 + len(itf)
	config := []byte{
		9, 2, byte(total), byte(total >> 8), 1, 1, 0, 0x80, 50,
	}
	return append(config, itf...)
}

func newTestDevice(h *host.Host, vid, pid uint16, configDesc []byte) *host.Device {
	dev := host.NewDevice(h, 1, 1, hal.SpeedFull)
	dev.LoadDeviceDescriptor(deviceDescriptor(vid, pid))
	dev.LoadConfigurationDescriptor(configDesc)
	return dev
}

func newTestDriver(m *mockHAL) *Driver {
	return newTestDriverWithConfig(m, DefaultConfig())
}

func newTestDriverWithConfig(m *mockHAL, cfg Config) *Driver {
	h := host.New(m)
	_ = h.Start(context.Background())
	d := New(h, cfg)
	_ = d.Start(context.Background())
	return d
}
