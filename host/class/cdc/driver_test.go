package cdc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/usbserial/cdchost/host"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met before timeout")
	}
}

func TestOpenACMIssuesExactControlSequence(t *testing.T) {
	m := newMockHAL()
	d := newTestDriver(m)
	dev := newTestDevice(d.Host(), 0x1234, 0x5678, acmConfigDescriptor())

	idx, err := d.Open(context.Background(), dev)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !d.Mounted(idx) {
		t.Fatal("expected interface to be mounted")
	}

	reqs := m.requests()
	if len(reqs) != 2 {
		t.Fatalf("got %d control requests, want 2", len(reqs))
	}
	if reqs[0].RequestType != RequestTypeACMOut || reqs[0].Request != RequestSetControlLineState {
		t.Fatalf("request 0 = %+v, want SET_CONTROL_LINE_STATE", reqs[0])
	}
	if reqs[0].Value != ControlLineDTR|ControlLineRTS {
		t.Fatalf("SET_CONTROL_LINE_STATE wValue = %#x, want %#x", reqs[0].Value, ControlLineDTR|ControlLineRTS)
	}
	if reqs[1].RequestType != RequestTypeACMOut || reqs[1].Request != RequestSetLineCoding {
		t.Fatalf("request 1 = %+v, want SET_LINE_CODING", reqs[1])
	}
	wantCoding := []byte{0x00, 0xC2, 0x01, 0x00, 0x00, 0x00, 0x08}
	if string(m.controlData[1]) != string(wantCoding) {
		t.Fatalf("SET_LINE_CODING payload = % x, want % x", m.controlData[1], wantCoding)
	}
}

func TestOpenACMSkipsLineRequestsWithoutCapability(t *testing.T) {
	m := newMockHAL()
	d := newTestDriver(m)
	dev := newTestDevice(d.Host(), 0x1234, 0x5678, acmConfigDescriptorWithCap(0))

	idx, err := d.Open(context.Background(), dev)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !d.Mounted(idx) {
		t.Fatal("expected interface to be mounted")
	}

	if reqs := m.requests(); len(reqs) != 0 {
		t.Fatalf("got %d control requests, want 0 (no support_line_request capability)", len(reqs))
	}
}

func TestOpenACMSkipsDisabledLineOptions(t *testing.T) {
	m := newMockHAL()
	cfg := DefaultConfig()
	cfg.EnableLineCoding = false
	cfg.EnableLineState = false
	d := newTestDriverWithConfig(m, cfg)
	dev := newTestDevice(d.Host(), 0x1234, 0x5678, acmConfigDescriptor())

	if _, err := d.Open(context.Background(), dev); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if reqs := m.requests(); len(reqs) != 0 {
		t.Fatalf("got %d control requests, want 0 (both line options disabled)", len(reqs))
	}
}

func TestOpenFTDIIssuesExactControlSequence(t *testing.T) {
	m := newMockHAL()
	d := newTestDriver(m)
	dev := newTestDevice(d.Host(), FTDIVendorID, 0x6001, vendorConfigDescriptor())

	idx, err := d.Open(context.Background(), dev)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = idx

	reqs := m.requests()
	if len(reqs) != 3 {
		t.Fatalf("got %d control requests, want 3", len(reqs))
	}
	if reqs[0].Request != FTDIRequestReset || reqs[0].Value != FTDIResetSIO {
		t.Fatalf("request 0 = %+v, want RESET(SIO)", reqs[0])
	}
	if reqs[1].Request != FTDIRequestModemCtrl || reqs[1].Value != 0x0303 {
		t.Fatalf("request 1 = %+v, want MODEM_CTRL(0x0303)", reqs[1])
	}
	if reqs[2].Request != FTDIRequestSetBaud || reqs[2].Value != FTDIFixedBaudDivisor {
		t.Fatalf("request 2 = %+v, want SET_BAUD_RATE(%#x)", reqs[2], FTDIFixedBaudDivisor)
	}
	for _, r := range reqs {
		if r.RequestType != RequestTypeFTDIOut {
			t.Fatalf("bmRequestType = %#x, want %#x", r.RequestType, RequestTypeFTDIOut)
		}
	}
}

func TestOpenCP210xIssuesExactControlSequence(t *testing.T) {
	m := newMockHAL()
	d := newTestDriver(m)
	dev := newTestDevice(d.Host(), CP210xVendorID, 0xEA60, cp210xConfigDescriptor())

	_, err := d.Open(context.Background(), dev)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	reqs := m.requests()
	if len(reqs) != 3 {
		t.Fatalf("got %d control requests, want 3", len(reqs))
	}
	if reqs[0].Request != CP210xRequestIFCEnable || reqs[0].Value != CP210xIFCEnable {
		t.Fatalf("request 0 = %+v, want IFC_ENABLE(1)", reqs[0])
	}
	if reqs[1].Request != CP210xRequestSetBaud {
		t.Fatalf("request 1 = %+v, want SET_BAUDRATE", reqs[1])
	}
	wantBaud := []byte{0x80, 0x25, 0x00, 0x00}
	if string(m.controlData[1]) != string(wantBaud) {
		t.Fatalf("SET_BAUDRATE payload = % x, want % x", m.controlData[1], wantBaud)
	}
	if reqs[2].Request != CP210xRequestSetMHS {
		t.Fatalf("request 2 = %+v, want SET_MHS", reqs[2])
	}
	for _, r := range reqs {
		if r.RequestType != RequestTypeCP210xOut {
			t.Fatalf("bmRequestType = %#x, want %#x", r.RequestType, RequestTypeCP210xOut)
		}
	}
}

func TestOpenFTDISkipsDisabledLineOptions(t *testing.T) {
	m := newMockHAL()
	cfg := DefaultConfig()
	cfg.EnableLineCoding = false
	cfg.EnableLineState = false
	d := newTestDriverWithConfig(m, cfg)
	dev := newTestDevice(d.Host(), FTDIVendorID, 0x6001, vendorConfigDescriptor())

	if _, err := d.Open(context.Background(), dev); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	reqs := m.requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d control requests, want 1 (RESET only)", len(reqs))
	}
	if reqs[0].Request != FTDIRequestReset {
		t.Fatalf("request 0 = %+v, want RESET", reqs[0])
	}
}

func TestOpenCP210xSkipsDisabledLineOptions(t *testing.T) {
	m := newMockHAL()
	cfg := DefaultConfig()
	cfg.EnableLineCoding = false
	cfg.EnableLineState = false
	d := newTestDriverWithConfig(m, cfg)
	dev := newTestDevice(d.Host(), CP210xVendorID, 0xEA60, cp210xConfigDescriptor())

	if _, err := d.Open(context.Background(), dev); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	reqs := m.requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d control requests, want 1 (IFC_ENABLE only)", len(reqs))
	}
	if reqs[0].Request != CP210xRequestIFCEnable {
		t.Fatalf("request 0 = %+v, want IFC_ENABLE", reqs[0])
	}
}

func TestWriteSendsZLPOnPacketBoundary(t *testing.T) {
	m := newMockHAL()
	d := newTestDriver(m)
	dev := newTestDevice(d.Host(), 0x1234, 0x5678, acmConfigDescriptor())

	idx, err := d.Open(context.Background(), dev)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	n, err := d.Write(context.Background(), idx, make([]byte, 64))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 64 {
		t.Fatalf("Write() = %d, want 64", n)
	}

	waitUntil(t, time.Second, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.bulkLog) >= 2
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bulkLog) != 2 {
		t.Fatalf("got %d bulk-OUT transfers, want 2 (64-byte packet + ZLP)", len(m.bulkLog))
	}
	if len(m.bulkLog[0].data) != 64 {
		t.Fatalf("first transfer = %d bytes, want 64", len(m.bulkLog[0].data))
	}
	if len(m.bulkLog[1].data) != 0 {
		t.Fatalf("second transfer = %d bytes, want 0 (ZLP)", len(m.bulkLog[1].data))
	}
}

func TestRXStripsFTDIStatusBytes(t *testing.T) {
	m := newMockHAL()
	d := newTestDriver(m)
	dev := newTestDevice(d.Host(), FTDIVendorID, 0x6001, vendorConfigDescriptor())

	idx, err := d.Open(context.Background(), dev)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	m.rxFeed <- []byte{0x01, 0x60, 'h', 'i'}

	waitUntil(t, time.Second, func() bool {
		n, _ := d.Available(idx)
		return n == 2
	})

	buf := make([]byte, 8)
	n, err := d.Read(idx, buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(buf[:n]) != "hi" {
		t.Fatalf("Read() = %q, want \"hi\" (status bytes should be stripped)", buf[:n])
	}
}

func TestCloseDuringTrafficStopsRX(t *testing.T) {
	m := newMockHAL()
	d := newTestDriver(m)
	dev := newTestDevice(d.Host(), 0x1234, 0x5678, acmConfigDescriptor())

	idx, err := d.Open(context.Background(), dev)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := d.Close(idx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if d.Mounted(idx) {
		t.Fatal("expected interface to be unmounted after Close")
	}

	close(m.rxFeed)

	if _, err := d.Read(idx, make([]byte, 4)); err != ErrNotMounted {
		t.Fatalf("Read() after Close error = %v, want ErrNotMounted", err)
	}
}

func TestSetLineCodingBlocksUntilComplete(t *testing.T) {
	m := newMockHAL()
	d := newTestDriver(m)
	dev := newTestDevice(d.Host(), 0x1234, 0x5678, acmConfigDescriptor())

	idx, err := d.Open(context.Background(), dev)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	lc := LineCoding{BitRate: 9600, StopBits: StopBits2, Parity: ParityEven, DataBits: 7}
	if err := d.SetLineCoding(context.Background(), idx, lc); err != nil {
		t.Fatalf("SetLineCoding() error = %v", err)
	}

	got, err := d.LineCoding(idx)
	if err != nil {
		t.Fatalf("LineCoding() error = %v", err)
	}
	if got != lc {
		t.Fatalf("cached LineCoding = %+v, want %+v", got, lc)
	}
}

func TestSetLineCodingWrongProtocol(t *testing.T) {
	m := newMockHAL()
	d := newTestDriver(m)
	dev := newTestDevice(d.Host(), FTDIVendorID, 0x6001, vendorConfigDescriptor())

	idx, err := d.Open(context.Background(), dev)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := d.SetLineCoding(context.Background(), idx, DefaultLineCoding); err != ErrWrongProtocol {
		t.Fatalf("SetLineCoding() on FTDI error = %v, want ErrWrongProtocol", err)
	}
}

func TestSlotExhaustion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxInterfaces = 1
	m := newMockHAL()
	h := host.New(m)
	_ = h.Start(context.Background())
	d := New(h, cfg)
	_ = d.Start(context.Background())

	dev1 := newTestDevice(h, 0x1234, 0x5678, acmConfigDescriptor())
	if _, err := d.Open(context.Background(), dev1); err != nil {
		t.Fatalf("first Open() error = %v", err)
	}

	dev2 := newTestDevice(h, 0x1234, 0x5678, acmConfigDescriptor())
	if _, err := d.Open(context.Background(), dev2); err != ErrSlotExhausted {
		t.Fatalf("second Open() error = %v, want ErrSlotExhausted", err)
	}
}

func TestApplicationCallbacksFire(t *testing.T) {
	m := newMockHAL()
	d := newTestDriver(m)
	dev := newTestDevice(d.Host(), 0x1234, 0x5678, acmConfigDescriptor())

	var mu sync.Mutex
	var mounted, unmounted, rx bool

	d.SetOnMount(func(idx int) {
		mu.Lock()
		defer mu.Unlock()
		mounted = true
	})
	d.SetOnUnmount(func(idx int) {
		mu.Lock()
		defer mu.Unlock()
		unmounted = true
	})
	d.SetOnRX(func(idx int) {
		mu.Lock()
		defer mu.Unlock()
		rx = true
	})

	idx, err := d.Open(context.Background(), dev)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	mu.Lock()
	gotMounted := mounted
	mu.Unlock()
	if !gotMounted {
		t.Fatal("expected onMount to fire")
	}

	m.rxFeed <- []byte("hi")
	waitUntil(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return rx
	})

	if err := d.Close(idx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	mu.Lock()
	gotUnmounted := unmounted
	mu.Unlock()
	if !gotUnmounted {
		t.Fatal("expected onUnmount to fire")
	}
}
