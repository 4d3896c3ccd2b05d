package cdc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/usbserial/cdchost/device"
	devicecdc "github.com/usbserial/cdchost/device/class/cdc"
	devicefifo "github.com/usbserial/cdchost/device/hal/fifo"
	"github.com/usbserial/cdchost/host"
	hostfifo "github.com/usbserial/cdchost/host/hal/fifo"
)

// TestFIFOLoopbackACM drives the new host-side ACM opener and enumeration
// machine against the existing device-side CDC-ACM gadget over the
// in-process FIFO transport, asserting byte-for-byte round-trip fidelity.
func TestFIFOLoopbackACM(t *testing.T) {
	busDir, err := os.MkdirTemp("", "cdc-fifo-loopback-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(busDir)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// --- device side: the existing CDC-ACM gadget ---

	devHAL := devicefifo.New(busDir)

	builder := device.NewDeviceBuilder().
		WithVendorProduct(0x1234, 0x5678).
		WithStrings("cdchost", "CDC-ACM Loopback", "0001").
		AddConfiguration(1)

	acm := devicecdc.NewACM()
	acm.ConfigureDevice(builder, 0x81, 0x82, 0x02)

	dev, err := builder.Build(ctx)
	if err != nil {
		t.Fatalf("builder.Build: %v", err)
	}
	if err := acm.AttachToInterfaces(dev, 1, 0, 1); err != nil {
		t.Fatalf("AttachToInterfaces: %v", err)
	}

	stack := device.NewStack(dev, devHAL)
	acm.SetStack(stack)

	if err := stack.Start(ctx); err != nil {
		t.Fatalf("stack.Start: %v", err)
	}
	defer stack.Stop()

	// --- host side: the CDC driver under test ---

	hostHAL := hostfifo.NewHostHAL(busDir)
	h := host.New(hostHAL)
	if err := h.Start(ctx); err != nil {
		t.Fatalf("host.Start: %v", err)
	}
	defer h.Stop()

	drv := New(h, DefaultConfig())
	if err := drv.Start(ctx); err != nil {
		t.Fatalf("driver.Start: %v", err)
	}
	defer drv.Stop()

	hostDev, err := h.WaitDevice(ctx)
	if err != nil {
		t.Fatalf("WaitDevice: %v", err)
	}

	idx, err := drv.Open(ctx, hostDev)
	if err != nil {
		t.Fatalf("drv.Open: %v", err)
	}
	defer drv.Close(idx)

	info, err := drv.Info(idx)
	if err != nil {
		t.Fatalf("drv.Info: %v", err)
	}
	if info.Protocol != ProtocolACM {
		t.Fatalf("Protocol = %v, want ACM", info.Protocol)
	}

	// Device echoes whatever it reads; drive the round trip from acm.Read
	// in a background goroutine, mirroring the gadget's own main loop.
	echoDone := make(chan error, 1)
	go func() {
		buf := make([]byte, 64)
		readCtx, readCancel := context.WithTimeout(ctx, 10*time.Second)
		defer readCancel()
		n, err := acm.Read(readCtx, buf)
		if err != nil {
			echoDone <- err
			return
		}
		writeCtx, writeCancel := context.WithTimeout(ctx, 10*time.Second)
		defer writeCancel()
		_, err = acm.Write(writeCtx, buf[:n])
		echoDone <- err
	}()

	payload := []byte("hello over fifo cdc")
	if _, err := drv.Write(ctx, idx, payload); err != nil {
		t.Fatalf("drv.Write: %v", err)
	}

	select {
	case err := <-echoDone:
		if err != nil {
			t.Fatalf("device echo failed: %v", err)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for device to echo")
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		if n, _ := drv.Available(idx); n >= len(payload) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for echoed bytes")
		}
		time.Sleep(10 * time.Millisecond)
	}

	out := make([]byte, len(payload))
	n, err := drv.Read(idx, out)
	if err != nil {
		t.Fatalf("drv.Read: %v", err)
	}
	if string(out[:n]) != string(payload) {
		t.Fatalf("echoed payload = %q, want %q", out[:n], payload)
	}
}
