// Package cdc implements a USB host-side class driver for Communications
// Device Class (CDC) serial adapters: standards-based CDC-ACM, and the
// vendor-specific FTDI and CP210x families.
//
// # Architecture
//
// A mounted interface is tracked as a slot in a fixed-capacity interface
// table (see slots.go). Opening an interface (open_acm.go, open_ftdi.go,
// open_cp210x.go) parses its descriptor block and claims its endpoints but
// issues no control traffic; the per-variant enumeration state machine
// (enum.go) then drives a chain of control transfers whose completions route
// through a single trampoline (dispatch.go) that keeps the cached line
// coding and line state coherent before calling back into the application.
// Steady-state byte I/O runs over a ring-buffered stream pair per interface
// (stream.go), refilled and drained from bulk-endpoint completions
// (xfer.go).
//
// # Usage
//
//	h := host.New(linuxhal.NewHostHAL())
//	h.Start(ctx)
//	dev, _ := h.WaitDevice(ctx)
//
//	drv := cdc.New(h, cdc.DefaultConfig())
//	drv.SetOnMount(func(idx int) { log.Printf("mounted %d", idx) })
//	drv.SetOnRX(func(idx int) { /* wake a reader */ })
//	drv.Start(ctx)
//	idx, err := drv.Open(ctx, dev)
//	if err != nil {
//	    return err
//	}
//	drv.Write(ctx, idx, []byte("AT\r\n"))
//	buf := make([]byte, 64)
//	n, _ := drv.Read(idx, buf)
//	_ = n
//
// # Protocol variants
//
// ACM uses standards-based class requests (SET_LINE_CODING,
// SET_CONTROL_LINE_STATE) addressed by interface number. FTDI and CP210x use
// vendor requests addressed to the device or interface. A vendor-class
// interface is matched by the device's VID/PID allow-list (see vendor.go)
// together with the interface's subclass, protocol and endpoint count
// (0xff/0xff/2 for FTDI, 0/0/2 for CP210x). All three share the same interface table, stream pair, and
// dispatcher; only the opener and enumeration sequence differ.
package cdc
