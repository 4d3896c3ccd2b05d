package cdc

import (
	"context"
	"sync"

	"github.com/usbserial/cdchost/host"
	"github.com/usbserial/cdchost/pkg"
)

// Driver is a USB host-side CDC class driver instance: an interface table,
// a dedicated TransferManager, and the configuration controlling
// enumeration behavior. One Driver can mount interfaces across many
// devices; it does not own the underlying host.Host (devices are still
// enumerated and reference-counted by it).
type Driver struct {
	host  *host.Host
	tm    *host.TransferManager
	cfg   Config
	table *table

	// Application callbacks, one set per Driver (process-wide, not
	// per-interface), in the style of device/class/cdc.ACM's
	// SetOnLineCodingChange/SetOnControlStateChange/SetOnBreak setters.
	cbMu         sync.RWMutex
	onMount      func(idx int)
	onUnmount    func(idx int)
	onRX         func(idx int)
	onTXComplete func(idx int)
}

// New creates a Driver bound to an already-constructed host.Host.
func New(h *host.Host, cfg Config) *Driver {
	d := &Driver{
		host:  h,
		cfg:   cfg,
		table: newTable(cfg.MaxInterfaces),
	}
	d.tm = host.NewTransferManager(h, cfg.Workers)
	return d
}

// Host returns the host.Host this driver is bound to.
func (d *Driver) Host() *host.Host {
	return d.host
}

// SetOnMount registers the callback fired after an interface finishes
// enumeration and RX is armed, right before Open returns its index.
func (d *Driver) SetOnMount(cb func(idx int)) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.onMount = cb
}

// SetOnUnmount registers the callback fired when an interface is unmounted,
// whether by an explicit Close or by Stop's CloseAll sweep.
func (d *Driver) SetOnUnmount(cb func(idx int)) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.onUnmount = cb
}

// SetOnRX registers the callback fired whenever a bulk-IN transfer delivers
// new bytes into an interface's receive buffer.
func (d *Driver) SetOnRX(cb func(idx int)) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.onRX = cb
}

// SetOnTXComplete registers the callback fired whenever a queued bulk-OUT
// transfer (including a trailing zero-length packet) finishes transmitting.
func (d *Driver) SetOnTXComplete(cb func(idx int)) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.onTXComplete = cb
}

func (d *Driver) fireMount(idx int) {
	d.cbMu.RLock()
	cb := d.onMount
	d.cbMu.RUnlock()
	if cb != nil {
		cb(idx)
	}
}

func (d *Driver) fireUnmount(idx int) {
	d.cbMu.RLock()
	cb := d.onUnmount
	d.cbMu.RUnlock()
	if cb != nil {
		cb(idx)
	}
}

func (d *Driver) fireRX(idx int) {
	d.cbMu.RLock()
	cb := d.onRX
	d.cbMu.RUnlock()
	if cb != nil {
		cb(idx)
	}
}

func (d *Driver) fireTXComplete(idx int) {
	d.cbMu.RLock()
	cb := d.onTXComplete
	d.cbMu.RUnlock()
	if cb != nil {
		cb(idx)
	}
}

// Start starts the driver's TransferManager. Call once, after host.Start.
func (d *Driver) Start(ctx context.Context) error {
	return d.tm.Start(ctx)
}

// Stop stops the driver's TransferManager and unmounts every interface.
func (d *Driver) Stop() error {
	d.CloseAll()
	return d.tm.Stop()
}

// Open recognizes and mounts a CDC interface on dev: it tries each Protocol
// Opener in turn, claims the matching endpoints, runs that variant's
// enumeration sequence to completion, and arms continuous RX. It blocks
// until enumeration finishes or ctx is cancelled, and returns the interface
// index used by every other Driver method.
func (d *Driver) Open(ctx context.Context, dev *host.Device) (int, error) {
	res, err := tryOpeners(dev)
	if err != nil {
		return -1, err
	}

	idx, err := d.table.allocate()
	if err != nil {
		return -1, err
	}

	if err := dev.ClaimInterface(res.itfNum); err != nil {
		d.table.release(idx)
		return -1, err
	}
	if res.dataItfNum != 0 && res.dataItfNum != res.itfNum {
		if err := dev.ClaimInterface(res.dataItfNum); err != nil {
			dev.ReleaseInterface(res.itfNum)
			d.table.release(idx)
			return -1, err
		}
	}

	s, _ := d.table.get(idx)
	s.mu.Lock()
	s.dev = dev
	s.itfNum = res.itfNum
	s.dataItfNum = res.dataItfNum
	s.subClass = res.subClass
	s.protocol = res.protocol
	s.acmCap = res.acmCap
	s.notifEndpoint = res.notifEndpoint
	s.epIn = res.epIn
	s.epOut = res.epOut
	s.maxPacketSize = res.maxPacketSize
	s.lineCoding = DefaultLineCoding
	s.tx = newStream(d.cfg.StreamBufferSize)
	s.rx = newStream(d.cfg.StreamBufferSize)
	s.mu.Unlock()

	done := make(chan error, 1)
	d.enumerate(ctx, idx, func(err error) { done <- err })

	select {
	case err := <-done:
		if err != nil {
			d.cleanupFailedOpen(dev, res, idx)
			return -1, err
		}
	case <-ctx.Done():
		d.cleanupFailedOpen(dev, res, idx)
		return -1, ctx.Err()
	}

	d.startRX(ctx, idx)

	pkg.LogInfo(pkg.ComponentCDC, "interface mounted",
		"index", idx, "protocol", s.protocol.String(), "interface", s.itfNum)
	d.fireMount(idx)

	return idx, nil
}

func (d *Driver) cleanupFailedOpen(dev *host.Device, res *openResult, idx int) {
	dev.ReleaseInterface(res.itfNum)
	if res.dataItfNum != 0 && res.dataItfNum != res.itfNum {
		dev.ReleaseInterface(res.dataItfNum)
	}
	d.table.release(idx)
}

// Close unmounts interface idx: releases its claimed interfaces and frees
// its slot. Any TX data still queued is discarded.
func (d *Driver) Close(idx int) error {
	s, err := d.table.get(idx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	dev := s.dev
	itfNum := s.itfNum
	dataItfNum := s.dataItfNum
	tx, rx := s.tx, s.rx
	s.mu.Unlock()

	if tx != nil {
		tx.Close()
	}
	if rx != nil {
		rx.Close()
	}

	_ = dev.ReleaseInterface(itfNum)
	if dataItfNum != 0 && dataItfNum != itfNum {
		_ = dev.ReleaseInterface(dataItfNum)
	}

	d.table.release(idx)
	pkg.LogInfo(pkg.ComponentCDC, "interface unmounted", "index", idx)
	d.fireUnmount(idx)
	return nil
}

// CloseAll unmounts every currently mounted interface.
func (d *Driver) CloseAll() {
	d.table.forEachMounted(func(idx int) {
		_ = d.Close(idx)
	})
}

// Mounted reports whether idx currently names a mounted interface.
func (d *Driver) Mounted(idx int) bool {
	_, err := d.table.get(idx)
	return err == nil
}
