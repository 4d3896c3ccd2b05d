package cdc

import (
	"context"

	"github.com/usbserial/cdchost/host"
	"github.com/usbserial/cdchost/host/hal"
	"github.com/usbserial/cdchost/pkg"
)

// startRX arms the first bulk-IN read for a newly mounted interface.
// Completions resubmit themselves (rxComplete), so the endpoint stays
// continuously armed for the life of the interface - the Go analogue of
// cdch_xfer_cb always re-arming its IN transfer, except failures are
// reported and the endpoint is left disarmed instead of hitting the
// original driver's TU_ASSERT.
func (d *Driver) startRX(ctx context.Context, idx int) {
	s, err := d.table.get(idx)
	if err != nil {
		return
	}
	d.submitRX(ctx, idx, s)
}

func (d *Driver) submitRX(ctx context.Context, idx int, s *slot) {
	if s.rx.Closed() {
		return
	}
	buf := make([]byte, s.maxPacketSize)
	xfer := &host.Transfer{
		Address:  s.dev.Address(),
		Endpoint: s.epIn,
		Type:     hal.TransferBulk,
		Data:     buf,
		Context:  ctx,
	}
	xfer.Callback = func(t *host.Transfer, n int, err error) {
		d.rxComplete(ctx, idx, s, buf, n, err)
	}
	if _, err := d.tm.Submit(xfer); err != nil {
		pkg.LogWarn(pkg.ComponentCDC, "rx submit failed", "index", idx, "error", err)
	}
}

// rxComplete drains one bulk-IN transfer into the RX ring and rearms the
// endpoint. FTDI prefixes every IN packet with a 2-byte modem/line status
// pair; that's inline on the data endpoint itself (not the notification
// endpoint the driver leaves unhandled per non-goals) and must still be
// stripped or it corrupts the byte stream.
func (d *Driver) rxComplete(ctx context.Context, idx int, s *slot, buf []byte, n int, err error) {
	if err != nil {
		pkg.LogWarn(pkg.ComponentCDC, "rx transfer failed", "index", idx, "error", err)
		return
	}

	data := buf[:n]
	if s.protocol == ProtocolFTDI && len(data) >= 2 {
		data = data[2:]
	}

	if len(data) > 0 {
		written := s.rx.Write(data)
		if written < len(data) {
			pkg.LogWarn(pkg.ComponentCDC, "rx ring overrun, bytes dropped",
				"index", idx, "dropped", len(data)-written)
		}
		d.fireRX(idx)
	}

	d.submitRX(ctx, idx, s)
}

// enqueueWrite queues data into the TX ring and, if no drain chain is
// already in flight for this slot, starts one.
func (d *Driver) enqueueWrite(ctx context.Context, idx int, s *slot, data []byte) int {
	n := s.tx.Write(data)

	s.mu.Lock()
	alreadyBusy := s.txBusy
	s.txBusy = true
	s.mu.Unlock()

	if !alreadyBusy {
		d.submitTX(ctx, idx, s)
	}

	return n
}

// submitTX drains the next packet-sized chunk from the TX ring and submits
// it as a bulk-OUT transfer, or sends a zero-length packet if the ring just
// emptied on a packet-size boundary (write_zlp_if_needed), or marks the
// slot idle if there's nothing left to do.
func (d *Driver) submitTX(ctx context.Context, idx int, s *slot) {
	if s.tx.Closed() {
		s.mu.Lock()
		s.txBusy = false
		s.mu.Unlock()
		return
	}

	buf := make([]byte, s.maxPacketSize)
	n := s.tx.drainFor(buf, int(s.maxPacketSize))

	if n == 0 {
		if s.tx.takeZLP() {
			d.submitTXChunk(ctx, idx, s, nil)
			return
		}
		s.mu.Lock()
		s.txBusy = false
		s.mu.Unlock()
		return
	}

	d.submitTXChunk(ctx, idx, s, buf[:n])
}

func (d *Driver) submitTXChunk(ctx context.Context, idx int, s *slot, data []byte) {
	xfer := &host.Transfer{
		Address:  s.dev.Address(),
		Endpoint: s.epOut,
		Type:     hal.TransferBulk,
		Data:     data,
		Context:  ctx,
	}
	xfer.Callback = func(t *host.Transfer, n int, err error) {
		if err != nil {
			pkg.LogWarn(pkg.ComponentCDC, "tx transfer failed", "index", idx, "error", err)
			s.mu.Lock()
			s.txBusy = false
			s.mu.Unlock()
			return
		}
		d.fireTXComplete(idx)
		d.submitTX(ctx, idx, s)
	}
	if _, err := d.tm.Submit(xfer); err != nil {
		pkg.LogWarn(pkg.ComponentCDC, "tx submit failed", "index", idx, "error", err)
		s.mu.Lock()
		s.txBusy = false
		s.mu.Unlock()
	}
}
