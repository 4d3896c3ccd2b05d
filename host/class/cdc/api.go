package cdc

import (
	"context"

	"github.com/usbserial/cdchost/host/hal"
)

// Info reports a mounted interface's identity and current line state; the
// Go equivalent of tuh_cdc_itf_get_info from the original driver.
type Info struct {
	Protocol      Protocol
	VendorID      uint16
	ProductID     uint16
	InterfaceNum  uint8
	DataInterface uint8
	LineCoding    LineCoding
	LineState     uint8
}

// Info returns a snapshot of interface idx's identity and cached line state.
func (d *Driver) Info(idx int) (Info, error) {
	s, err := d.table.get(idx)
	if err != nil {
		return Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Protocol:      s.protocol,
		VendorID:      s.dev.VendorID(),
		ProductID:     s.dev.ProductID(),
		InterfaceNum:  s.itfNum,
		DataInterface: s.dataItfNum,
		LineCoding:    s.lineCoding,
		LineState:     s.lineState,
	}, nil
}

// Read copies up to len(out) bytes already received into out, without
// blocking. Returns 0 if nothing is queued.
func (d *Driver) Read(idx int, out []byte) (int, error) {
	s, err := d.table.get(idx)
	if err != nil {
		return 0, err
	}
	return s.rx.Read(out), nil
}

// Peek copies up to len(out) queued received bytes into out without
// removing them from the buffer.
func (d *Driver) Peek(idx int, out []byte) (int, error) {
	s, err := d.table.get(idx)
	if err != nil {
		return 0, err
	}
	return s.rx.Peek(out), nil
}

// Available returns the number of received bytes currently queued.
func (d *Driver) Available(idx int) (int, error) {
	s, err := d.table.get(idx)
	if err != nil {
		return 0, err
	}
	return s.rx.Available(), nil
}

// Clear discards all queued received bytes.
func (d *Driver) Clear(idx int) error {
	s, err := d.table.get(idx)
	if err != nil {
		return err
	}
	s.rx.Clear()
	return nil
}

// Write queues data for transmission, returning the number of bytes
// accepted (which may be less than len(data) if the TX ring is full).
// Queued data drains over one or more bulk-OUT transfers in the
// background; Write itself never blocks on the wire.
func (d *Driver) Write(ctx context.Context, idx int, data []byte) (int, error) {
	s, err := d.table.get(idx)
	if err != nil {
		return 0, err
	}
	return d.enqueueWrite(ctx, idx, s, data), nil
}

// WriteAvailable returns the number of bytes of TX ring capacity left.
func (d *Driver) WriteAvailable(idx int) (int, error) {
	s, err := d.table.get(idx)
	if err != nil {
		return 0, err
	}
	return s.tx.Free(), nil
}

// LineCoding returns the cached line coding last acknowledged by the
// device (or the default, before any GET/SET_LINE_CODING has completed).
// ACM only; other protocols return ErrWrongProtocol.
func (d *Driver) LineCoding(idx int) (LineCoding, error) {
	s, err := d.table.get(idx)
	if err != nil {
		return LineCoding{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.protocol != ProtocolACM {
		return LineCoding{}, ErrWrongProtocol
	}
	return s.lineCoding, nil
}

// SetLineCoding issues SET_LINE_CODING and blocks until it completes. ACM
// only: FTDI and CP210x have no equivalent on-wire line-coding request
// beyond the fixed baud rate set during enumeration (see vendor.go).
func (d *Driver) SetLineCoding(ctx context.Context, idx int, lc LineCoding) error {
	s, err := d.table.get(idx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	protocol, itfNum := s.protocol, s.itfNum
	s.mu.Unlock()
	if protocol != ProtocolACM {
		return ErrWrongProtocol
	}

	var buf [LineCodingSize]byte
	lc.MarshalTo(buf[:])
	setup := hal.SetupPacket{
		RequestType: RequestTypeACMOut,
		Request:     RequestSetLineCoding,
		Index:       uint16(itfNum),
		Length:      LineCodingSize,
	}

	done := make(chan error, 1)
	if err := d.submitControl(ctx, idx, setup, buf[:], func(n int, err error) {
		done <- err
	}); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetControlLineState issues SET_CONTROL_LINE_STATE with the given DTR/RTS
// assertions and blocks until it completes. ACM only.
func (d *Driver) SetControlLineState(ctx context.Context, idx int, dtr, rts bool) error {
	s, err := d.table.get(idx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	protocol, itfNum := s.protocol, s.itfNum
	s.mu.Unlock()
	if protocol != ProtocolACM {
		return ErrWrongProtocol
	}

	var value uint16
	if dtr {
		value |= ControlLineDTR
	}
	if rts {
		value |= ControlLineRTS
	}

	setup := hal.SetupPacket{
		RequestType: RequestTypeACMOut,
		Request:     RequestSetControlLineState,
		Value:       value,
		Index:       uint16(itfNum),
	}

	done := make(chan error, 1)
	if err := d.submitControl(ctx, idx, setup, nil, func(n int, err error) {
		done <- err
	}); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
