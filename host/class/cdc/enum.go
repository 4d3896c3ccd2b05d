package cdc

import (
	"context"

	"github.com/usbserial/cdchost/host/hal"
)

// enumerate drives the protocol-specific control-transfer sequence for slot
// idx to completion, then calls done. Each variant's sequence is expressed
// as a chain of nested callbacks rather than a loop: every step's setup
// packet is submitted only from within the previous step's completion, so
// at most one control transfer is ever outstanding per interface - the same
// invariant process_acm_config/process_ftdi_config/process_cp210x_config
// hold in the original driver, just realized over submitControl instead of
// a switch on transfer-complete events.
func (d *Driver) enumerate(ctx context.Context, idx int, done func(err error)) {
	s, err := d.table.get(idx)
	if err != nil {
		done(err)
		return
	}

	switch s.protocol {
	case ProtocolACM:
		d.enumerateACM(ctx, idx, s, done)
	case ProtocolFTDI:
		d.enumerateFTDI(ctx, idx, s, done)
	case ProtocolCP210x:
		d.enumerateCP210x(ctx, idx, s, done)
	default:
		done(ErrWrongProtocol)
	}
}

func (d *Driver) enumerateACM(ctx context.Context, idx int, s *slot, done func(error)) {
	supportsLineRequest := s.acmCap&ACMCapLineCoding != 0

	setLineCoding := func() {
		if !d.cfg.EnableLineCoding || !supportsLineRequest {
			done(nil)
			return
		}
		var buf [LineCodingSize]byte
		lc := DefaultLineCoding
		lc.MarshalTo(buf[:])
		setup := hal.SetupPacket{
			RequestType: RequestTypeACMOut,
			Request:     RequestSetLineCoding,
			Value:       0,
			Index:       uint16(s.itfNum),
			Length:      LineCodingSize,
		}
		if err := d.submitControl(ctx, idx, setup, buf[:], func(n int, err error) {
			done(err)
		}); err != nil {
			done(err)
		}
	}

	// SET_CONTROL_LINE_STATE runs before SET_LINE_CODING, matching the
	// original driver's CONFIG_ACM_SET_CONTROL_LINE_STATE (0) preceding
	// CONFIG_ACM_SET_LINE_CODING. Both are gated on the interface actually
	// advertising support_line_request in its ACM functional descriptor.
	if !d.cfg.EnableLineState || !supportsLineRequest {
		setLineCoding()
		return
	}

	setup := hal.SetupPacket{
		RequestType: RequestTypeACMOut,
		Request:     RequestSetControlLineState,
		Value:       uint16(ControlLineDTR | ControlLineRTS),
		Index:       uint16(s.itfNum),
	}
	if err := d.submitControl(ctx, idx, setup, nil, func(n int, err error) {
		if err != nil {
			done(err)
			return
		}
		setLineCoding()
	}); err != nil {
		done(err)
	}
}

func (d *Driver) enumerateFTDI(ctx context.Context, idx int, s *slot, done func(error)) {
	setBaud := func() {
		if !d.cfg.EnableLineCoding {
			done(nil)
			return
		}
		setup := hal.SetupPacket{
			RequestType: RequestTypeFTDIOut,
			Request:     FTDIRequestSetBaud,
			Value:       uint16(FTDIFixedBaudDivisor),
			Index:       0,
		}
		if err := d.submitControl(ctx, idx, setup, nil, func(n int, err error) {
			done(err)
		}); err != nil {
			done(err)
		}
	}

	modemCtrl := func() {
		if !d.cfg.EnableLineState {
			setBaud()
			return
		}
		setup := hal.SetupPacket{
			RequestType: RequestTypeFTDIOut,
			Request:     FTDIRequestModemCtrl,
			// low byte: control bits to set; high byte: mask of bits to
			// affect. Asserting DTR and RTS on both.
			Value: uint16(ControlLineDTR|ControlLineRTS) | uint16(ControlLineDTR|ControlLineRTS)<<8,
			Index: 0,
		}
		if err := d.submitControl(ctx, idx, setup, nil, func(n int, err error) {
			if err != nil {
				done(err)
				return
			}
			setBaud()
		}); err != nil {
			done(err)
		}
	}

	setup := hal.SetupPacket{
		RequestType: RequestTypeFTDIOut,
		Request:     FTDIRequestReset,
		Value:       FTDIResetSIO,
		Index:       0,
	}
	if err := d.submitControl(ctx, idx, setup, nil, func(n int, err error) {
		if err != nil {
			done(err)
			return
		}
		modemCtrl()
	}); err != nil {
		done(err)
	}
}

func (d *Driver) enumerateCP210x(ctx context.Context, idx int, s *slot, done func(error)) {
	setMHS := func() {
		if !d.cfg.EnableLineState {
			done(nil)
			return
		}
		setup := hal.SetupPacket{
			RequestType: RequestTypeCP210xOut,
			Request:     CP210xRequestSetMHS,
			Value:       uint16(ControlLineDTR|ControlLineRTS) | uint16(ControlLineDTR|ControlLineRTS)<<8,
			Index:       uint16(s.itfNum),
		}
		if err := d.submitControl(ctx, idx, setup, nil, func(n int, err error) {
			done(err)
		}); err != nil {
			done(err)
		}
	}

	setBaud := func() {
		if !d.cfg.EnableLineCoding {
			setMHS()
			return
		}
		var baud uint32 = 9600
		buf := []byte{byte(baud), byte(baud >> 8), byte(baud >> 16), byte(baud >> 24)}
		setup := hal.SetupPacket{
			RequestType: RequestTypeCP210xOut,
			Request:     CP210xRequestSetBaud,
			Value:       0,
			Index:       uint16(s.itfNum),
			Length:      4,
		}
		if err := d.submitControl(ctx, idx, setup, buf, func(n int, err error) {
			if err != nil {
				done(err)
				return
			}
			setMHS()
		}); err != nil {
			done(err)
		}
	}

	setup := hal.SetupPacket{
		RequestType: RequestTypeCP210xOut,
		Request:     CP210xRequestIFCEnable,
		Value:       CP210xIFCEnable,
		Index:       uint16(s.itfNum),
	}
	if err := d.submitControl(ctx, idx, setup, nil, func(n int, err error) {
		if err != nil {
			done(err)
			return
		}
		setBaud()
	}); err != nil {
		done(err)
	}
}
