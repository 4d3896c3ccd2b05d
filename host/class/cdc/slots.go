package cdc

import (
	"sync"

	"github.com/usbserial/cdchost/host"
)

// slot is one entry of the Interface Table: everything the driver tracks
// about a single mounted CDC interface. Fields mirror the original driver's
// per-interface record (cdch_interface_t), split into the pieces
// open_*.go/enum.go/dispatch.go/xfer.go each touch.
//
// A slot's own mutex, not just the table's, is needed because the teacher's
// TransferManager runs completion callbacks from a worker pool: two
// callbacks for the SAME interface (e.g. a control completion racing a bulk
// completion) can run on different goroutines concurrently, which the
// original single-threaded, cooperative cdc_host.c never had to guard
// against.
type slot struct {
	mu sync.Mutex

	mounted bool
	dev     *host.Device

	itfNum     uint8 // communication (or sole, for vendor variants) interface
	dataItfNum uint8 // data interface, ACM only; 0 if none
	subClass   uint8
	protocol   Protocol
	acmCap     uint8 // ACM functional descriptor capability bits; ACM only

	notifEndpoint uint8 // interrupt IN endpoint, 0 if the interface has none

	epIn, epOut   uint8
	maxPacketSize uint16

	lineCoding LineCoding
	lineState  uint8 // DTR/RTS bits last written via SET_CONTROL_LINE_STATE (ACM) or MODEM_CTRL (FTDI)

	// txBusy is true while a TX bulk transfer chain is in flight for this
	// slot (xfer.go); it keeps Write from submitting a second concurrent
	// drain chain.
	txBusy bool

	tx *stream
	rx *stream
}

func (s *slot) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s = slot{}
}

// table is the fixed-capacity Interface Table (spec §4.1): a flat array of
// slots, sized by Config.MaxInterfaces, allocated linearly like the
// original driver's cdch_data[CFG_TUH_CDC_ITF_MAX].
type table struct {
	mu    sync.Mutex
	slots []slot
}

func newTable(capacity int) *table {
	return &table{slots: make([]slot, capacity)}
}

// allocate reserves the first free slot, returning its index.
func (t *table) allocate() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		if !t.slots[i].mounted {
			t.slots[i] = slot{mounted: true}
			return i, nil
		}
	}
	return -1, ErrSlotExhausted
}

// release returns a slot to the free pool.
func (t *table) release(idx int) {
	if idx < 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < len(t.slots) {
		t.slots[idx] = slot{}
	}
}

// get returns the mounted slot at idx.
func (t *table) get(idx int) (*slot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.slots) || !t.slots[idx].mounted {
		return nil, ErrNotMounted
	}
	return &t.slots[idx], nil
}

// lookupByInterface finds the mounted slot for (dev, itfNum), used to route
// a notification-endpoint or control completion back to its owning slot.
func (t *table) lookupByInterface(dev *host.Device, itfNum uint8) (int, *slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		s := &t.slots[i]
		if s.mounted && s.dev == dev && (s.itfNum == itfNum || s.dataItfNum == itfNum) {
			return i, s
		}
	}
	return -1, nil
}

// lookupByEndpoint finds the mounted slot owning endpoint addr on dev, used
// to route a bulk completion back to its stream pair.
func (t *table) lookupByEndpoint(dev *host.Device, addr uint8) (int, *slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		s := &t.slots[i]
		if s.mounted && s.dev == dev && (s.epIn == addr || s.epOut == addr) {
			return i, s
		}
	}
	return -1, nil
}

// forEachMounted calls fn for every currently mounted slot's index.
func (t *table) forEachMounted(fn func(idx int)) {
	t.mu.Lock()
	indices := make([]int, 0, len(t.slots))
	for i := range t.slots {
		if t.slots[i].mounted {
			indices = append(indices, i)
		}
	}
	t.mu.Unlock()
	for _, i := range indices {
		fn(i)
	}
}
