package cdc

import "testing"

func TestDetectVendor(t *testing.T) {
	cases := []struct {
		vid, pid uint16
		want     Protocol
	}{
		{FTDIVendorID, 0x6001, ProtocolFTDI},
		{FTDIVendorID, 0x6015, ProtocolFTDI},
		{CP210xVendorID, 0xEA60, ProtocolCP210x},
		{FTDIVendorID, 0x9999, ProtocolUnknown},
		{0x1234, 0x5678, ProtocolUnknown},
	}
	for _, c := range cases {
		if got := DetectVendor(c.vid, c.pid); got != c.want {
			t.Errorf("DetectVendor(%#x, %#x) = %v, want %v", c.vid, c.pid, got, c.want)
		}
	}
}
