package s7

import "testing"

func TestDecodeHWVersion(t *testing.T) {
	cases := []struct {
		hw   []byte
		want string
	}{
		{[]byte{0x21, 0x00}, "V2.1"}, // high nibble 2, low nibble 1
		{[]byte{0x00, 0x03}, "V3"},   // hw[0] zero: hw[1] alone, decimal
		{[]byte{0x10, 0x00}, "V1.0"},
	}
	for _, c := range cases {
		if got := decodeHWVersion(c.hw); got != c.want {
			t.Errorf("decodeHWVersion(% X) = %q, want %q", c.hw, got, c.want)
		}
	}
}

func TestDecodeFWVersion(t *testing.T) {
	cases := []struct {
		fw   []byte
		want string
	}{
		{[]byte{0x20, 0x20}, "N/A"},
		{[]byte{0x02, 0x01}, "V2.1"},
	}
	for _, c := range cases {
		if got := decodeFWVersion(c.fw); got != c.want {
			t.Errorf("decodeFWVersion(% X) = %q, want %q", c.fw, got, c.want)
		}
	}
}

func TestModuleRecordDecode(t *testing.T) {
	rec := make([]byte, 28)
	rec[0], rec[1] = 0x00, 0x01 // module type id
	copy(rec[2:22], "6ES7 315-2AG10-0AB0")
	rec[22], rec[23] = 0x21, 0x00 // HW version -> V2.1
	rec[24], rec[25] = 0x02, 0x01 // FW version -> V2.1

	info := ModuleInfo{
		OrderNumber:  trimZeros(rec[2:22]),
		HWVersion:    decodeHWVersion(rec[22:24]),
		FWVersion:    decodeFWVersion(rec[24:26]),
		ModuleTypeID: "0x0001",
	}
	if info.OrderNumber != "6ES7 315-2AG10-0AB0" {
		t.Errorf("OrderNumber = %q", info.OrderNumber)
	}
	if info.HWVersion != "V2.1" {
		t.Errorf("HWVersion = %q, want V2.1", info.HWVersion)
	}
	if info.FWVersion != "V2.1" {
		t.Errorf("FWVersion = %q, want V2.1", info.FWVersion)
	}
}

func TestCPUStatusString(t *testing.T) {
	if CPURun.String() != "RUN" {
		t.Errorf("CPURun.String() = %q, want RUN", CPURun.String())
	}
	if CPUStop.String() != "STOP" {
		t.Errorf("CPUStop.String() = %q, want STOP", CPUStop.String())
	}
}
