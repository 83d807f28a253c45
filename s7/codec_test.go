package s7

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func hexBytes(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatalf("invalid hex literal: %v", err)
	}
	return b
}

// S1 — COTP CR bytes, rack 0 slot 1, default local TSAP 0x0100.
func TestCOTPConnectionRequestBytes(t *testing.T) {
	want := hexBytes(t, "03 00 00 16 11 E0 00 00 00 00 00 C0 01 0A C1 02 01 00 C2 02 01 01")

	local := uint16(defaultLocalTSAP)
	remote := TSAPFromRackSlot(0, 1)
	cr := buildCOTPConnectionRequest(local, remote)
	got := wrapTPKT(cr)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("COTP CR bytes mismatch (-want +got):\n%s", diff)
	}
}

// S2 — COMM_SETUP job, PDU-ref 0x0001, requested PDU 0x03C0.
func TestSetupCommRequestBytes(t *testing.T) {
	want := hexBytes(t, "03 00 00 19 02 F0 80 32 01 00 00 00 01 00 08 00 00 F0 00 00 01 00 01 03 C0")

	req := buildSetupCommRequest(1, 0x03C0)
	got := wrapTPKT(wrapCOTPData(req))

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("COMM_SETUP bytes mismatch (-want +got):\n%s", diff)
	}
}

// S3 — READ_VAR one item DB1,I30.
func TestReadVarItemSpecBytes(t *testing.T) {
	want := hexBytes(t, "12 0A 10 04 00 01 00 01 84 00 00 F0")

	tag := MustTag(AreaDB, 1, Int, 30, 0, 1)
	item := tagToReadItem(tag)
	got := encodeS7AnyItem(item)

	if !bytes.Equal(want, got) {
		t.Errorf("item spec = % X, want % X", got, want)
	}
}

// S3 (response half) — FF 04 00 10 followed by the two INT payload bytes.
func TestReadVarResponseDecodeOneItem(t *testing.T) {
	tag := MustTag(AreaDB, 1, Int, 30, 0, 1)
	item := tagToReadItem(tag)

	body := hexBytes(t, "FF 04 00 10 61 A8") // 25000 = 0x61A8
	ackData := append([]byte{s7ProtocolID, s7MsgAckData, 0, 0, 0, 1, 0, 2, 0, 0, 0, 0}, // 12-byte header, zero error
		append([]byte{s7FuncRead, 1}, body...)...)

	results, err := parseReadVarResponse(ackData, []readItem{item})
	if err != nil {
		t.Fatalf("parseReadVarResponse error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].code != RCSuccess {
		t.Fatalf("code = %v, want RCSuccess", results[0].code)
	}
	v, err := decodeScalar(Int, 0, results[0].data)
	if err != nil {
		t.Fatalf("decodeScalar error: %v", err)
	}
	n, _ := v.Int()
	if n != 25000 {
		t.Errorf("decoded value = %d, want 25000", n)
	}
}

func TestWriteVarRequestResponseRoundTrip(t *testing.T) {
	tag := MustTag(AreaDB, 1, Int, 30, 0, 1)
	payload, err := encodeTagValue(tag, IntValue(25000))
	if err != nil {
		t.Fatalf("encodeTagValue error: %v", err)
	}
	item := writeItem{readItem: tagToReadItem(tag), data: payload}
	req := buildWriteVarRequest(7, []writeItem{item})

	s7ref, err := pduReferenceOf(req)
	if err != nil || s7ref != 7 {
		t.Fatalf("pduReferenceOf = %d, %v, want 7, nil", s7ref, err)
	}

	ackData := append([]byte{s7ProtocolID, s7MsgAckData, 0, 0, 0, 7, 0, 2, 0, 0, 0, 0},
		s7FuncWrite, 1, byte(RCSuccess))
	codes, err := parseWriteVarResponse(ackData, 1)
	if err != nil {
		t.Fatalf("parseWriteVarResponse error: %v", err)
	}
	if codes[0] != RCSuccess {
		t.Errorf("code = %v, want RCSuccess", codes[0])
	}
}

// A BIT array write must declare its actual bit count, not a hardcoded 1.
func TestWriteVarRequestBitArrayLength(t *testing.T) {
	tag := MustTag(AreaDB, 1, Bit, 0, 0, 12)
	payload, err := encodeTagValue(tag, ArrayValue([]Value{
		BoolValue(true), BoolValue(false), BoolValue(true), BoolValue(false),
		BoolValue(true), BoolValue(false), BoolValue(true), BoolValue(false),
		BoolValue(true), BoolValue(true), BoolValue(false), BoolValue(false),
	}))
	if err != nil {
		t.Fatalf("encodeTagValue error: %v", err)
	}
	item := writeItem{readItem: tagToReadItem(tag), data: payload, isBit: true}
	req := buildWriteVarRequest(1, []writeItem{item})

	// data section starts right after the 10-byte S7 header, the 2-byte
	// WRITE_VAR parameter head, and one 12-byte S7ANY item: offset 24.
	section := req[24:]
	if section[1] != 0x03 {
		t.Fatalf("data transport size = 0x%02X, want 0x03 (bit)", section[1])
	}
	gotBitLen := int(section[2])<<8 | int(section[3])
	if gotBitLen != 12 {
		t.Errorf("data bit length = %d, want 12 (tag.Length)", gotBitLen)
	}
}

func TestCOTPDataWrapStrip(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	frame := wrapCOTPData(payload)
	got, err := stripCOTPData(frame)
	if err != nil {
		t.Fatalf("stripCOTPData error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("stripCOTPData = % X, want % X", got, payload)
	}
}

func TestSZLRequestResponseRoundTrip(t *testing.T) {
	req := buildSZLReadRequest(3, 0, szlCPUDiagnosticStatus, 0x0000)
	ref, err := pduReferenceOf(req)
	if err != nil || ref != 3 {
		t.Fatalf("pduReferenceOf = %d, %v", ref, err)
	}

	record := []byte{0x00, 0x00, 0x00, 0x08} // CPU status byte = RUN
	data := append([]byte{0xFF, 0x09, byte(len(record) >> 8), byte(len(record))}, record...)
	params := []byte{0x00, 0x01, 0x12, 0x04, 0x11, szlFunctionGroup<<4 | 0x04, szlSubfuncRead, 0x00}
	ackData := append([]byte{s7ProtocolID, s7MsgAckData, 0, 0, 0, 3, byte(len(params) >> 8), byte(len(params)), byte(len(data) >> 8), byte(len(data)), 0, 0}, params...)
	ackData = append(ackData, data...)

	payload, seq, last, err := parseSZLResponse(ackData)
	if err != nil {
		t.Fatalf("parseSZLResponse error: %v", err)
	}
	if !last {
		t.Error("expected last-data-unit flag set")
	}
	if seq != 0 {
		t.Errorf("seq = %d, want 0", seq)
	}
	if CPUStatus(payload[3]) != CPURun {
		t.Errorf("decoded CPU status = %v, want RUN", CPUStatus(payload[3]))
	}
}
