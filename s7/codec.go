package s7

import (
	"encoding/binary"
)

// wrapTPKT prepends the 4-byte RFC 1006 TPKT header (version, reserved,
// total length) to payload.
func wrapTPKT(payload []byte) []byte {
	total := tpktHeaderSize + len(payload)
	out := make([]byte, total)
	out[0] = tpktVersion
	out[1] = 0x00
	binary.BigEndian.PutUint16(out[2:4], uint16(total))
	copy(out[4:], payload)
	return out
}

// wrapCOTPData prepends the 3-byte COTP Data TPDU header used for every
// frame after the initial CR/CC handshake.
func wrapCOTPData(s7Payload []byte) []byte {
	out := make([]byte, 3+len(s7Payload))
	out[0] = 0x02   // length
	out[1] = cotpDT // PDU type: data transfer
	out[2] = 0x80   // TPDU-NR/EOT
	copy(out[3:], s7Payload)
	return out
}

// stripCOTPData validates and removes the 3-byte COTP Data TPDU header,
// returning the enclosed S7 payload.
func stripCOTPData(frame []byte) ([]byte, error) {
	if len(frame) < 3 {
		return nil, &CommunicationError{Reason: "COTP data frame too short"}
	}
	if frame[1] != cotpDT {
		return nil, &CommunicationError{Reason: "expected COTP DT"}
	}
	return frame[3:], nil
}

// buildCOTPConnectionRequest builds the COTP Connection Request TPDU
// (without TPKT framing) proposing a 1024-byte TPDU size and the given
// local/remote TSAP pair.
func buildCOTPConnectionRequest(localTSAP, remoteTSAP uint16) []byte {
	cr := []byte{
		0x00,       // length, filled below
		cotpCR,     // PDU type
		0x00, 0x00, // destination reference
		0x00, 0x00, // source reference
		0x00, // class 0, no options
	}
	cr = append(cr, cotpParamTPDUSize, 0x01, cotpTPDUSize1024)
	cr = append(cr, cotpParamSrcTSAP, 0x02, byte(localTSAP>>8), byte(localTSAP))
	cr = append(cr, cotpParamDstTSAP, 0x02, byte(remoteTSAP>>8), byte(remoteTSAP))
	cr[0] = byte(len(cr) - 1)
	return cr
}

// parseCOTPConnectionConfirm validates that frame (the COTP payload inside a
// TPKT packet, with no further unwrapping) is a Connection Confirm.
func parseCOTPConnectionConfirm(frame []byte) error {
	if len(frame) < 2 {
		return &CommunicationError{Reason: "COTP CC frame too short"}
	}
	if frame[1] != cotpCC {
		return &CommunicationError{Reason: "expected COTP CC"}
	}
	return nil
}

// buildSetupCommRequest builds the S7 COMM_SETUP job (S7 header + params),
// ready to be wrapped in a COTP Data TPDU.
func buildSetupCommRequest(pduRef, desiredPDU uint16) []byte {
	header := s7Header(s7MsgJob, pduRef, 8, 0)
	params := []byte{
		s7FuncSetupComm,
		0x00,
		0x00, 0x01, // max AMQ calling
		0x00, 0x01, // max AMQ called
		byte(desiredPDU >> 8), byte(desiredPDU),
	}
	return append(header, params...)
}

// parseSetupCommResponse parses an ACK_DATA response to COMM_SETUP and
// returns the server-negotiated PDU size.
func parseSetupCommResponse(frame []byte) (uint16, error) {
	body, err := checkAckData(frame)
	if err != nil {
		return 0, err
	}
	if len(body) < 8 {
		return 0, &ProtocolError{Class: 0, Code: 0}
	}
	return binary.BigEndian.Uint16(body[6:8]), nil
}

// s7Header builds the 10-byte S7 request header (protocol id, message type,
// reserved, pdu reference, param length, data length) used for JOB and
// USERDATA requests.
func s7Header(msgType byte, pduRef uint16, paramLen, dataLen uint16) []byte {
	return []byte{
		s7ProtocolID,
		msgType,
		0x00, 0x00,
		byte(pduRef >> 8), byte(pduRef),
		byte(paramLen >> 8), byte(paramLen),
		byte(dataLen >> 8), byte(dataLen),
	}
}

// checkAckData validates that frame is a well-formed ACK_DATA S7 message
// with a zero error class/code, and returns the bytes after the 12-byte
// header (parameters followed by data).
func checkAckData(frame []byte) ([]byte, error) {
	if len(frame) < 12 {
		return nil, &CommunicationError{Reason: "S7 response too short"}
	}
	if frame[0] != s7ProtocolID {
		return nil, &ProtocolError{Class: 0, Code: 0}
	}
	if frame[1] != s7MsgAckData {
		return nil, &CommunicationError{Reason: "expected ACK_DATA message"}
	}
	if frame[10] != 0 || frame[11] != 0 {
		return nil, &ProtocolError{Class: frame[10], Code: frame[11]}
	}
	return frame[12:], nil
}

// pduReferenceOf extracts the PDU reference from any S7 header.
func pduReferenceOf(frame []byte) (uint16, error) {
	if len(frame) < 6 {
		return 0, &CommunicationError{Reason: "S7 frame too short to contain a PDU reference"}
	}
	return binary.BigEndian.Uint16(frame[4:6]), nil
}

// readItem is one wire-level READ_VAR request item, already reduced to its
// addressing primitives (area/db/bit address) and transport size/count.
type readItem struct {
	area          Area
	db            int
	transportSize byte
	count         int
	bitAddr       int // start*8 + bitOffset
}

// itemTransportSizeAndCount derives the request-side transport size code
// and element count for a tag, per spec §4.D: BIT reads use the bit count,
// the fixed-size numeric and char types use the element length. 8-byte
// types (LREAL) are not part of the classic S7ANY transport-size table, so
// they are addressed as a byte range, matching how the rest of the S7ANY
// ecosystem reads them; STRING and WSTRING are addressed as a byte range of
// their full Size() too.
func itemTransportSizeAndCount(t Tag) (byte, int) {
	switch t.DataType {
	case Bit:
		return tsBit, t.Length
	case Byte:
		return tsByte, t.Length
	case Char:
		return tsChar, t.Length
	case Int, Word:
		return tsWord, t.Length
	case DInt, DWord, Real:
		return tsDWord, t.Length
	default: // LReal, String, WString
		return tsByte, t.Size()
	}
}

func tagToReadItem(t Tag) readItem {
	ts, count := itemTransportSizeAndCount(t)
	return readItem{
		area:          t.Area,
		db:            t.DBNumber,
		transportSize: ts,
		count:         count,
		bitAddr:       t.Start*8 + t.BitOffset,
	}
}

// rawByteReadItem builds a read item for a plain byte-range read, used by
// the planner's chunked-string machinery where the on-wire type is always
// BYTE regardless of the tag's declared data type.
func rawByteReadItem(area Area, db, start, count int) readItem {
	return readItem{area: area, db: db, transportSize: tsByte, count: count, bitAddr: start * 8}
}

// encodeS7AnyItem encodes the 12-byte S7ANY address item for item.
func encodeS7AnyItem(item readItem) []byte {
	return []byte{
		s7AnySpecType,
		s7AnyLen,
		s7AnySyntaxID,
		item.transportSize,
		byte(item.count >> 8), byte(item.count),
		byte(item.db >> 8), byte(item.db),
		byte(item.area),
		byte(item.bitAddr >> 16), byte(item.bitAddr >> 8), byte(item.bitAddr),
	}
}

// buildReadVarRequest builds the S7 header+parameters for a READ_VAR job
// requesting items.
func buildReadVarRequest(pduRef uint16, items []readItem) []byte {
	paramLen := 2 + 12*len(items)
	header := s7Header(s7MsgJob, pduRef, uint16(paramLen), 0)
	params := []byte{s7FuncRead, byte(len(items))}
	for _, it := range items {
		params = append(params, encodeS7AnyItem(it)...)
	}
	return append(header, params...)
}

// writeItem is one WRITE_VAR request item: the address plus the raw bytes
// to write. For BIT writes, readItem.count carries the element count (the
// tag's declared Length), used as the data section's bit length.
type writeItem struct {
	readItem
	data  []byte
	isBit bool
	octet bool // STRING/WSTRING or raw byte-range payload: data length is in bytes, not bits
}

// writeTransportSize returns the data-section transport size code (distinct
// from the address-item transport size table) per spec §4.D: bit=0x03,
// byte-multiple (bits described in bytes)=0x04, octet string=0x09.
func writeTransportSize(isOctetString bool, isBit bool) byte {
	if isBit {
		return 0x03
	}
	if isOctetString {
		return 0x09
	}
	return 0x04
}

// buildWriteVarRequest builds the S7 header+parameters+data for a
// WRITE_VAR job writing items.
func buildWriteVarRequest(pduRef uint16, items []writeItem) []byte {
	paramLen := 2 + 12*len(items)
	dataLen := 0
	sections := make([][]byte, len(items))
	for i, it := range items {
		ts := writeTransportSize(it.octet, it.isBit)
		var bitLen int
		switch {
		case it.isBit:
			bitLen = it.count
		case ts == 0x09:
			bitLen = len(it.data)
		default:
			bitLen = len(it.data) * 8
		}
		section := []byte{0x00, ts, byte(bitLen >> 8), byte(bitLen)}
		section = append(section, it.data...)
		if len(it.data)%2 == 1 && i < len(items)-1 {
			section = append(section, 0x00)
		}
		sections[i] = section
		dataLen += len(section)
	}

	header := s7Header(s7MsgJob, pduRef, uint16(paramLen), uint16(dataLen))
	params := []byte{s7FuncWrite, byte(len(items))}
	for _, it := range items {
		params = append(params, encodeS7AnyItem(it.readItem)...)
	}
	out := append(header, params...)
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}
