package s7

import "encoding/binary"

// buildSZLReadRequest builds a USERDATA job requesting one SZL fragment.
// seq is the client-assigned sequence number echoed back by the PLC; it has
// no relation to the PDU reference.
func buildSZLReadRequest(pduRef uint16, seq byte, szlID, szlIndex uint16) []byte {
	params := []byte{
		0x00, 0x01, 0x12,
		0x04,             // parameter length (of the following head, excluding these 4 bytes already counted)
		0x11,             // USERDATA parameter head length marker
		szlFunctionGroup<<4 | 0x04,
		szlSubfuncRead,
		seq,
	}
	data := []byte{
		0xFF, 0x09, 0x00, 0x04,
		byte(szlID >> 8), byte(szlID),
		byte(szlIndex >> 8), byte(szlIndex),
	}
	header := s7Header(s7MsgUserData, pduRef, uint16(len(params)), uint16(len(data)))
	out := append(header, params...)
	out = append(out, data...)
	return out
}

// parseSZLResponse decodes a USERDATA ACK_DATA response carrying one SZL
// fragment. It returns the raw SZL record payload for this fragment, the
// sequence number echoed by the PLC, and whether this is the last fragment
// ("last data unit" flag).
func parseSZLResponse(frame []byte) (payload []byte, seq byte, lastUnit bool, err error) {
	body, err := checkAckData(frame)
	if err != nil {
		return nil, 0, false, err
	}
	if len(body) < 8 {
		return nil, 0, false, &CommunicationError{Reason: "USERDATA response parameter head truncated"}
	}
	// params layout: [0]=0x00 [1]=0x01 [2]=0x12 [3]=paramLen [4]=0x11
	// [5]=function group/type nibble [6]=subfunction [7]=sequence number
	seq = body[7]
	lastUnit = body[5]&0x10 == 0 // "more follows" bit clear means this is final

	data := body[8:]
	if len(data) < 4 {
		return nil, seq, lastUnit, &CommunicationError{Reason: "USERDATA response data head truncated"}
	}
	if data[0] != 0xFF {
		return nil, seq, lastUnit, &ProtocolError{Class: data[0], Code: data[1]}
	}
	szlDataLen := int(binary.BigEndian.Uint16(data[2:4]))
	data = data[4:]
	if len(data) < szlDataLen {
		return nil, seq, lastUnit, &CommunicationError{Reason: "USERDATA response SZL payload truncated"}
	}
	return data[:szlDataLen], seq, lastUnit, nil
}
