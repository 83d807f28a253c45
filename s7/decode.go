package s7

import "encoding/binary"

// itemResult is the decoded outcome of a single READ_VAR response item.
type itemResult struct {
	code ReturnCode
	data []byte
}

// parseReadVarResponse decodes the data section of a READ_VAR ACK_DATA
// response. items must be the same slice (same order, same length) used to
// build the request, since the wire format does not echo the address.
func parseReadVarResponse(frame []byte, items []readItem) ([]itemResult, error) {
	body, err := checkAckData(frame)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 {
		return nil, &CommunicationError{Reason: "READ_VAR response missing parameter header"}
	}
	count := int(body[1])
	if count != len(items) {
		return nil, &CommunicationError{Reason: "READ_VAR response item count does not match request"}
	}

	data := body[2:]
	results := make([]itemResult, count)
	pos := 0
	for i := range items {
		if pos >= len(data) {
			return nil, &CommunicationError{Reason: "READ_VAR response truncated"}
		}
		code := ReturnCode(data[pos])
		pos++
		if code != RCSuccess {
			results[i] = itemResult{code: code}
			continue
		}
		if pos+3 > len(data) {
			return nil, &CommunicationError{Reason: "READ_VAR response item header truncated"}
		}
		ts := data[pos]
		length := int(binary.BigEndian.Uint16(data[pos+1 : pos+3]))
		pos += 3

		byteLen := responsePayloadBytes(ts, length)
		if pos+byteLen > len(data) {
			return nil, &CommunicationError{Reason: "READ_VAR response payload truncated"}
		}
		results[i] = itemResult{code: code, data: data[pos : pos+byteLen]}
		pos += byteLen
		if byteLen%2 == 1 && i < len(items)-1 {
			pos++ // skip the even-alignment pad byte
		}
	}
	return results, nil
}

// responsePayloadBytes converts a response item's (transport_size, length)
// pair into a byte count, using the same bit/byte-multiple/octet convention
// as writeTransportSize.
func responsePayloadBytes(transportSize byte, length int) int {
	switch transportSize {
	case 0x03: // bit count
		return (length + 7) / 8
	case 0x09: // already a byte count
		return length
	default: // 0x04: byte-multiple, length expressed in bits
		return length / 8
	}
}

// parseWriteVarResponse decodes a WRITE_VAR ACK_DATA response: one
// return-code byte per item, no length fields or padding.
func parseWriteVarResponse(frame []byte, expected int) ([]ReturnCode, error) {
	body, err := checkAckData(frame)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 {
		return nil, &CommunicationError{Reason: "WRITE_VAR response missing parameter header"}
	}
	count := int(body[1])
	if count != expected {
		return nil, &CommunicationError{Reason: "WRITE_VAR response item count does not match request"}
	}
	data := body[2:]
	if len(data) < count {
		return nil, &CommunicationError{Reason: "WRITE_VAR response truncated"}
	}
	codes := make([]ReturnCode, count)
	for i := 0; i < count; i++ {
		codes[i] = ReturnCode(data[i])
	}
	return codes, nil
}
