package s7

import (
	"context"
	"fmt"
)

// CPUStatus is the operating mode reported in the CPU diagnostic SZL.
type CPUStatus byte

const (
	CPURun     CPUStatus = 0x08
	CPUStop    CPUStatus = 0x03
	CPUUnknown CPUStatus = 0x00
)

func (s CPUStatus) String() string {
	switch s {
	case CPURun:
		return "RUN"
	case CPUStop:
		return "STOP"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", byte(s))
	}
}

// ModuleInfo is the decoded module-identity SZL record (order number,
// hardware/firmware versions) returned by GetCPUInfo.
type ModuleInfo struct {
	OrderNumber  string
	HWVersion    string
	FWVersion    string
	ModuleTypeID string
}

// readSZL issues a READ_SZL request for szlID/szlIndex and reassembles every
// fragment the PLC returns, using the "last data unit" flag as the
// authoritative end-of-data signal rather than any byte-count bookkeeping.
func (c *Client) readSZL(ctx context.Context, szlID, szlIndex uint16) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []byte
	var seq byte
	for {
		ref := c.nextPDURef()
		req := buildSZLReadRequest(ref, seq, szlID, szlIndex)
		resp, err := c.roundtrip(ctx, req)
		if err != nil {
			return nil, err
		}
		fragment, respSeq, last, err := parseSZLResponse(resp)
		if err != nil {
			return nil, err
		}
		out = append(out, fragment...)
		if last {
			break
		}
		seq = respSeq + 1
	}
	return out, nil
}

// GetCPUStatus reads the CPU diagnostic SZL (0x0424) and decodes the
// operating mode byte.
func (c *Client) GetCPUStatus(ctx context.Context) (CPUStatus, error) {
	data, err := c.readSZL(ctx, szlCPUDiagnosticStatus, 0x0000)
	if err != nil {
		return CPUUnknown, err
	}
	if len(data) < 4 {
		return CPUUnknown, &CommunicationError{Reason: "CPU diagnostic SZL record too short"}
	}
	return CPUStatus(data[3]), nil
}

// GetCPUInfo reads the module-identity SZL (0x0011) and decodes the first
// 28-byte module record into a ModuleInfo.
func (c *Client) GetCPUInfo(ctx context.Context) (ModuleInfo, error) {
	data, err := c.readSZL(ctx, szlModuleIdentity, 0x0001)
	if err != nil {
		return ModuleInfo{}, err
	}
	if len(data) < 28 {
		return ModuleInfo{}, &CommunicationError{Reason: "module identity SZL record too short"}
	}
	rec := data[:28]
	return ModuleInfo{
		OrderNumber:  trimZeros(rec[2:22]),
		HWVersion:    decodeHWVersion(rec[22:24]),
		FWVersion:    decodeFWVersion(rec[24:26]),
		ModuleTypeID: fmt.Sprintf("0x%02X%02X", rec[0], rec[1]),
	}, nil
}

func trimZeros(b []byte) string {
	n := len(b)
	for n > 0 && (b[n-1] == 0x00 || b[n-1] == ' ') {
		n--
	}
	return string(b[:n])
}

// decodeHWVersion implements the module-identity hardware version rule:
// hw[0]'s high nibble and low nibble give the major/minor version, unless
// hw[0] is zero, in which case hw[1] alone is the version (decimal).
func decodeHWVersion(hw []byte) string {
	if hw[0] != 0 {
		return fmt.Sprintf("V%d.%d", hw[0]>>4, hw[0]&0x0F)
	}
	return fmt.Sprintf("V%d", hw[1])
}

// decodeFWVersion implements the module-identity firmware version rule:
// 0x20 0x20 ("  ") means the field is unpopulated.
func decodeFWVersion(fw []byte) string {
	if fw[0] == 0x20 && fw[1] == 0x20 {
		return "N/A"
	}
	return fmt.Sprintf("V%d.%d", fw[0], fw[1])
}
