package s7

import "time"

const defaultTimeout = 5 * time.Second

// config holds the assembled result of applying a Client's Options.
type config struct {
	port           uint16
	pduSize        uint16
	timeout        time.Duration
	connectionType ConnectionType
	rack, slot     int
	localTSAP      uint16
	logger         Logger
}

func defaultConfig() config {
	return config{
		port:           defaultS7Port,
		pduSize:        defaultPDUSize,
		timeout:        defaultTimeout,
		connectionType: S7Basic,
		rack:           0,
		slot:           1,
		localTSAP:      defaultLocalTSAP,
		logger:         NopLogger(),
	}
}

// Option configures a Client at construction time.
type Option func(*config)

// WithPDUSize requests a negotiated PDU size. The PLC may negotiate a
// smaller value; the value actually in effect after Connect is reported by
// Client.PDUSize. Values outside [minPDUSize, maxPDUSize] are clamped.
func WithPDUSize(size uint16) Option {
	return func(c *config) {
		if size < minPDUSize {
			size = minPDUSize
		}
		if size > maxPDUSize {
			size = maxPDUSize
		}
		c.pduSize = size
	}
}

// WithTimeout sets the per-operation timeout applied to connect, send, and
// receive. When the caller's context carries an earlier deadline, that
// deadline applies instead.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithConnectionType records the S7 connection resource type (S7Basic, PG,
// or OP) a caller wants to present via Client.ConnectionMode. It has no
// effect on the TSAP or any other byte on the wire.
func WithConnectionType(ct ConnectionType) Option {
	return func(c *config) { c.connectionType = ct }
}

// WithRackSlot sets the target PLC's rack and slot, used to derive the
// remote TSAP. Ignored if the Client was built with an explicit TSAP via
// NewClientWithTSAP.
func WithRackSlot(rack, slot int) Option {
	return func(c *config) { c.rack, c.slot = rack, slot }
}

// WithLogger injects a Logger. The default is NopLogger.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPort overrides the TCP port (default 102).
func WithPort(port uint16) Option {
	return func(c *config) { c.port = port }
}
