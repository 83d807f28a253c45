package s7

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is a Client's position in its connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateNegotiating
	StateReady
	StateInRequest
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateNegotiating:
		return "negotiating"
	case StateReady:
		return "ready"
	case StateInRequest:
		return "in_request"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Client is a single synchronous connection to one S7 PLC. It is not safe
// for concurrent use by multiple goroutines; callers needing concurrency
// should use one Client per goroutine.
type Client struct {
	host       string
	remoteTSAP uint16
	hasTSAP    bool
	cfg        config

	mu       sync.Mutex
	state    State
	t        *transport
	pduSize  uint16
	pduRef   uint16
	optimize bool
}

// NewClient creates a Client that derives its remote TSAP from the
// configured rack/slot (WithRackSlot; default rack 0, slot 1).
func NewClient(host string, opts ...Option) *Client {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Client{host: host, cfg: cfg, state: StateDisconnected, optimize: true}
}

// NewClientWithTSAP creates a Client that connects using an explicit remote
// TSAP instead of a rack/slot derivation.
func NewClientWithTSAP(host string, remoteTSAP uint16, opts ...Option) *Client {
	c := NewClient(host, opts...)
	c.remoteTSAP = remoteTSAP
	c.hasTSAP = true
	return c
}

// SetOptimize controls whether Read coalesces adjacent tags into wider wire
// reads. Defaults to true.
func (c *Client) SetOptimize(on bool) { c.optimize = on }

// IsConnected reports whether the Client believes its session is usable.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateReady
}

// PDUSize returns the negotiated PDU size, valid only after Connect
// succeeds.
func (c *Client) PDUSize() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pduSize
}

// ConnectionMode returns the connection resource type this Client was
// configured with.
func (c *Client) ConnectionMode() ConnectionType { return c.cfg.connectionType }

// Connect dials the PLC, performs the COTP CR/CC handshake, and negotiates
// the PDU size via COMM_SETUP.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return nil
	}
	c.state = StateConnecting
	c.cfg.logger.Infof("connecting to %s", c.host)

	addr := joinHostPort(c.host, c.cfg.port)
	tr, err := dialTransport(ctx, addr, c.cfg.timeout)
	if err != nil {
		c.state = StateDisconnected
		return err
	}

	remote := c.remoteTSAP
	if !c.hasTSAP {
		remote = TSAPFromRackSlot(c.cfg.rack, c.cfg.slot)
	}
	cr := buildCOTPConnectionRequest(c.cfg.localTSAP, remote)
	ccFrame, err := tr.sendReceive(ctx, cr)
	if err != nil {
		tr.close()
		c.state = StateDisconnected
		return &ConnectionError{Op: "COTP connect", Err: err}
	}
	if err := parseCOTPConnectionConfirm(ccFrame); err != nil {
		tr.close()
		c.state = StateDisconnected
		return &ConnectionError{Op: "COTP connect", Err: err}
	}

	c.state = StateNegotiating
	c.t = tr
	pduSize, err := c.setupComm(ctx)
	if err != nil {
		tr.close()
		c.t = nil
		c.state = StateDisconnected
		return &ConnectionError{Op: "COMM_SETUP", Err: err}
	}
	c.pduSize = pduSize
	c.state = StateReady
	c.cfg.logger.Infof("connected to %s, negotiated PDU size %d", c.host, pduSize)
	return nil
}

func (c *Client) setupComm(ctx context.Context) (uint16, error) {
	ref := c.nextPDURef()
	req := buildSetupCommRequest(ref, c.cfg.pduSize)
	resp, err := c.t.sendReceive(ctx, wrapCOTPData(req))
	if err != nil {
		return 0, err
	}
	s7resp, err := stripCOTPData(resp)
	if err != nil {
		return 0, err
	}
	return parseSetupCommResponse(s7resp)
}

// Disconnect closes the underlying connection. It is safe to call on an
// already-disconnected Client.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected {
		return nil
	}
	c.state = StateClosing
	var err error
	if c.t != nil {
		err = c.t.close()
		c.t = nil
	}
	c.state = StateDisconnected
	return err
}

// Reconnect disconnects (if connected) and connects again.
func (c *Client) Reconnect(ctx context.Context) error {
	c.Disconnect()
	return c.Connect(ctx)
}

// nextPDURef returns the next PDU reference, a monotonic counter modulo
// 2^16 that skips zero.
func (c *Client) nextPDURef() uint16 {
	c.pduRef++
	if c.pduRef == 0 {
		c.pduRef = 1
	}
	return c.pduRef
}

// roundtrip wraps req in a COTP Data TPDU, sends it, and returns the
// stripped S7 payload of the reply. A reply whose PDU reference differs from
// req's closes the session and fails with a CommunicationError. The Client
// must already hold c.mu.
func (c *Client) roundtrip(ctx context.Context, req []byte) ([]byte, error) {
	if c.state != StateReady {
		return nil, &CommunicationError{Reason: fmt.Sprintf("client not ready (state=%s)", c.state)}
	}
	c.state = StateInRequest
	defer func() {
		if c.state == StateInRequest {
			c.state = StateReady
		}
	}()

	resp, err := c.t.sendReceive(ctx, wrapCOTPData(req))
	if err != nil {
		c.t.close()
		c.t = nil
		c.state = StateDisconnected
		return nil, err
	}
	s7resp, err := stripCOTPData(resp)
	if err != nil {
		return nil, err
	}
	want, _ := pduReferenceOf(req)
	if got, err := pduReferenceOf(s7resp); err != nil || got != want {
		c.t.close()
		c.t = nil
		c.state = StateDisconnected
		return nil, &CommunicationError{Reason: "PDU reference mismatch"}
	}
	return s7resp, nil
}

// ItemResult is the per-tag outcome of a ReadDetailed or WriteDetailed call.
type ItemResult struct {
	Tag   Tag
	Value Value
	Err   error
}

// Read fetches the tags named by addrs and returns their decoded values in
// the same order. The first per-item error is also returned as err, but all
// successfully decoded values are still populated.
func (c *Client) Read(ctx context.Context, addrs ...string) ([]Value, error) {
	tags := make([]Tag, len(addrs))
	for i, a := range addrs {
		t, err := ParseAddress(a)
		if err != nil {
			return nil, err
		}
		tags[i] = t
	}
	results, err := c.ReadTags(ctx, tags...)
	if err != nil {
		return nil, err
	}
	values := make([]Value, len(results))
	var firstErr error
	for i, r := range results {
		values[i] = r.Value
		if r.Err != nil && firstErr == nil {
			firstErr = r.Err
		}
	}
	return values, firstErr
}

// ReadTags fetches tags and returns one ItemResult per tag, in order. A
// per-item protocol error (e.g. ADDRESS_OUT_OF_RANGE) is reported on that
// item's ItemResult.Err rather than failing the whole call; a transport or
// planning error fails the whole call.
func (c *Client) ReadTags(ctx context.Context, tags ...Tag) ([]ItemResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	plan, err := planReads(tags, c.pduSize, c.optimize)
	if err != nil {
		return nil, err
	}

	chunkData := map[*group][]byte{}
	for _, batch := range plan.batches {
		items := make([]readItem, len(batch))
		for i, g := range batch {
			items[i] = g.item
		}
		ref := c.nextPDURef()
		req := buildReadVarRequest(ref, items)
		resp, err := c.roundtrip(ctx, req)
		if err != nil {
			return nil, err
		}
		results, err := parseReadVarResponse(resp, items)
		if err != nil {
			return nil, err
		}
		for i, g := range batch {
			if results[i].code != RCSuccess {
				g.size = -int(results[i].code) - 1 // sentinel: negative encodes the failing return code
				continue
			}
			chunkData[g] = results[i].data
		}
	}

	byTag := map[Tag][]byte{}
	failedTag := map[Tag]ReturnCode{}
	for _, batch := range plan.batches {
		for _, g := range batch {
			if g.size < 0 {
				code := ReturnCode(-g.size - 1)
				for _, m := range g.members {
					failedTag[m.tag] = code
				}
				continue
			}
			data := chunkData[g]
			for _, m := range g.members {
				n := len(data) - m.srcOffset
				if max := m.tag.Size() - m.destOffset; n > max {
					n = max
				}
				byTag[m.tag] = appendChunk(byTag[m.tag], m, data, n)
			}
		}
	}

	results := make([]ItemResult, len(tags))
	for i, t := range tags {
		if code, failed := failedTag[t]; failed {
			results[i] = ItemResult{Tag: t, Err: &ReadItemError{Tag: t, Code: code}}
			continue
		}
		raw := byTag[t]
		v, err := decodeTagValue(t, raw)
		results[i] = ItemResult{Tag: t, Value: v, Err: err}
	}
	return results, nil
}

// appendChunk places one group's contribution to a tag's raw byte buffer at
// destOffset, growing the buffer as needed, reading from srcOffset within the
// group's own data (nonzero when several tags were coalesced into one wider
// read). Chunk groups for the same tag are always produced by the planner in
// ascending destOffset order.
func appendChunk(buf []byte, m member, data []byte, n int) []byte {
	need := m.destOffset + n
	if len(buf) < need {
		grown := make([]byte, need)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[m.destOffset:], data[m.srcOffset:m.srcOffset+n])
	return buf
}

// Write encodes v and writes it to the tag named by addr.
func (c *Client) Write(ctx context.Context, addr string, v Value) error {
	t, err := ParseAddress(addr)
	if err != nil {
		return err
	}
	results, err := c.WriteTags(ctx, []Tag{t}, []Value{v})
	if err != nil {
		return err
	}
	return results[0].Err
}

// WriteTags writes tags with the corresponding values and returns one
// ItemResult per tag (Value is left zero on write results).
func (c *Client) WriteTags(ctx context.Context, tags []Tag, values []Value) ([]ItemResult, error) {
	if len(tags) != len(values) {
		return nil, &ValueError{Reason: "tags and values must have the same length"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	payloads := make([][]byte, len(tags))
	for i, t := range tags {
		p, err := encodeTagValue(t, values[i])
		if err != nil {
			return nil, err
		}
		payloads[i] = p
	}

	batches, err := planWrites(tags, payloads, c.pduSize)
	if err != nil {
		return nil, err
	}

	codes := make([]ReturnCode, len(tags))
	for _, batch := range batches {
		items := make([]writeItem, len(batch))
		for bi, idx := range batch {
			dt := tags[idx].DataType
			items[bi] = writeItem{
				readItem: tagToReadItem(tags[idx]),
				data:     payloads[idx],
				isBit:    dt == Bit,
				octet:    dt == String || dt == WString,
			}
		}
		ref := c.nextPDURef()
		req := buildWriteVarRequest(ref, items)
		resp, err := c.roundtrip(ctx, req)
		if err != nil {
			return nil, err
		}
		batchCodes, err := parseWriteVarResponse(resp, len(items))
		if err != nil {
			return nil, err
		}
		for bi, idx := range batch {
			codes[idx] = batchCodes[bi]
		}
	}

	results := make([]ItemResult, len(tags))
	for i, t := range tags {
		if codes[i] != RCSuccess {
			results[i] = ItemResult{Tag: t, Err: &WriteItemError{Tag: t, Code: codes[i]}}
		} else {
			results[i] = ItemResult{Tag: t}
		}
	}
	return results, nil
}

// BatchWrite records every tag's prior value, then writes all tags. If any
// item write fails, it attempts to roll back every tag whose write succeeded
// to its recorded prior value, then returns the first failure joined with
// any rollback failure.
func (c *Client) BatchWrite(ctx context.Context, tags []Tag, values []Value) error {
	if len(tags) != len(values) {
		return &ValueError{Reason: "tags and values must have the same length"}
	}
	prior, err := c.ReadTags(ctx, tags...)
	if err != nil {
		return err
	}

	results, err := c.WriteTags(ctx, tags, values)
	if err != nil {
		return err
	}

	var failedAt = -1
	for i, r := range results {
		if r.Err != nil {
			failedAt = i
			break
		}
	}
	if failedAt == -1 {
		return nil
	}

	var rollbackTags []Tag
	var rollbackValues []Value
	for i, r := range results {
		if r.Err == nil {
			rollbackTags = append(rollbackTags, tags[i])
			rollbackValues = append(rollbackValues, prior[i].Value)
		}
	}
	rbResults, rbErr := c.WriteTags(ctx, rollbackTags, rollbackValues)
	for _, r := range rbResults {
		if rbErr == nil && r.Err != nil {
			rbErr = r.Err
		}
	}
	if rbErr != nil {
		return errors.Join(results[failedAt].Err, fmt.Errorf("rollback failed: %w", rbErr))
	}
	return results[failedAt].Err
}
