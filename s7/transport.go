package s7

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// transport owns the TCP connection and the TPKT framing. COTP and S7 bytes
// are carried as opaque payloads.
type transport struct {
	conn    net.Conn
	timeout time.Duration
}

func dialTransport(ctx context.Context, addr string, timeout time.Duration) (*transport, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", Err: err}
	}
	return &transport{conn: conn, timeout: timeout}, nil
}

func (t *transport) close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// sendReceive writes one COTP-framed payload and reads the next full reply,
// honoring ctx's deadline in addition to the transport's own timeout.
func (t *transport) sendReceive(ctx context.Context, payload []byte) ([]byte, error) {
	if err := t.send(ctx, payload); err != nil {
		return nil, err
	}
	return t.receive(ctx)
}

func (t *transport) send(ctx context.Context, payload []byte) error {
	t.applyDeadline(ctx)
	frame := wrapTPKT(payload)
	if _, err := t.conn.Write(frame); err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return &TimeoutError{Op: "send"}
		}
		return &CommunicationError{Reason: "write failed", Err: err}
	}
	return nil
}

// receive reads one TPKT-framed packet and strips the TPKT header, returning
// the COTP frame it carried (callers strip the COTP header themselves).
func (t *transport) receive(ctx context.Context) ([]byte, error) {
	t.applyDeadline(ctx)

	hdr := make([]byte, tpktHeaderSize)
	if _, err := io.ReadFull(t.conn, hdr); err != nil {
		return nil, classifyReadError(err)
	}
	if hdr[0] != tpktVersion {
		return nil, &CommunicationError{Reason: "bad TPKT version"}
	}
	total := int(hdr[2])<<8 | int(hdr[3])
	if total < tpktHeaderSize {
		return nil, &CommunicationError{Reason: "bad TPKT length"}
	}
	body := make([]byte, total-tpktHeaderSize)
	if _, err := io.ReadFull(t.conn, body); err != nil {
		return nil, classifyReadError(err)
	}
	return body, nil
}

func (t *transport) applyDeadline(ctx context.Context) {
	deadline := time.Now().Add(t.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	t.conn.SetDeadline(deadline)
}

func classifyReadError(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &TimeoutError{Op: "receive"}
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &CommunicationError{Reason: "connection closed by peer", Err: err}
	}
	return &CommunicationError{Reason: "read failed", Err: err}
}

func joinHostPort(host string, port uint16) string {
	return fmt.Sprintf("%s:%d", host, port)
}
