package router

import (
	"encoding/binary"
	"net"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"
)

// tcpConn adapts a raw net.Conn to rawWriter, adding the len_be32 prefix
// proto.ReadFrame/WriteFrame expect on a transport with no message framing
// of its own (spec.md §4.A: "a transport frame is len_be32∥tag4∥body").
type tcpConn struct {
	c net.Conn
}

func (t *tcpConn) WriteFrame(body []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := t.c.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := t.c.Write(body)
	return err
}

func (t *tcpConn) Close() error {
	return t.c.Close()
}

// ServeTCP admits a single raw TCP connection to the router and runs its
// reader loop until the socket closes or the router shuts it down. Intended
// to be called once per net.Listener.Accept() result by cmd/server.
func (r *Router) ServeTCP(conn net.Conn) {
	sess, err := r.Accept(&tcpConn{c: conn}, conn.RemoteAddr().String())
	if err != nil {
		_ = conn.Close()
		return
	}

	sess.readerLoop(func() ([]byte, error) {
		return proto.ReadFrame(conn, proto.DefaultMaxFrameSize)
	})
}
