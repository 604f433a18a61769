package router

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"
)

// upgrader configures the websocket handshake. CheckOrigin is permissive
// here; a deployment fronted by a reverse proxy is expected to enforce
// origin policy at that layer, matching the teacher's own bare upgrader use.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn adapts a *websocket.Conn to rawWriter: one binary websocket
// message carries exactly one tag4∥body frame, with no length prefix
// (spec.md §4.A: "On the WebSocket transport the outer framing is that of
// the transport").
type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) WriteFrame(body []byte) error {
	return c.ws.WriteMessage(websocket.BinaryMessage, body)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

// ServeWebSocket upgrades an HTTP request to a websocket connection, admits
// it to the router, and runs its reader loop until the socket closes.
// Intended to be wired as an http.HandlerFunc by cmd/server.
func (r *Router) ServeWebSocket(w http.ResponseWriter, req *http.Request) {
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	sess, err := r.Accept(&wsConn{ws: ws}, req.RemoteAddr)
	if err != nil {
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		_ = ws.Close()
		return
	}

	ws.SetReadLimit(int64(proto.DefaultMaxFrameSize) + 8)

	sess.readerLoop(func() ([]byte, error) {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		return data, nil
	})
}
