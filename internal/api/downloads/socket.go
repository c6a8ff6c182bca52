package downloads

import (
	"github.com/gorilla/websocket"
	"github.com/reelgrab/reelgrab/internal/session"
)

// socketConnection adapts a gorilla websocket connection on to the
// transport the session coordinator expects. The session's read
// goroutine is the sole reader and its main goroutine the sole writer,
// which is exactly the concurrency contract gorilla requires.
type socketConnection struct {
	socket *websocket.Conn
}

func (conn *socketConnection) ReadText() (string, error) {
	for {
		messageType, data, err := conn.socket.ReadMessage()
		if err != nil {
			return "", err
		}

		// Binary/control frames carry no URL payload; keep reading.
		if messageType == websocket.TextMessage {
			return string(data), nil
		}
	}
}

func (conn *socketConnection) WriteEvent(event session.Event) error {
	return conn.socket.WriteJSON(event)
}

func (conn *socketConnection) Close() error {
	return conn.socket.Close()
}
