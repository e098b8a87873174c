// Package signaling implements the full-duplex signaling link: one
// framed text+binary message stream per session, JSON tagged-union
// messages on the text side and encoded Frame bytes on the binary side.
//
// The teacher dials into the student — the inverse of the usual
// client-dials-central-server posture — so this package provides both
// the dial side (teacher) and an Acceptor (student) around the same
// Link abstraction.
package signaling

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/classroomlink/link/internal/logging"
)

var log = logging.L("signaling")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize covers large file transfers and occasional huge
	// keyframes; the protocol promises peers at least 100 MiB.
	maxMessageSize = 150 * 1024 * 1024
)

// Link is one full-duplex session stream. Reads and writes may be
// called from different goroutines; concurrent writers are serialized
// internally since gorilla/websocket connections only support one
// writer at a time.
type Link struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

func wrap(conn *websocket.Conn) *Link {
	conn.SetReadLimit(maxMessageSize)
	return &Link{
		conn:   conn,
		closed: make(chan struct{}),
	}
}

// RemoteHost returns the remote endpoint's address (host:port), used
// by the student side to target UDP fragments at the teacher's IP once
// a UdpOffer names the port.
func (l *Link) RemoteHost() string {
	return l.conn.RemoteAddr().String()
}

// Closed returns a channel closed once the link has been torn down,
// letting readers/writers surface the close event.
func (l *Link) Closed() <-chan struct{} {
	return l.closed
}

// Close tears down the underlying connection. Safe to call more than
// once.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		l.writeMu.Lock()
		l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = l.conn.Close()
		l.writeMu.Unlock()
	})
	return err
}

// SendJSON writes v as a text message.
func (l *Link) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("signaling: marshal: %w", err)
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return l.conn.WriteMessage(websocket.TextMessage, data)
}

// SendBinary writes data as a binary message (an encoded Frame).
func (l *Link) SendBinary(data []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return l.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (l *Link) sendPing() error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return l.conn.WriteMessage(websocket.PingMessage, nil)
}

// Message is one received frame, tagged by kind so callers can dispatch
// without a type switch on gorilla's message-type ints.
type Message struct {
	Binary bool
	Data   []byte
}

// ReadNext blocks for the next message. Ordering is preserved per
// direction by the underlying TCP stream.
func (l *Link) ReadNext() (Message, error) {
	mt, data, err := l.conn.ReadMessage()
	if err != nil {
		return Message{}, err
	}
	return Message{Binary: mt == websocket.BinaryMessage, Data: data}, nil
}

// StartKeepalive runs ping/pong keepalive until stop is closed or a
// write fails. Run this in its own goroutine alongside a read loop.
func (l *Link) StartKeepalive(stop <-chan struct{}) {
	l.conn.SetReadDeadline(time.Now().Add(pongWait))
	l.conn.SetPongHandler(func(string) error {
		l.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-l.closed:
			return
		case <-ticker.C:
			if err := l.sendPing(); err != nil {
				log.Warn("keepalive ping failed", "error", err)
				return
			}
		}
	}
}
