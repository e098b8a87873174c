// Package sessionregistry holds the per-session state the teacher
// tracks — status, update-status, transport-in-use, latest frame,
// and screen dimensions — behind a narrow, mutex-guarded interface so
// holders never perform I/O while holding the lock.
package sessionregistry

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/classroomlink/link/internal/proto"
	"github.com/classroomlink/link/internal/signaling"
)

// commandChanCapacity is the bounded outbound command channel size per
// session.
const commandChanCapacity = 100

var (
	ErrSessionClosed  = errors.New("sessionregistry: session closed")
	ErrCommandDropped = errors.New("sessionregistry: command dropped, channel full")
)

// Session is one teacher↔student pairing. All mutable fields are
// guarded by mu; the frame slot is separated under frameMu so a reader
// cloning out the latest frame never blocks on unrelated status
// updates, and vice versa.
type Session struct {
	ID           string
	ConnectionID string // unique per connection, survives a student reconnecting under the same ID
	Address      string // ip:port
	link         *signaling.Link

	mu             sync.RWMutex
	status         proto.SessionStatus
	studentVersion string
	machineName    string
	updateStatus   proto.UpdateStatus
	transport      proto.Transport
	screenWidth    int
	screenHeight   int

	frameMu sync.RWMutex
	frame   *proto.Frame

	// sendMu serializes channel sends against Close so the commands
	// channel is never closed while a SendCommand is selected on it.
	sendMu    sync.RWMutex
	commands  chan proto.Command
	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Session and returns both the Session (for the registry
// and command senders) and the receive side of its command channel
// (for the write loop). Splitting ownership this way lets the writer
// drain to completion once Close closes the channel.
func New(id, address string, link *signaling.Link) (*Session, <-chan proto.Command) {
	ch := make(chan proto.Command, commandChanCapacity)
	s := &Session{
		ID:           id,
		ConnectionID: uuid.NewString(),
		Address:      address,
		link:         link,
		status:       proto.StatusConnecting,
		transport:    proto.TransportSignaling,
		commands:     ch,
		closed:       make(chan struct{}),
	}
	return s, ch
}

func (s *Session) Link() *signaling.Link { return s.link }

// Close closes the command channel (driving the writer to exit) and
// tears down the link. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		// Closing s.closed first unblocks any sender waiting in
		// SendCommand, so the write lock below cannot deadlock against
		// a sender stuck on a full channel.
		s.sendMu.Lock()
		close(s.commands)
		s.sendMu.Unlock()
		if s.link != nil {
			s.link.Close()
		}
	})
}

func (s *Session) SetStatus(status proto.SessionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *Session) Status() proto.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) SetStudentInfo(version, machineName string) {
	s.mu.Lock()
	s.studentVersion = version
	s.machineName = machineName
	s.mu.Unlock()
}

func (s *Session) StudentVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.studentVersion
}

func (s *Session) SetUpdateStatus(us proto.UpdateStatus) {
	s.mu.Lock()
	s.updateStatus = us
	s.mu.Unlock()
}

func (s *Session) UpdateStatus() proto.UpdateStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updateStatus
}

func (s *Session) SetTransport(t proto.Transport) {
	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()
}

func (s *Session) Transport() proto.Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transport
}

func (s *Session) SetScreenDims(w, h int) {
	s.mu.Lock()
	s.screenWidth, s.screenHeight = w, h
	s.mu.Unlock()
}

func (s *Session) ScreenDims() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screenWidth, s.screenHeight
}

// SetFrame atomically replaces the per-session frame slot, dropping
// whatever was there before.
func (s *Session) SetFrame(f *proto.Frame) {
	s.frameMu.Lock()
	s.frame = f
	s.frameMu.Unlock()
}

// Frame returns the latest frame slot, or nil if none has arrived (or
// the session has stopped screen emission).
func (s *Session) Frame() *proto.Frame {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.frame
}

// ClearFrame empties the frame slot, used on ScreenStopped.
func (s *Session) ClearFrame() {
	s.frameMu.Lock()
	s.frame = nil
	s.frameMu.Unlock()
}

// SendCommand enqueues cmd for the write loop. Mouse-move events use a
// non-blocking try-send and are dropped on a full channel (the next
// move supersedes it); every other command blocks until there is room
// or the session closes.
func (s *Session) SendCommand(cmd proto.Command) error {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()

	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}

	if cmd.Type == proto.CommandMouseInput && cmd.Mouse != nil && cmd.Mouse.IsMove() {
		select {
		case s.commands <- cmd:
			return nil
		default:
			return ErrCommandDropped
		}
	}

	select {
	case s.commands <- cmd:
		return nil
	case <-s.closed:
		return ErrSessionClosed
	}
}

// Snapshot is an immutable copy of a Session's state for external
// consumers (the UI layer) that must never hold the session's lock.
type Snapshot struct {
	ID             string
	ConnectionID   string
	Address        string
	Status         proto.SessionStatus
	StudentVersion string
	MachineName    string
	UpdateStatus   proto.UpdateStatus
	Transport      proto.Transport
	ScreenWidth    int
	ScreenHeight   int
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:             s.ID,
		ConnectionID:   s.ConnectionID,
		Address:        s.Address,
		Status:         s.status,
		StudentVersion: s.studentVersion,
		MachineName:    s.machineName,
		UpdateStatus:   s.updateStatus,
		Transport:      s.transport,
		ScreenWidth:    s.screenWidth,
		ScreenHeight:   s.screenHeight,
	}
}
