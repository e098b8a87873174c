package teacherconnector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/classroomlink/link/internal/proto"
	"github.com/classroomlink/link/internal/sessionregistry"
	"github.com/classroomlink/link/internal/signaling"
	"github.com/classroomlink/link/internal/udpframe"
)

// welcomeTimeout bounds how long the connector waits for the student's
// Welcome message right after the link comes up.
const welcomeTimeout = 10 * time.Second

// Config carries the fleet-update policy the handshake bootstrap needs:
// the version every student is expected to run, and where to fetch an
// update from if it doesn't. It is the fallback used when no Policy is
// supplied to New.
type Config struct {
	RequiredVersion string
	UpdateURL       string
	SHA256          string
	MandatoryUpdate bool
}

// VersionPolicy decides, at handshake time, whether a connecting
// student must update and what to tell it. fleetupdate.Coordinator
// satisfies this interface, letting a live broadcast (which changes the
// coordinator's required version and acknowledgment set at runtime)
// flow into every subsequent handshake without the connector importing
// fleetupdate directly.
type VersionPolicy interface {
	HandshakeRequirement(studentVersion string) (mandatory bool, requiredVersion, updateURL, sha256 string)
}

// staticPolicy adapts a fixed Config into a VersionPolicy, used when
// the caller has no live fleetupdate.Coordinator to consult.
type staticPolicy Config

func (p staticPolicy) HandshakeRequirement(studentVersion string) (bool, string, string, string) {
	if proto.CompareVersions(studentVersion, p.RequiredVersion) == 0 {
		return false, p.RequiredVersion, "", ""
	}
	return p.MandatoryUpdate, p.RequiredVersion, p.UpdateURL, p.SHA256
}

// Handlers lets the owner of a Connector react to student messages that
// are not themselves session-state updates, without teacherconnector
// importing the packages that implement those reactions (file transfer,
// fleet update bookkeeping, UI notification).
type Handlers struct {
	OnScreenFrame        func(session *sessionregistry.Session, frame proto.Frame)
	OnSessionStatus      func(session *sessionregistry.Session, status proto.SessionStatus)
	OnDirectoryListing   func(session *sessionregistry.Session, path string, files []proto.DirEntry)
	OnFileReceived       func(session *sessionregistry.Session, name string, success bool, message string)
	OnUpdateStatus       func(session *sessionregistry.Session, status proto.UpdateStatus)
	OnUpdateAcknowledged func(session *sessionregistry.Session, version string)
	OnError              func(session *sessionregistry.Session, message string)
}

func (h Handlers) fire(fn func()) {
	if fn != nil {
		fn()
	}
}

// setStatus updates the session's status and fires OnSessionStatus so
// the UI layer observes the change the moment it happens.
func (c *Connector) setStatus(session *sessionregistry.Session, status proto.SessionStatus) {
	session.SetStatus(status)
	c.handlers.fire(func() { c.handlers.OnSessionStatus(session, status) })
}

// setFrame replaces the session's frame slot and fires OnScreenFrame
// with the session and the new frame.
func (c *Connector) setFrame(session *sessionregistry.Session, frame proto.Frame) {
	session.SetFrame(&frame)
	c.handlers.fire(func() { c.handlers.OnScreenFrame(session, frame) })
}

// Connector owns the lifecycle of one accepted link: the version
// handshake, the UDP offer bootstrap once the student's screen comes up,
// and the read/write loops that keep the session registry current.
type Connector struct {
	registry *sessionregistry.Registry
	cfg      Config
	policy   VersionPolicy
	handlers Handlers

	listingMu sync.Mutex
	listings  map[string]chan listingResult // keyed by Session.ConnectionID
}

func New(registry *sessionregistry.Registry, cfg Config, handlers Handlers) *Connector {
	return &Connector{registry: registry, cfg: cfg, policy: staticPolicy(cfg), handlers: handlers}
}

// NewWithPolicy is New, but every handshake consults policy (typically
// a *fleetupdate.Coordinator) instead of the static fields in cfg,
// letting broadcasts issued mid-run govern late-joining students too.
func NewWithPolicy(registry *sessionregistry.Registry, policy VersionPolicy, handlers Handlers) *Connector {
	return &Connector{registry: registry, policy: policy, handlers: handlers}
}

// Adopt runs the full lifecycle of one newly-accepted link: the
// handshake, registry insertion, and the read/write loops. It blocks
// until the link closes or ctx is cancelled, then removes the session
// from the registry. Run it in its own goroutine per accepted link.
func (c *Connector) Adopt(ctx context.Context, link *signaling.Link, address string) error {
	welcome, err := readWelcome(link)
	if err != nil {
		link.Close()
		return fmt.Errorf("teacherconnector: handshake: %w", err)
	}

	id := welcome.StudentName
	if id == "" {
		id = address
	}

	session, commands := sessionregistry.New(id, address, link)
	session.SetStudentInfo(welcome.CurrentVersion, welcome.MachineName)
	c.setStatus(session, proto.StatusConnected)
	c.registry.Add(session)
	log.Info("student adopted", "session", id, "connectionId", session.ConnectionID, "address", address)

	mandatory, requiredVersion, updateURL, sha256 := c.policy.HandshakeRequirement(welcome.CurrentVersion)
	if mandatory {
		session.SetUpdateStatus(proto.UpdateStatus{Kind: proto.UpdateRequiredStatus})
	} else {
		session.SetUpdateStatus(proto.UpdateStatus{Kind: proto.UpdateUpToDate})
	}
	resp := proto.NewVersionHandshakeResponse(requiredVersion, mandatory, updateURL, sha256)
	if err := link.SendJSON(resp); err != nil {
		c.setStatus(session, proto.StatusDisconnected)
		session.Close()
		c.registry.Remove(id)
		return fmt.Errorf("teacherconnector: handshake response: %w", err)
	}

	stop := make(chan struct{})
	go link.StartKeepalive(stop)

	writeErrCh := make(chan error, 1)
	go func() {
		writeErrCh <- RunWriteLoop(ctx, commands, func(cmd proto.Command) error {
			return link.SendJSON(cmd)
		})
	}()

	readErr := c.runReadLoop(ctx, session, link)

	// A signaling read/write failure (or a clean close) transitions
	// the session to Disconnected before it is torn down, so the UI
	// layer's last observation of this session is the terminal state
	// rather than silence.
	c.setStatus(session, proto.StatusDisconnected)

	close(stop)
	session.Close()
	// A reconnect under the same ID may already have replaced this
	// session in the registry; only remove the entry if it is still ours.
	if cur, ok := c.registry.Get(id); ok && cur == session {
		c.registry.Remove(id)
	}
	<-writeErrCh
	return readErr
}

func readWelcome(link *signaling.Link) (proto.StudentMessage, error) {
	type result struct {
		msg proto.StudentMessage
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := link.ReadNext()
		if err != nil {
			done <- result{err: err}
			return
		}
		var sm proto.StudentMessage
		if err := json.Unmarshal(msg.Data, &sm); err != nil {
			done <- result{err: err}
			return
		}
		done <- result{msg: sm}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return proto.StudentMessage{}, r.err
		}
		if r.msg.Type != proto.MessageWelcome {
			return proto.StudentMessage{}, fmt.Errorf("teacherconnector: expected Welcome, got %s", r.msg.Type)
		}
		return r.msg, nil
	case <-time.After(welcomeTimeout):
		return proto.StudentMessage{}, fmt.Errorf("teacherconnector: no Welcome within %s", welcomeTimeout)
	}
}

// runReadLoop consumes every message on link until it closes, updating
// session state and invoking handlers. A ScreenReady message triggers
// the UDP offer bootstrap: an ephemeral receiver is opened, its port is
// sent to the student, and its completed frames feed the session's
// frame slot for as long as the session lives.
func (c *Connector) runReadLoop(ctx context.Context, session *sessionregistry.Session, link *signaling.Link) error {
	var udpReceiver *udpframe.Receiver
	defer func() {
		if udpReceiver != nil {
			udpReceiver.Close()
		}
	}()

	for {
		msg, err := link.ReadNext()
		if err != nil {
			return err
		}

		if msg.Binary {
			frame, err := proto.DecodeFrame(msg.Data, proto.TransportSignaling)
			if err != nil {
				log.Warn("malformed binary frame", "session", session.ID, "error", err)
				continue
			}
			c.setFrame(session, frame)
			continue
		}

		var sm proto.StudentMessage
		if err := json.Unmarshal(msg.Data, &sm); err != nil {
			log.Warn("malformed student message", "session", session.ID, "error", err)
			continue
		}

		switch sm.Type {
		case proto.MessageScreenReady:
			session.SetScreenDims(sm.Width, sm.Height)
			c.setStatus(session, proto.StatusViewing)
			if udpReceiver == nil {
				recv, err := udpframe.NewReceiver()
				if err != nil {
					log.Warn("udp receiver bind failed, staying on signaling transport", "session", session.ID, "error", err)
					continue
				}
				udpReceiver = recv
				go c.forwardUDPFrames(ctx, session, recv)
				if err := session.SendCommand(proto.NewUdpOffer(recv.Port())); err != nil {
					log.Warn("udp offer dispatch failed", "session", session.ID, "error", err)
				}
			}
		case proto.MessageScreenStopped:
			c.setStatus(session, proto.StatusConnected)
			session.ClearFrame()
			if udpReceiver != nil {
				udpReceiver.Close()
				udpReceiver = nil
			}
		case proto.MessageScreenStatus:
			if sm.Status == "Error" {
				log.Warn("student screen pipeline errored", "session", session.ID, "message", sm.Message)
				c.setStatus(session, proto.StatusError)
			} else {
				c.setStatus(session, proto.StatusViewing)
			}
		case proto.MessageUdpReady:
			session.SetTransport(proto.TransportUDP)
		case proto.MessageUdpFallback:
			session.SetTransport(proto.TransportSignaling)
			if udpReceiver != nil {
				udpReceiver.Close()
				udpReceiver = nil
			}
		case proto.MessageDirectoryListing:
			c.fulfillListing(session, sm.Path, sm.Files)
			c.handlers.fire(func() { c.handlers.OnDirectoryListing(session, sm.Path, sm.Files) })
		case proto.MessageFileReceived:
			c.handlers.fire(func() { c.handlers.OnFileReceived(session, sm.Name, sm.Success, sm.Message) })
		case proto.MessageUpdateStatus:
			status := statusFromMessage(sm)
			session.SetUpdateStatus(status)
			c.handlers.fire(func() { c.handlers.OnUpdateStatus(session, status) })
		case proto.MessageUpdateAcknowledged:
			c.handlers.fire(func() { c.handlers.OnUpdateAcknowledged(session, sm.Version) })
		case proto.MessageError:
			c.handlers.fire(func() { c.handlers.OnError(session, sm.Message) })
		case proto.MessagePong:
			// keepalive acknowledgement at the application layer, no state change
		}
	}
}

func statusFromMessage(sm proto.StudentMessage) proto.UpdateStatus {
	us := proto.UpdateStatus{Kind: proto.UpdateStatusKind(sm.Status), Reason: sm.Error}
	if sm.Progress != nil {
		us.Progress = *sm.Progress
	}
	return us
}

func (c *Connector) forwardUDPFrames(ctx context.Context, session *sessionregistry.Session, recv *udpframe.Receiver) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := recv.Run(ctx); err != nil {
			log.Warn("udp receiver stopped", "session", session.ID, "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case frame, ok := <-recv.Frames():
			if !ok {
				return
			}
			c.setFrame(session, *frame)
		}
	}
}
