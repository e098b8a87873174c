// Package discovery implements the LAN broadcast request/response
// protocol a student uses to find its teacher: a literal token
// broadcast to the well-known port, answered with the teacher's name.
// Deliberately narrower than general subnet scanning — the only
// question it answers is "who is the teacher for this classroom."
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/classroomlink/link/internal/logging"
)

var log = logging.L("discovery")

// DefaultPort is the well-known UDP port both the beacon request and
// its reply travel on.
const DefaultPort = 3017

const (
	requestToken   = "STUDENT_LOOKING_FOR_TEACHER"
	replyPrefix    = "TEACHER_HERE:"
	probeCount     = 3
	probeSpacing   = 200 * time.Millisecond
	probeDeadline  = 3 * time.Second
	retryInterval  = 10 * time.Second
	readBufferSize = 256
)

// TeacherFound describes one reply a student probe received.
type TeacherFound struct {
	Addr *net.UDPAddr
	Name string
}

// Listener is the teacher-side discovery responder: it answers every
// STUDENT_LOOKING_FOR_TEACHER datagram with TEACHER_HERE:<name>.
type Listener struct {
	name string
	port int
	conn *net.UDPConn
}

// NewListener prepares (but does not bind) a discovery responder
// advertising teacherName on port (0 = DefaultPort).
func NewListener(teacherName string, port int) *Listener {
	if port == 0 {
		port = DefaultPort
	}
	return &Listener{name: teacherName, port: port}
}

// Serve binds the discovery UDP socket and answers requests until ctx
// is cancelled.
func (l *Listener) Serve(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: l.port})
	if err != nil {
		return fmt.Errorf("discovery: bind :%d: %w", l.port, err)
	}
	l.conn = conn
	defer conn.Close()
	return l.serveOn(ctx, conn)
}

// serveOn runs the answer loop against an already-bound socket,
// letting tests supply a loopback-bound listener without claiming the
// well-known discovery port.
func (l *Listener) serveOn(ctx context.Context, conn *net.UDPConn) error {
	// SetControlMessage lets us log which local interface answered a
	// beacon on multi-homed teacher machines; it has no effect on the
	// reply itself.
	pc := ipv4.NewPacketConn(conn)
	_ = pc.SetControlMessage(ipv4.FlagInterface, true)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, cm, src, err := pc.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			log.Warn("read error", "error", err)
			continue
		}
		if strings.TrimSpace(string(buf[:n])) != requestToken {
			continue
		}
		udpSrc, ok := src.(*net.UDPAddr)
		if !ok {
			continue
		}
		reply := []byte(replyPrefix + l.name)
		if _, err := conn.WriteToUDP(reply, udpSrc); err != nil {
			log.Warn("reply failed", "to", udpSrc, "error", err)
			continue
		}
		ifaceName := ""
		if cm != nil {
			if iface, err := net.InterfaceByIndex(cm.IfIndex); err == nil {
				ifaceName = iface.Name
			}
		}
		log.Info("answered discovery beacon", "from", udpSrc, "interface", ifaceName)
	}
}

// Probe broadcasts probeCount request datagrams ~probeSpacing apart and
// collects replies until probeDeadline elapses or ctx is cancelled. It
// never returns an error for "no teacher found" — callers loop calling
// Probe on retryInterval (see RunUntilFound).
func Probe(ctx context.Context, port int) ([]TeacherFound, error) {
	if port == 0 {
		port = DefaultPort
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, fmt.Errorf("discovery: open probe socket: %w", err)
	}
	defer conn.Close()

	if err := enableBroadcast(conn); err != nil {
		return nil, fmt.Errorf("discovery: enable broadcast: %w", err)
	}

	broadcastAddr := &net.UDPAddr{IP: net.IPv4bcast, Port: port}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < probeCount; i++ {
			if _, err := conn.WriteToUDP([]byte(requestToken), broadcastAddr); err != nil {
				log.Warn("probe send failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(probeSpacing):
			}
		}
	}()

	deadline := time.Now().Add(probeDeadline)
	conn.SetReadDeadline(deadline)
	stopOnCancel := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stopOnCancel()

	var found []TeacherFound
	buf := make([]byte, readBufferSize)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		text := string(buf[:n])
		if !strings.HasPrefix(text, replyPrefix) {
			continue
		}
		found = append(found, TeacherFound{
			Addr: src,
			Name: strings.TrimPrefix(text, replyPrefix),
		})
	}
	<-done
	return found, nil
}

// RunUntilFound probes on retryInterval until the callback reports a
// teacher was adopted (returns true) or ctx is cancelled. It is
// idempotent: repeated calls after a teacher is already known are
// harmless, since the caller decides when to stop retrying.
func RunUntilFound(ctx context.Context, port int, onFound func(TeacherFound) bool) error {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	probeAndReport := func() bool {
		found, err := Probe(ctx, port)
		if err != nil {
			log.Warn("probe failed", "error", err)
			return false
		}
		for _, f := range found {
			if onFound(f) {
				return true
			}
		}
		return false
	}

	if probeAndReport() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if probeAndReport() {
				return nil
			}
		}
	}
}
