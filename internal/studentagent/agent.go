// Package studentagent implements the student side of one
// teacher↔student session. It is the mirror image of
// internal/teacherconnector — where that package drives the write loop
// from a command channel and reads frames off the wire, this package
// drives a capture/encode loop that produces frames and reads commands
// off the wire, dispatching each to the input injector, the lifecycle
// executor, the file transfer and update collaborators, or the
// UDP/signaling frame emitters.
package studentagent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/classroomlink/link/internal/capture"
	"github.com/classroomlink/link/internal/codec"
	"github.com/classroomlink/link/internal/filetransfer"
	"github.com/classroomlink/link/internal/inputinject"
	"github.com/classroomlink/link/internal/lifecycle"
	"github.com/classroomlink/link/internal/logging"
	"github.com/classroomlink/link/internal/proto"
	"github.com/classroomlink/link/internal/signaling"
	"github.com/classroomlink/link/internal/udpframe"
	"github.com/classroomlink/link/internal/updater"
)

var log = logging.L("studentagent")

// welcomeResponseTimeout bounds how long the agent waits for the
// teacher's VersionHandshakeResponse after sending Welcome.
const welcomeResponseTimeout = 10 * time.Second

// Config carries everything the agent needs to identify itself and
// stage updates; it mirrors teacherconnector.Config from the other
// side of the handshake.
type Config struct {
	StudentName     string
	CurrentVersion  string
	MachineName     string
	InboundFilesDir string
	UpdaterConfig   *updater.Config
}

// Collaborators lets the caller inject the platform-specific pieces
// (capture backend, input backend) so Agent itself stays free of
// per-OS branching.
type Collaborators struct {
	Capturer     capture.Capturer
	InputBackend inputinject.Backend
}

// Agent owns one accepted signaling link for its whole lifetime: the
// handshake, the capture/encode/emit loop, and the inbound command
// dispatcher. Create one per accepted link and run it in its own
// goroutine.
type Agent struct {
	cfg          Config
	link         *signaling.Link
	input        *inputinject.Handler
	inputBackend inputinject.Backend
	files        *filetransfer.Manager
	lifecycle    *lifecycle.Executor
	installer    *updater.Installer
	encoder      *codec.Encoder
	capturer     capture.Capturer

	frameID atomic.Uint32

	// udpMu guards udpSender, which the dispatch goroutine installs on
	// a UdpOffer and the capture goroutine tears down on a send
	// failure; useUDP stays atomic so the per-frame fast path never
	// takes the lock when UDP is inactive.
	udpMu         sync.Mutex
	udpSender     *udpframe.Sender
	useUDP        atomic.Bool
	forceKeyframe atomic.Bool
	screenRunning atomic.Bool
	screenErrored atomic.Bool
	stopScreen    chan struct{}
}

// New prepares an Agent for one accepted link. Call Run to drive its
// lifecycle to completion.
func New(link *signaling.Link, cfg Config, collab Collaborators) *Agent {
	installer := updater.New(cfg.UpdaterConfig)
	a := &Agent{
		cfg:          cfg,
		link:         link,
		input:        inputinject.NewHandler(collab.InputBackend, 0, 0),
		inputBackend: collab.InputBackend,
		files:        filetransfer.New(cfg.InboundFilesDir),
		lifecycle:    lifecycle.New(),
		installer:    installer,
		encoder:      codec.NewEncoder(),
		capturer:     collab.Capturer,
	}
	return a
}

// Run executes the full session lifecycle: Welcome, version handshake,
// screen pipeline bring-up, and the steady-state command dispatch loop.
// It returns when the link closes or ctx is cancelled, after cleaning
// up the capture task and any UDP sender.
func (a *Agent) Run(ctx context.Context) error {
	defer a.teardown()

	if err := a.link.SendJSON(proto.NewWelcome(a.cfg.StudentName, a.cfg.CurrentVersion, a.cfg.MachineName)); err != nil {
		return fmt.Errorf("studentagent: send welcome: %w", err)
	}

	handshake, err := a.awaitHandshakeResponse()
	if err != nil {
		return fmt.Errorf("studentagent: handshake: %w", err)
	}
	if handshake.MandatoryUpdate {
		log.Info("mandatory update announced at handshake", "requiredVersion", handshake.RequiredVersion)
		go a.stageUpdate(ctx, handshake.RequiredVersion, handshake.UpdateURL, handshake.SHA256)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.startScreen(ctx)

	return a.dispatchLoop(ctx)
}

// awaitHandshakeResponse blocks for the first message on the link and
// requires it to be a VersionHandshakeResponse; any other message at
// this point in the protocol is a violation the agent cannot recover
// from, since screen emission must not begin before the teacher has
// stated its version requirement.
func (a *Agent) awaitHandshakeResponse() (proto.Command, error) {
	type result struct {
		cmd proto.Command
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := a.link.ReadNext()
		if err != nil {
			done <- result{err: err}
			return
		}
		if msg.Binary {
			done <- result{err: fmt.Errorf("expected VersionHandshakeResponse, got binary frame")}
			return
		}
		var cmd proto.Command
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			done <- result{err: err}
			return
		}
		if cmd.Type != proto.CommandVersionHandshakeResponse {
			done <- result{err: fmt.Errorf("expected VersionHandshakeResponse, got %s", cmd.Type)}
			return
		}
		done <- result{cmd: cmd}
	}()

	select {
	case r := <-done:
		return r.cmd, r.err
	case <-time.After(welcomeResponseTimeout):
		return proto.Command{}, fmt.Errorf("no handshake response within %s", welcomeResponseTimeout)
	}
}

func (a *Agent) teardown() {
	if a.stopScreen != nil {
		close(a.stopScreen)
	}
	if a.encoder != nil {
		a.encoder.Close()
	}
	if a.capturer != nil {
		a.capturer.Close()
	}
	if a.inputBackend != nil {
		a.inputBackend.Close()
	}
	a.udpMu.Lock()
	if a.udpSender != nil {
		a.udpSender.Close()
		a.udpSender = nil
	}
	a.udpMu.Unlock()
}

func (a *Agent) stageUpdate(ctx context.Context, version, url, sha256 string) {
	for p := range a.installer.StageUpdate(ctx, url, sha256) {
		if p.Err != nil {
			msg := p.Err.Error()
			a.sendMessage(proto.NewUpdateStatus(string(proto.UpdateFailed), nil, msg))
			return
		}
		switch p.Stage {
		case updater.StageDownloading:
			pct := p.Percent
			a.sendMessage(proto.NewUpdateStatus(string(proto.UpdateDownloading), &pct, ""))
		case updater.StageVerifying:
			a.sendMessage(proto.NewUpdateStatus(string(proto.UpdateVerifying), nil, ""))
		case updater.StageStaged:
			a.sendMessage(proto.NewUpdateStatus(string(proto.UpdateInstalling), nil, ""))
			a.sendMessage(proto.NewUpdateAcknowledged(version))
		}
	}
}

func (a *Agent) sendMessage(sm proto.StudentMessage) {
	if err := a.link.SendJSON(sm); err != nil {
		log.Warn("send failed", "type", sm.Type, "error", err)
	}
}
