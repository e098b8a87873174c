package studentagent

import (
	"context"
	"encoding/json"
	"net"

	"github.com/classroomlink/link/internal/proto"
	"github.com/classroomlink/link/internal/udpframe"
)

// dispatchLoop consumes every inbound message on the link until it
// closes, routing commands to the collaborator that owns them. Binary
// messages never arrive on this direction of the link in the live
// protocol (only JSON commands flow teacher→student), so any binary
// message here is a protocol violation and is logged and dropped.
func (a *Agent) dispatchLoop(ctx context.Context) error {
	for {
		msg, err := a.link.ReadNext()
		if err != nil {
			return err
		}
		if msg.Binary {
			log.Warn("unexpected binary message on inbound command stream")
			continue
		}

		var cmd proto.Command
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			log.Warn("malformed command", "error", err)
			continue
		}

		a.dispatch(ctx, cmd)
	}
}

func (a *Agent) dispatch(ctx context.Context, cmd proto.Command) {
	switch cmd.Type {
	case proto.CommandRequestKeyframe:
		a.forceKeyframe.Store(true)

	case proto.CommandStopScreen:
		a.screenRunning.Store(false)
		a.sendMessage(proto.NewScreenStopped())

	case proto.CommandRequestScreen:
		a.screenRunning.Store(true)

	case proto.CommandMouseInput, proto.CommandMouseInputBatch, proto.CommandKeyboardInput:
		if err := a.input.Apply(cmd); err != nil {
			a.sendMessage(proto.NewError(err.Error()))
		}

	case proto.CommandSendFile:
		if cmd.File != nil {
			a.sendMessage(a.files.HandleSendFile(cmd.File.Name, cmd.File.Size, cmd.File.Base64))
		}

	case proto.CommandListDirectory:
		a.sendMessage(a.files.HandleListDirectory(cmd.Path))

	case proto.CommandShutdown:
		a.runLifecycle(func() error { return a.lifecycle.Shutdown(delaySeconds(cmd.DelaySeconds)) })

	case proto.CommandRestart:
		a.runLifecycle(func() error { return a.lifecycle.Restart(delaySeconds(cmd.DelaySeconds)) })

	case proto.CommandLockScreen:
		a.runLifecycle(a.lifecycle.Lock)

	case proto.CommandLogout:
		a.runLifecycle(a.lifecycle.Logout)

	case proto.CommandUpdateRequired:
		go a.stageUpdate(ctx, cmd.RequiredVersion, cmd.UpdateURL, cmd.SHA256)

	case proto.CommandUdpOffer:
		a.handleUdpOffer(cmd.UDPPort)

	case proto.CommandVersionHandshakeResponse:
		// Only ever expected once, at handshake time; a second one is a
		// protocol violation that doesn't warrant tearing the session
		// down.
		log.Warn("unexpected VersionHandshakeResponse outside handshake")
	}
}

func delaySeconds(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// runLifecycle executes a lifecycle action and reports failure on the
// signaling link; success is implicit (the OS call itself will tear
// the session down for shutdown/restart/logout).
func (a *Agent) runLifecycle(action func() error) {
	if err := action(); err != nil {
		a.sendMessage(proto.NewError(err.Error()))
	}
}

// handleUdpOffer probes the offered address and switches the
// frame-emission target to UDP only if the probe succeeds; otherwise
// the teacher is told to keep reading frames off the signaling link.
func (a *Agent) handleUdpOffer(port int) {
	host, _, err := net.SplitHostPort(a.link.RemoteHost())
	if err != nil {
		host = a.link.RemoteHost()
	}
	addr := &net.UDPAddr{IP: net.ParseIP(host), Port: port}

	sender, err := udpframe.NewSender(addr)
	if err != nil {
		log.Warn("udp sender open failed, staying on signaling", "error", err)
		a.sendMessage(proto.NewUdpFallback())
		return
	}

	if err := sender.Probe(); err != nil {
		log.Warn("udp probe failed, staying on signaling", "error", err)
		sender.Close()
		a.sendMessage(proto.NewUdpFallback())
		return
	}

	a.udpMu.Lock()
	if a.udpSender != nil {
		a.udpSender.Close()
	}
	a.udpSender = sender
	a.udpMu.Unlock()
	a.useUDP.Store(true)
	a.sendMessage(proto.NewUdpReady())
}

// FallbackToSignaling switches emission back to the signaling link and
// forces the next frame to be a keyframe so the teacher's decoder
// recovers cleanly: a UDP send failure mid-session reports UdpFallback
// and no frame is permanently lost.
func (a *Agent) FallbackToSignaling() {
	a.useUDP.Store(false)
	a.udpMu.Lock()
	if a.udpSender != nil {
		a.udpSender.Close()
		a.udpSender = nil
	}
	a.udpMu.Unlock()
	a.forceKeyframe.Store(true)
	a.sendMessage(proto.NewUdpFallback())
}
