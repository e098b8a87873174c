package studentagent

import (
	"context"
	"time"

	"github.com/classroomlink/link/internal/proto"
)

// captureInterval targets 30fps capture, matching the keyframe interval
// codec.KeyframeInterval is tuned against.
const captureInterval = time.Second / 30

// startScreen launches the dedicated capture/encode goroutine:
// CPU-bound work never runs on a goroutine that also does
// cooperative I/O. It sends ScreenReady once the first frame's
// dimensions are known, then keeps encoding and emitting frames until
// stopScreen is closed or ctx is cancelled.
func (a *Agent) startScreen(ctx context.Context) {
	a.stopScreen = make(chan struct{})
	a.screenRunning.Store(true)
	go a.captureLoop(ctx, a.stopScreen)
}

// captureLoop is the synchronous capture+encode loop. It never blocks
// on signaling/UDP I/O indefinitely: SendFrame is best-effort and
// non-retried, and the signaling link bounds the fallback path with its
// own write deadline.
func (a *Agent) captureLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(captureInterval)
	defer ticker.Stop()

	sentReady := false
	epoch := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
		}

		if !a.screenRunning.Load() {
			continue
		}

		shot, err := a.capturer.CaptureFrame()
		if err != nil {
			log.Warn("capture failed", "error", err)
			a.reportScreenError(err)
			continue
		}

		if !sentReady {
			a.sendMessage(proto.NewScreenReady(shot.Width, shot.Height))
			a.input.SetScreenDims(shot.Width, shot.Height)
			sentReady = true
		}

		if a.forceKeyframe.Swap(false) {
			a.encoder.ForceKeyframe()
		}

		timestampMs := uint64(time.Since(epoch).Milliseconds())
		frame, err := a.encoder.Encode(shot.RGBA, shot.Width, shot.Height, shot.Stride, timestampMs)
		if err != nil {
			log.Warn("encode failed", "error", err)
			a.reportScreenError(err)
			continue
		}

		a.reportScreenRecovered()
		a.emitFrame(frame)
	}
}

// reportScreenError tells the teacher the capture/encode pipeline is
// failing, once per failure run, so the session surfaces an Error
// status instead of silently stalling on the last good frame.
func (a *Agent) reportScreenError(cause error) {
	if a.screenErrored.Swap(true) {
		return
	}
	a.sendMessage(proto.NewScreenStatus("Error", cause.Error()))
}

// reportScreenRecovered tells the teacher the pipeline is healthy
// again after a prior reportScreenError, once per recovery.
func (a *Agent) reportScreenRecovered() {
	if !a.screenErrored.Swap(false) {
		return
	}
	a.sendMessage(proto.NewScreenStatus("Ok", ""))
}

// emitFrame sends one encoded frame on whichever transport is active.
// Exactly one transport at a time — frames are never mirrored: UDP once
// negotiated, the signaling link otherwise or after a fallback.
func (a *Agent) emitFrame(f proto.Frame) {
	id := a.frameID.Add(1)

	if a.useUDP.Load() {
		a.udpMu.Lock()
		sender := a.udpSender
		a.udpMu.Unlock()
		if sender != nil {
			if err := sender.SendFrame(id, f); err != nil {
				log.Warn("udp send failed, falling back to signaling", "frameId", id, "error", err)
				a.FallbackToSignaling()
			}
			return
		}
	}

	if err := a.link.SendBinary(f.Encode()); err != nil {
		log.Warn("signaling binary send failed", "frameId", id, "error", err)
	}
}
