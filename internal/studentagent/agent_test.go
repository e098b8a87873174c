package studentagent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/classroomlink/link/internal/capture"
	"github.com/classroomlink/link/internal/filetransfer"
	"github.com/classroomlink/link/internal/inputinject"
	"github.com/classroomlink/link/internal/lifecycle"
	"github.com/classroomlink/link/internal/proto"
	"github.com/classroomlink/link/internal/signaling"
)

// fakeCapturer is a deterministic capture.Capturer for tests: it always
// reports a tiny, already-even-dimensioned frame.
type fakeCapturer struct {
	width, height int
}

func (f *fakeCapturer) CaptureFrame() (capture.Frame, error) {
	return capture.Frame{
		RGBA:   make([]byte, f.width*f.height*4),
		Width:  f.width,
		Height: f.height,
		Stride: f.width * 4,
	}, nil
}

func (f *fakeCapturer) Bounds() (int, int, error) { return f.width, f.height, nil }
func (f *fakeCapturer) Close() error              { return nil }

// fakeInputBackend records every call Apply makes, so tests can assert
// on translated coordinates without a real OS input device.
type fakeInputBackend struct {
	mu      sync.Mutex
	moves   []struct{ dx, dy int32 }
	clicks  []proto.MouseEventType
	keyDown []int
	keyUp   []int
}

func (b *fakeInputBackend) MoveMouse(dx, dy int32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.moves = append(b.moves, struct{ dx, dy int32 }{dx, dy})
	return nil
}
func (b *fakeInputBackend) ButtonDown(proto.MouseEventType) error { return nil }
func (b *fakeInputBackend) ButtonUp(proto.MouseEventType) error   { return nil }
func (b *fakeInputBackend) Click(button proto.MouseEventType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clicks = append(b.clicks, button)
	return nil
}
func (b *fakeInputBackend) Scroll(dx, dy int32) error { return nil }
func (b *fakeInputBackend) KeyDown(code int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keyDown = append(b.keyDown, code)
	return nil
}
func (b *fakeInputBackend) KeyUp(code int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keyUp = append(b.keyUp, code)
	return nil
}
func (b *fakeInputBackend) Close() error { return nil }

// linkPair dials an in-process signaling.Acceptor and returns the
// student-side Link (what Agent operates on) paired with the
// teacher-side Link a test drives directly to script the handshake.
func linkPair(t *testing.T) (studentLink, teacherLink *signaling.Link) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	acceptor := signaling.NewAcceptor("127.0.0.1:0")
	go acceptor.Serve(ctx)

	addr, err := acceptor.Addr(ctx)
	require.NoError(t, err)

	teacherLink, err = signaling.Dial(ctx, addr.String())
	require.NoError(t, err)

	select {
	case studentLink = <-acceptor.Links():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted link")
	}
	return studentLink, teacherLink
}

func readStudentMessage(t *testing.T, link *signaling.Link) proto.StudentMessage {
	t.Helper()
	msg, err := link.ReadNext()
	require.NoError(t, err)
	require.False(t, msg.Binary)
	var sm proto.StudentMessage
	require.NoError(t, json.Unmarshal(msg.Data, &sm))
	return sm
}

// TestHandshakeSendsWelcomeThenAwaitsResponse exercises the opening
// sequence: Welcome goes out unconditionally, and the agent blocks for
// VersionHandshakeResponse before doing anything else.
func TestHandshakeSendsWelcomeThenAwaitsResponse(t *testing.T) {
	studentLink, teacherLink := linkPair(t)
	defer teacherLink.Close()

	agent := New(studentLink, Config{
		StudentName:    "room-205-pc-3",
		CurrentVersion: "1.1.0",
		MachineName:    "pc-3",
	}, Collaborators{
		Capturer:     &fakeCapturer{width: 64, height: 48},
		InputBackend: &fakeInputBackend{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- agent.Run(ctx) }()

	welcome := readStudentMessage(t, teacherLink)
	require.Equal(t, proto.MessageWelcome, welcome.Type)
	require.Equal(t, "room-205-pc-3", welcome.StudentName)
	require.Equal(t, "1.1.0", welcome.CurrentVersion)

	require.NoError(t, teacherLink.SendJSON(proto.NewVersionHandshakeResponse("1.2.0", true, "http://10.0.0.1:9280/update/package", "abc123")))

	ready := readStudentMessage(t, teacherLink)
	require.Equal(t, proto.MessageScreenReady, ready.Type)
	require.Equal(t, 64, ready.Width)
	require.Equal(t, 48, ready.Height)

	cancel()
	teacherLink.Close()
	<-runErrCh
}

// TestDispatchRequestKeyframeSetsFlag exercises the RequestKeyframe
// command path directly against dispatch, without needing a full
// running pipeline.
func TestDispatchRequestKeyframeSetsFlag(t *testing.T) {
	studentLink, teacherLink := linkPair(t)
	defer teacherLink.Close()
	defer studentLink.Close()

	agent := New(studentLink, Config{StudentName: "s1", CurrentVersion: "1.0.0"}, Collaborators{
		Capturer:     &fakeCapturer{width: 2, height: 2},
		InputBackend: &fakeInputBackend{},
	})

	require.False(t, agent.forceKeyframe.Load())
	agent.dispatch(context.Background(), proto.NewRequestKeyframe())
	require.True(t, agent.forceKeyframe.Load())
}

// TestDispatchStopAndResumeScreen: StopScreen must both flip the
// running flag and reply ScreenStopped on the link; RequestScreen
// resumes emission.
func TestDispatchStopAndResumeScreen(t *testing.T) {
	studentLink, teacherLink := linkPair(t)
	defer teacherLink.Close()
	defer studentLink.Close()

	agent := New(studentLink, Config{StudentName: "s1", CurrentVersion: "1.0.0"}, Collaborators{
		Capturer:     &fakeCapturer{width: 2, height: 2},
		InputBackend: &fakeInputBackend{},
	})
	agent.screenRunning.Store(true)

	agent.dispatch(context.Background(), proto.NewStopScreen())
	require.False(t, agent.screenRunning.Load())

	stopped := readStudentMessage(t, teacherLink)
	require.Equal(t, proto.MessageScreenStopped, stopped.Type)

	agent.dispatch(context.Background(), proto.NewRequestScreen())
	require.True(t, agent.screenRunning.Load())
}

// TestDispatchMouseInputAppliesToBackend exercises the injection wiring: a
// normalized MouseInput move reaches the backend as a pixel delta
// relative to the screen dimensions the agent was told about.
func TestDispatchMouseInputAppliesToBackend(t *testing.T) {
	studentLink, teacherLink := linkPair(t)
	defer teacherLink.Close()
	defer studentLink.Close()

	backend := &fakeInputBackend{}
	agent := New(studentLink, Config{StudentName: "s1", CurrentVersion: "1.0.0"}, Collaborators{
		Capturer:     &fakeCapturer{width: 2, height: 2},
		InputBackend: backend,
	})
	agent.input.SetScreenDims(1000, 1000)

	agent.dispatch(context.Background(), proto.NewMouseInput(proto.MouseEvent{Type: proto.MouseMove, X: 0.1, Y: 0.1}))
	agent.dispatch(context.Background(), proto.NewMouseInput(proto.MouseEvent{Type: proto.MouseMove, X: 0.2, Y: 0.3}))

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.moves, 1) // first move only seeds position, no delta yet
	require.Equal(t, int32(100), backend.moves[0].dx)
	require.Equal(t, int32(200), backend.moves[0].dy)
}

// TestDispatchUnknownKeyReportsError: an unmapped key replies Error on
// the link without disrupting the session.
func TestDispatchUnknownKeyReportsError(t *testing.T) {
	studentLink, teacherLink := linkPair(t)
	defer teacherLink.Close()
	defer studentLink.Close()

	agent := New(studentLink, Config{StudentName: "s1", CurrentVersion: "1.0.0"}, Collaborators{
		Capturer:     &fakeCapturer{width: 2, height: 2},
		InputBackend: &fakeInputBackend{},
	})

	agent.dispatch(context.Background(), proto.NewKeyboardInput(proto.KeyEvent{Key: "NotARealKey"}))

	errMsg := readStudentMessage(t, teacherLink)
	require.Equal(t, proto.MessageError, errMsg.Type)

	agent.dispatch(context.Background(), proto.NewRequestKeyframe())
	require.True(t, agent.forceKeyframe.Load())
}

// TestLifecycleFailureReportsError: a failing OS action is reported
// back without tearing the session down. The action is a stand-in that
// always fails, so the test does not depend on which OS lifecycle
// commands exist where it runs.
func TestLifecycleFailureReportsError(t *testing.T) {
	studentLink, teacherLink := linkPair(t)
	defer teacherLink.Close()
	defer studentLink.Close()

	agent := New(studentLink, Config{StudentName: "s1", CurrentVersion: "1.0.0"}, Collaborators{
		Capturer:     &fakeCapturer{width: 2, height: 2},
		InputBackend: &fakeInputBackend{},
	})
	agent.lifecycle = lifecycle.New()

	failing := func() error { return assertableErr }
	agent.runLifecycle(failing)

	msg := readStudentMessage(t, teacherLink)
	require.Equal(t, proto.MessageError, msg.Type)
}

var assertableErr = &testLifecycleError{"lock failed: no session"}

type testLifecycleError struct{ s string }

func (e *testLifecycleError) Error() string { return e.s }

// TestFileTransferRoundTrip exercises SendFile/ListDirectory dispatch
// end to end against a real filetransfer.Manager writing into a temp
// directory.
func TestFileTransferRoundTrip(t *testing.T) {
	dir := t.TempDir()
	studentLink, teacherLink := linkPair(t)
	defer teacherLink.Close()
	defer studentLink.Close()

	agent := New(studentLink, Config{StudentName: "s1", CurrentVersion: "1.0.0", InboundFilesDir: dir}, Collaborators{
		Capturer:     &fakeCapturer{width: 2, height: 2},
		InputBackend: &fakeInputBackend{},
	})
	agent.files = filetransfer.New(dir)

	agent.dispatch(context.Background(), proto.NewSendFile("notes.txt", 5, "aGVsbG8=")) // "hello"
	received := readStudentMessage(t, teacherLink)
	require.Equal(t, proto.MessageFileReceived, received.Type)
	require.True(t, received.Success)

	agent.dispatch(context.Background(), proto.NewListDirectory(dir))
	listing := readStudentMessage(t, teacherLink)
	require.Equal(t, proto.MessageDirectoryListing, listing.Type)
	require.Len(t, listing.Files, 1)
	require.Equal(t, "notes.txt", listing.Files[0].Name)
}

var _ inputinject.Backend = (*fakeInputBackend)(nil)
