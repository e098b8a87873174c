package teacherconnector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classroomlink/link/internal/proto"
)

// TestMouseBatchingCoalescesContiguousMoves: three moves arrive back to
// back, then a click, then one more move. The
// batcher must emit a single MouseInputBatch for the three moves, the
// click immediately after (held aside), then a lone MouseInput for the
// trailing move.
func TestMouseBatchingCoalescesContiguousMoves(t *testing.T) {
	commands := make(chan proto.Command, 5)
	commands <- proto.NewMouseInput(proto.MouseEvent{Type: proto.MouseMove, X: 0.1, Y: 0.1})
	commands <- proto.NewMouseInput(proto.MouseEvent{Type: proto.MouseMove, X: 0.15, Y: 0.12})
	commands <- proto.NewMouseInput(proto.MouseEvent{Type: proto.MouseMove, X: 0.2, Y: 0.15})
	commands <- proto.NewMouseInput(proto.MouseEvent{Type: proto.MouseClickLeft, X: 0.2, Y: 0.15})
	commands <- proto.NewMouseInput(proto.MouseEvent{Type: proto.MouseMove, X: 0.2, Y: 0.2})
	close(commands)

	var sent []proto.Command
	err := RunWriteLoop(context.Background(), commands, func(c proto.Command) error {
		sent = append(sent, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, sent, 3)

	require.Equal(t, proto.CommandMouseInputBatch, sent[0].Type)
	require.Len(t, sent[0].MouseBatch, 3)

	require.Equal(t, proto.CommandMouseInput, sent[1].Type)
	require.Equal(t, proto.MouseClickLeft, sent[1].Mouse.Type)

	require.Equal(t, proto.CommandMouseInput, sent[2].Type)
	require.Equal(t, proto.MouseMove, sent[2].Mouse.Type)
}

// TestSingleMoveIsNotWrappedInBatch: a single lone move followed by
// channel closure must be emitted as MouseInput, not a one-element
// MouseInputBatch.
func TestSingleMoveIsNotWrappedInBatch(t *testing.T) {
	commands := make(chan proto.Command, 1)
	commands <- proto.NewMouseInput(proto.MouseEvent{Type: proto.MouseMove, X: 0.5, Y: 0.5})
	close(commands)

	var sent []proto.Command
	err := RunWriteLoop(context.Background(), commands, func(c proto.Command) error {
		sent = append(sent, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Equal(t, proto.CommandMouseInput, sent[0].Type)
}

// TestBatchCapsAtTenEvents: a run of 12 contiguous moves must split
// into a 10-event batch and a 2-event batch, never one batch of 12.
func TestBatchCapsAtTenEvents(t *testing.T) {
	commands := make(chan proto.Command, 12)
	for i := 0; i < 12; i++ {
		commands <- proto.NewMouseInput(proto.MouseEvent{Type: proto.MouseMove, X: float64(i), Y: float64(i)})
	}
	close(commands)

	var sent []proto.Command
	err := RunWriteLoop(context.Background(), commands, func(c proto.Command) error {
		sent = append(sent, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, sent, 2)
	require.Equal(t, proto.CommandMouseInputBatch, sent[0].Type)
	require.Len(t, sent[0].MouseBatch, 10)
	require.Equal(t, proto.CommandMouseInputBatch, sent[1].Type)
	require.Len(t, sent[1].MouseBatch, 2)
}

// TestNonMouseCommandsPassThroughImmediately: commands that never need
// batching (e.g. a keyboard event) must not wait on anything.
func TestNonMouseCommandsPassThroughImmediately(t *testing.T) {
	commands := make(chan proto.Command, 1)
	commands <- proto.NewKeyboardInput(proto.KeyEvent{Key: "a"})
	close(commands)

	var sent []proto.Command
	err := RunWriteLoop(context.Background(), commands, func(c proto.Command) error {
		sent = append(sent, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Equal(t, proto.CommandKeyboardInput, sent[0].Type)
}

// TestWriteLoopStopsOnContextCancel ensures a cancelled context ends the
// loop cleanly instead of blocking forever on an empty channel.
func TestWriteLoopStopsOnContextCancel(t *testing.T) {
	commands := make(chan proto.Command)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunWriteLoop(ctx, commands, func(c proto.Command) error { return nil })
	require.NoError(t, err)
}
