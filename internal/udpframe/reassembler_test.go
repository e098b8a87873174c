package udpframe

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classroomlink/link/internal/proto"
)

func keyframeDatagrams(frameID uint32, avccLen, payloadLen int) [][]byte {
	f := proto.Frame{
		IsKeyframe: true,
		Timestamp:  uint64(frameID),
		Width:      1920,
		Height:     1080,
		AVCC:       bytes.Repeat([]byte{0xAA}, avccLen),
		Payload:    bytes.Repeat([]byte{0x01}, payloadLen),
	}
	return proto.FragmentFrame(frameID, f)
}

func TestReassemblerCompletesInAnyOrder(t *testing.T) {
	r := NewReassembler()
	datagrams := keyframeDatagrams(1, 30, 3000)
	require.Len(t, datagrams, 3)

	perm := rand.New(rand.NewSource(3)).Perm(len(datagrams))
	var completed *proto.Frame
	for _, i := range perm {
		f, err := r.Ingest(datagrams[i])
		require.NoError(t, err)
		if f != nil {
			completed = f
		}
	}
	require.NotNil(t, completed)
	require.True(t, completed.IsKeyframe)
	require.Len(t, completed.Payload, 3000)
	require.Equal(t, int64(1), r.Watermark())
}

func TestWatermarkNeverDecreases(t *testing.T) {
	r := NewReassembler()
	ids := []uint32{5, 3, 9, 1, 20}
	var lastWatermark int64 = -1
	for _, id := range ids {
		for _, d := range keyframeDatagrams(id, 10, 10) {
			r.Ingest(d)
		}
		w := r.Watermark()
		require.GreaterOrEqual(t, w, lastWatermark)
		lastWatermark = w
	}
}

func TestStaleFragmentDroppedWithoutStateChange(t *testing.T) {
	r := NewReassembler()
	for _, d := range keyframeDatagrams(100, 10, 10) {
		r.Ingest(d)
	}
	require.Equal(t, int64(100), r.Watermark())

	// frame_id 94: 94 + 5 <= 100, must be dropped without affecting state.
	staleDatagrams := keyframeDatagrams(94, 10, 10)
	f, err := r.Ingest(staleDatagrams[0])
	require.NoError(t, err)
	require.Nil(t, f)
	require.Equal(t, int64(100), r.Watermark())
	require.Equal(t, 0, r.PendingCount(94))
}

// A delta frame with a lost fragment must never be emitted; the next
// complete keyframe advances the watermark past it.
func TestDeltaFrameLostNeverEmitted(t *testing.T) {
	r := NewReassembler()

	// Keyframe id=100, complete.
	for _, d := range keyframeDatagrams(100, 10, 10) {
		f, err := r.Ingest(d)
		require.NoError(t, err)
		_ = f
	}
	require.Equal(t, int64(100), r.Watermark())

	// Delta id=101 in 3 fragments, fragments 1 and 2 lost: only send fragment 0.
	delta := proto.Frame{
		IsKeyframe: false,
		Timestamp:  101,
		Width:      1920,
		Height:     1080,
		Payload:    bytes.Repeat([]byte{0x02}, 3000),
	}
	deltaDatagrams := proto.FragmentFrame(101, delta)
	require.Len(t, deltaDatagrams, 3)
	f, err := r.Ingest(deltaDatagrams[0])
	require.NoError(t, err)
	require.Nil(t, f)
	require.Equal(t, 1, r.PendingCount(101))

	// Keyframe id=102 completes; watermark advances to 102.
	var completed *proto.Frame
	for _, d := range keyframeDatagrams(102, 10, 10) {
		f, err := r.Ingest(d)
		require.NoError(t, err)
		if f != nil {
			completed = f
		}
	}
	require.NotNil(t, completed)
	require.Equal(t, int64(102), r.Watermark())
	// Slot 101 is never completed (fragment 1 never arrives); the reap
	// window (watermark-10) hasn't caught up to it yet at this point,
	// so it may still be resident, but no Frame was ever emitted for it.
	require.Equal(t, 1, r.PendingCount(101))
}
