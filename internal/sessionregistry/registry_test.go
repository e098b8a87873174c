package sessionregistry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/classroomlink/link/internal/proto"
)

func TestSessionSnapshotReflectsState(t *testing.T) {
	s, _ := New("abc", "10.0.0.5:51000", nil)
	s.SetStatus(proto.StatusConnected)
	s.SetStudentInfo("1.1.0", "room-205-pc1")
	s.SetScreenDims(1920, 1080)
	s.SetTransport(proto.TransportUDP)

	snap := s.Snapshot()
	require.Equal(t, proto.StatusConnected, snap.Status)
	require.Equal(t, "1.1.0", snap.StudentVersion)
	require.Equal(t, "room-205-pc1", snap.MachineName)
	require.Equal(t, 1920, snap.ScreenWidth)
	require.Equal(t, proto.TransportUDP, snap.Transport)
}

func TestSessionFrameSlotReplacesNotInterleaves(t *testing.T) {
	s, _ := New("abc", "10.0.0.5:51000", nil)
	require.Nil(t, s.Frame())

	f1 := &proto.Frame{Timestamp: 1}
	f2 := &proto.Frame{Timestamp: 2}
	s.SetFrame(f1)
	s.SetFrame(f2)
	require.Equal(t, uint64(2), s.Frame().Timestamp)

	s.ClearFrame()
	require.Nil(t, s.Frame())
}

func TestRegistryAddReplacesAndClosesPrior(t *testing.T) {
	r := NewRegistry()
	s1, recv1 := New("id-1", "10.0.0.5:1", nil)
	r.Add(s1)
	require.Equal(t, 1, r.Len())

	s2, _ := New("id-1", "10.0.0.5:2", nil)
	r.Add(s2)
	require.Equal(t, 1, r.Len())

	got, ok := r.Get("id-1")
	require.True(t, ok)
	require.Same(t, s2, got)

	// The replaced session's command channel should be closed.
	_, open := <-recv1
	require.False(t, open)
}

func TestRegistrySnapshotAllAndIDs(t *testing.T) {
	r := NewRegistry()
	a, _ := New("a", "10.0.0.1:1", nil)
	b, _ := New("b", "10.0.0.2:1", nil)
	r.Add(a)
	r.Add(b)

	ids := r.IDs()
	require.ElementsMatch(t, []string{"a", "b"}, ids)

	snaps := r.SnapshotAll()
	require.Len(t, snaps, 2)
}
