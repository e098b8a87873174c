package proto

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFragmentHeaderRoundTrip(t *testing.T) {
	h := FragmentHeader{
		FrameID:        100,
		FragmentIndex:  2,
		TotalFragments: 3,
		IsKeyframe:     true,
		Timestamp:      999,
		Width:          1920,
		Height:         1080,
		AVCCLen:        30,
	}
	decoded, err := DecodeFragmentHeader(h.Encode())
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

func TestDecodeFragmentHeaderRejectsBadMagic(t *testing.T) {
	buf := FragmentHeader{FrameID: 1, TotalFragments: 1}.Encode()
	buf[0] = 'X'
	_, err := DecodeFragmentHeader(buf)
	require.Error(t, err)
}

// reassembleFragments is a tiny in-test helper mirroring what the
// receiver does: concatenate fragment payloads in index order.
func reassembleFragments(datagrams [][]byte) ([]byte, FragmentHeader, error) {
	headers := make([]FragmentHeader, len(datagrams))
	chunks := make([][]byte, len(datagrams))
	for i, d := range datagrams {
		h, err := DecodeFragmentHeader(d)
		if err != nil {
			return nil, FragmentHeader{}, err
		}
		headers[i] = h
		chunks[h.FragmentIndex] = d[FragmentHeaderSize:]
	}
	var out bytes.Buffer
	for _, c := range chunks {
		out.Write(c)
	}
	return out.Bytes(), headers[0], nil
}

// TestFragmentIntegrityAnyPermutation: fragmenting then
// reassembling in any arrival order reproduces the original frame and
// its keyframe/timestamp metadata.
func TestFragmentIntegrityAnyPermutation(t *testing.T) {
	payload := make([]byte, 3*MaxFragmentPayload+17)
	rand.New(rand.NewSource(1)).Read(payload)

	f := Frame{
		IsKeyframe: true,
		Timestamp:  123456,
		Width:      1920,
		Height:     1080,
		AVCC:       payload[:30],
		Payload:    payload[30:],
	}

	datagrams := FragmentFrame(7, f)
	require.Len(t, datagrams, 4)

	perm := rand.New(rand.NewSource(2)).Perm(len(datagrams))
	shuffled := make([][]byte, len(datagrams))
	for i, p := range perm {
		shuffled[i] = datagrams[p]
	}

	reassembled, header, err := reassembleFragments(shuffled)
	require.NoError(t, err)
	require.Equal(t, payload, reassembled)
	require.True(t, header.IsKeyframe)
	require.Equal(t, uint64(123456), header.Timestamp)
}

// A single keyframe split across three fragments arriving out of order
// must reassemble byte-for-byte with its metadata intact.
func TestFragmentSingleKeyframeThreeFragmentsOutOfOrder(t *testing.T) {
	avcc := bytes.Repeat([]byte{0xAA}, 30)
	annexB := bytes.Repeat([]byte{0x01}, 3000)

	f := Frame{
		IsKeyframe: true,
		Timestamp:  555,
		Width:      1920,
		Height:     1080,
		AVCC:       avcc,
		Payload:    annexB,
	}

	datagrams := FragmentFrame(1, f)
	require.Len(t, datagrams, 3)

	reordered := [][]byte{datagrams[2], datagrams[0], datagrams[1]}
	reassembled, header, err := reassembleFragments(reordered)
	require.NoError(t, err)

	spsPPSLen := int(header.AVCCLen)
	require.Equal(t, 30, spsPPSLen)
	h264Data := reassembled[spsPPSLen:]
	require.Len(t, h264Data, 3000)
	require.True(t, header.IsKeyframe)
	require.Equal(t, uint32(1920), header.Width)
	require.Equal(t, uint32(1080), header.Height)
	require.Equal(t, append(append([]byte{}, avcc...), annexB...), reassembled)
}
