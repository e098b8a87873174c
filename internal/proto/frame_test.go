package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameHeaderRoundTrip(t *testing.T) {
	headers := []FrameHeader{
		{IsKeyframe: true, Timestamp: 1234567890, Width: 1920, Height: 1080, AVCCLen: 30},
		{IsKeyframe: false, Timestamp: 0, Width: 640, Height: 480, AVCCLen: 0},
		{IsKeyframe: true, Timestamp: ^uint64(0), Width: ^uint32(0), Height: ^uint32(0), AVCCLen: ^uint16(0)},
	}

	for _, h := range headers {
		decoded, err := DecodeFrameHeader(h.Encode())
		require.NoError(t, err)
		require.Equal(t, h, decoded)
	}
}

func TestDecodeFrameHeaderTooShort(t *testing.T) {
	_, err := DecodeFrameHeader(make([]byte, 5))
	require.Error(t, err)
}

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{
		IsKeyframe: true,
		Timestamp:  42,
		Width:      1920,
		Height:     1080,
		AVCC:       []byte{1, 2, 3, 4},
		Payload:    []byte{5, 6, 7, 8, 9, 10},
		Codec:      CodecH264,
		Transport:  TransportUDP,
	}

	decoded, err := DecodeFrame(f.Encode(), TransportUDP)
	require.NoError(t, err)
	require.Equal(t, f.IsKeyframe, decoded.IsKeyframe)
	require.Equal(t, f.Timestamp, decoded.Timestamp)
	require.Equal(t, f.Width, decoded.Width)
	require.Equal(t, f.Height, decoded.Height)
	require.Equal(t, f.AVCC, decoded.AVCC)
	require.Equal(t, f.Payload, decoded.Payload)
}

func TestFrameEncodeDecodeDeltaFrameHasNoAVCC(t *testing.T) {
	f := Frame{
		IsKeyframe: false,
		Timestamp:  7,
		Width:      1280,
		Height:     720,
		Payload:    []byte{1, 2, 3},
		Codec:      CodecH264,
	}

	decoded, err := DecodeFrame(f.Encode(), TransportSignaling)
	require.NoError(t, err)
	require.Empty(t, decoded.AVCC)
	require.Equal(t, f.Payload, decoded.Payload)
}
