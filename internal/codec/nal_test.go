package codec

import (
	"bytes"
	"testing"
)

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

func TestBuildAVCC(t *testing.T) {
	sps := []byte{0x67, 0x42, 0x00, 0x1e, 0xaa, 0xbb}
	pps := []byte{0x68, 0xce, 0x3c, 0x80}
	idr := []byte{0x65, 0x01, 0x02, 0x03}

	data := annexB(sps, pps, idr)

	avcc, err := buildAVCC(data)
	if err != nil {
		t.Fatalf("buildAVCC: %v", err)
	}

	if avcc[0] != 0x01 {
		t.Errorf("configurationVersion = %d, want 1", avcc[0])
	}
	if avcc[1] != sps[0] || avcc[2] != sps[1] || avcc[3] != sps[2] {
		t.Errorf("profile/compat/level mismatch")
	}
	if avcc[4]&0x03 != 3 {
		t.Errorf("lengthSizeMinusOne = %d, want 3", avcc[4]&0x03)
	}
	if avcc[5]&0x1f != 1 {
		t.Errorf("numOfSequenceParameterSets = %d, want 1", avcc[5]&0x1f)
	}

	spsLen := int(avcc[6])<<8 | int(avcc[7])
	if spsLen != len(sps) {
		t.Fatalf("sps length = %d, want %d", spsLen, len(sps))
	}
	gotSPS := avcc[8 : 8+spsLen]
	if !bytes.Equal(gotSPS, sps) {
		t.Errorf("sps mismatch: got %x want %x", gotSPS, sps)
	}

	rest := avcc[8+spsLen:]
	if rest[0] != 1 {
		t.Errorf("numOfPictureParameterSets = %d, want 1", rest[0])
	}
	ppsLen := int(rest[1])<<8 | int(rest[2])
	if ppsLen != len(pps) {
		t.Fatalf("pps length = %d, want %d", ppsLen, len(pps))
	}
	if !bytes.Equal(rest[3:3+ppsLen], pps) {
		t.Errorf("pps mismatch")
	}
}

func TestBuildAVCC_MissingSPS(t *testing.T) {
	data := annexB([]byte{0x68, 0xce, 0x3c, 0x80})
	if _, err := buildAVCC(data); err == nil {
		t.Fatal("expected error with no SPS present")
	}
}

func TestContainsIDR(t *testing.T) {
	sps := []byte{0x67, 0x42, 0x00, 0x1e}
	pps := []byte{0x68, 0xce, 0x3c, 0x80}
	idr := []byte{0x65, 0x01}
	nonIDR := []byte{0x41, 0x01}

	if !containsIDR(annexB(sps, pps, idr)) {
		t.Error("expected keyframe bitstream to be detected as IDR")
	}
	if containsIDR(annexB(nonIDR)) {
		t.Error("expected delta bitstream to not be detected as IDR")
	}
}
