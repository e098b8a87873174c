package codec

import "fmt"

// nalType values relevant to AVCC extraction and keyframe detection.
const (
	nalTypeSlice = 1
	nalTypeIDR   = 5
	nalTypeSPS   = 7
	nalTypePPS   = 8
)

// scanNALUs walks an Annex-B bytestream and returns the byte range
// (start of NALU payload, end) for each NAL unit found, in order. It
// recognizes both 3-byte (00 00 01) and 4-byte (00 00 00 01) start
// codes.
func scanNALUs(data []byte) []struct{ start, end int } {
	var starts []int
	for i := 0; i+2 < len(data); {
		if data[i] == 0 && data[i+1] == 0 {
			if data[i+2] == 1 {
				starts = append(starts, i+3)
				i += 3
				continue
			}
			if i+3 < len(data) && data[i+2] == 0 && data[i+3] == 1 {
				starts = append(starts, i+4)
				i += 4
				continue
			}
		}
		i++
	}

	nalus := make([]struct{ start, end int }, 0, len(starts))
	for idx, s := range starts {
		end := len(data)
		if idx+1 < len(starts) {
			// The next NALU's start includes its start code; back up to
			// the beginning of that start code to bound this one.
			next := starts[idx+1] - 3
			for next > s && next > 0 && data[next-1] == 0 {
				next--
			}
			end = next
		}
		nalus = append(nalus, struct{ start, end int }{s, end})
	}
	return nalus
}

// containsIDR reports whether the Annex-B bytestream contains an IDR
// slice NALU (type 5), which is how the encoder's own output is
// classified as a keyframe Frame regardless of which backend produced
// it.
func containsIDR(annexB []byte) bool {
	for _, n := range scanNALUs(annexB) {
		if n.start >= len(annexB) {
			continue
		}
		if annexB[n.start]&0x1f == nalTypeIDR {
			return true
		}
	}
	return false
}

// buildAVCC scans annexB for the first SPS (type 7) and first PPS
// (type 8) NAL units and packs them into an AVCDecoderConfigurationRecord
// (ISO/IEC 14496-15): version 1, profile/compatibility/level taken from
// the first three SPS bytes, lengthSizeMinusOne = 3 (this codebase
// always uses 4-byte length prefixes when repackaging for AVCC
// consumers), exactly one SPS and one PPS.
func buildAVCC(annexB []byte) ([]byte, error) {
	var sps, pps []byte
	for _, n := range scanNALUs(annexB) {
		if n.start >= n.end || n.start >= len(annexB) {
			continue
		}
		switch annexB[n.start] & 0x1f {
		case nalTypeSPS:
			if sps == nil {
				sps = annexB[n.start:n.end]
			}
		case nalTypePPS:
			if pps == nil {
				pps = annexB[n.start:n.end]
			}
		}
	}
	if len(sps) < 3 {
		return nil, fmt.Errorf("codec: no SPS found in keyframe bitstream")
	}
	if len(pps) == 0 {
		return nil, fmt.Errorf("codec: no PPS found in keyframe bitstream")
	}

	out := make([]byte, 0, 11+len(sps)+len(pps))
	out = append(out,
		0x01,    // configurationVersion
		sps[0],  // AVCProfileIndication
		sps[1],  // profile_compatibility
		sps[2],  // AVCLevelIndication
		0xFC|3,  // reserved(6 bits)=111111 + lengthSizeMinusOne=3
		0xE0|1,  // reserved(3 bits)=111 + numOfSequenceParameterSets=1
	)
	out = append(out, byte(len(sps)>>8), byte(len(sps)))
	out = append(out, sps...)
	out = append(out, 1) // numOfPictureParameterSets
	out = append(out, byte(len(pps)>>8), byte(len(pps)))
	out = append(out, pps...)
	return out, nil
}
