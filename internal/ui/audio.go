package ui

import (
	"encoding/binary"
	"time"

	"github.com/sm83lab/dotmatrix/internal/apu"
)

// apuStream implements io.Reader by pulling PCM frames from the APU's
// stereo ring buffer and converting them to 16-bit little-endian
// frames, optionally folded to mono. Grounded on the teacher's
// internal/ui/audio.go apuStream, trimmed of its adaptive-buffering
// and stats-overlay bookkeeping.
type apuStream struct {
	a          *apu.APU
	mono       bool
	muted      *bool
	lowLatency bool
}

func (s *apuStream) Read(p []byte) (int, error) {
	if len(p) < 4 || s.a == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	if s.muted != nil && *s.muted {
		for i := range p {
			p[i] = 0
		}
		time.Sleep(5 * time.Millisecond)
		return len(p), nil
	}

	maxReq := len(p) / 4
	capFrames := 2048
	if s.lowLatency {
		capFrames = 1024
	}
	if maxReq > capFrames {
		maxReq = capFrames
	}

	want := s.a.Buffered()
	if want > maxReq {
		want = maxReq
	}
	if want <= 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	frames := s.a.PullStereo(want)
	i := 0
	for j := 0; j+1 < len(frames) && i+3 < len(p); j += 2 {
		l, r := frames[j], frames[j+1]
		if s.mono {
			m := int16((int32(l) + int32(r)) / 2)
			binary.LittleEndian.PutUint16(p[i:], uint16(m))
			binary.LittleEndian.PutUint16(p[i+2:], uint16(m))
		} else {
			binary.LittleEndian.PutUint16(p[i:], uint16(l))
			binary.LittleEndian.PutUint16(p[i+2:], uint16(r))
		}
		i += 4
	}
	for ; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}
