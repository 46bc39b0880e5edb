package decode

import (
	"context"

	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/internal/xerrors"
)

// stillStream wraps a single already-decoded Frame so EXR/FITS/PNG/JPEG
// adapters — which only ever have one image — can satisfy Stream
// without each reimplementing seek/sample semantics.
type stillStream struct {
	frame  Frame
	closed bool
}

func (s *stillStream) Info() VideoInfo {
	return VideoInfo{
		Duration: timecode.Zero,
		Width:    s.frame.Width,
		Height:   s.frame.Height,
		FPSNum:   1,
		FPSDen:   1,
	}
}

func (s *stillStream) FrameAt(ctx context.Context, sourceTicks timecode.Time) (Frame, error) {
	if s.closed {
		return Frame{}, xerrors.IO("still stream closed", nil, nil)
	}
	f := s.frame
	f.PTS = sourceTicks
	return f, nil
}

func (s *stillStream) SamplePTS(ctx context.Context, n int) ([]timecode.Time, error) {
	return []timecode.Time{timecode.Zero}, nil
}

func (s *stillStream) Close() error {
	s.closed = true
	return nil
}
