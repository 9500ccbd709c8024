package compressors

import (
	"io"

	lz4 "github.com/pierrec/lz4/v4"
)

// LZ4Codec streams through the lz4 frame format.
type LZ4Codec struct{}

var _ Codec = LZ4Codec{}

func (LZ4Codec) Name() string {
	return "lz4"
}

func (LZ4Codec) NewWriter(w io.Writer) io.WriteCloser {
	return lz4.NewWriter(w)
}

func (LZ4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}
