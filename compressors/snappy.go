package compressors

import (
	"io"

	"github.com/golang/snappy"
)

// SnappyCodec streams through snappy's framing format.
type SnappyCodec struct{}

var _ Codec = SnappyCodec{}

func (SnappyCodec) Name() string {
	return "snappy"
}

func (SnappyCodec) NewWriter(w io.Writer) io.WriteCloser {
	return snappy.NewBufferedWriter(w)
}

func (SnappyCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(snappy.NewReader(r)), nil
}
