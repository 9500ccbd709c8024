package compressors

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// ZstdCodec streams through the zstd frame format.
type ZstdCodec struct{}

var _ Codec = ZstdCodec{}

func (ZstdCodec) Name() string {
	return "zstd"
}

func (ZstdCodec) NewWriter(w io.Writer) io.WriteCloser {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		// NewWriter only fails on invalid options; none are passed.
		panic(err)
	}
	return zw
}

func (ZstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr.IOReadCloser(), nil
}
