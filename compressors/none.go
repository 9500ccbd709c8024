package compressors

import "io"

// NoneCodec passes the stream through unchanged.
type NoneCodec struct{}

var _ Codec = NoneCodec{}

func (NoneCodec) Name() string {
	return "none"
}

func (NoneCodec) NewWriter(w io.Writer) io.WriteCloser {
	return nopWriteCloser{w}
}

func (NoneCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
