// Package compressors provides the stream codecs used for log backups.
// A backup is a byte-exact copy of a log file run through one of these
// codecs, so the choice of codec never affects what a restore produces.
package compressors

import (
	"fmt"
	"io"
)

// Codec compresses and decompresses a byte stream.
type Codec interface {
	// Name is the identifier used in configuration and backup tooling.
	Name() string
	// NewWriter wraps w; Close must be called to flush the stream.
	NewWriter(w io.Writer) io.WriteCloser
	// NewReader wraps r.
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// Get returns the codec registered under name.
func Get(name string) (Codec, error) {
	switch name {
	case "", "none":
		return NoneCodec{}, nil
	case "snappy":
		return SnappyCodec{}, nil
	case "lz4":
		return LZ4Codec{}, nil
	case "zstd":
		return ZstdCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown compression codec %q", name)
	}
}

// Names lists the supported codec names.
func Names() []string {
	return []string{"none", "snappy", "lz4", "zstd"}
}
