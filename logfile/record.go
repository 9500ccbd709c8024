package logfile

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/INLOpen/recordlog/core"
	"github.com/INLOpen/recordlog/jsonval"
)

// digestHexLen is the fixed width of the hex digest in a record header.
const digestHexLen = 2 * sha1.Size

// bodyChunkSize bounds how much of a record body is read at once while
// hashing and parsing it.
const bodyChunkSize = 4096

// composeRecord frames value into a header line and a checksummed body.
// The value must be object- or array-shaped; anything else is a caller
// bug, not a valid log entry. The body is the value's compact JSON text
// plus a trailing newline that has no semantic meaning but keeps the
// file readable; the newline is counted in the length and the digest.
func composeRecord(magic string, value jsonval.Value) (header, body []byte, cerr *core.Error) {
	switch shape := jsonval.ShapeOf(value); shape {
	case jsonval.ShapeObject, jsonval.ShapeArray:
	default:
		return nil, nil, core.Bugf("bad %s value for log record", shape)
	}

	data, err := jsonval.Marshal(value)
	if err != nil {
		return nil, nil, core.Bugf("cannot serialize log record: %v", err)
	}
	body = append(data, '\n')

	sum := sha1.Sum(body)
	header = []byte(fmt.Sprintf("%s %d %x\n", magic, len(body), sum[:]))
	return header, body, nil
}

// parseHeader parses one record header line:
//
//	<magic> <decimal-length> <hex-digest>\n
//
// with nothing else permitted: a single space between fields, a length
// strictly greater than zero that fits in an int64, a digest of exactly
// digestHexLen hex digits, and a terminating newline.
func parseHeader(magic, line string) (bodyLen int64, digest []byte, ok bool) {
	rest, found := strings.CutPrefix(line, magic)
	if !found || len(rest) == 0 || rest[0] != ' ' {
		return 0, nil, false
	}
	rest = rest[1:]

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, nil, false
	}
	n, err := strconv.ParseInt(rest[:i], 10, 64)
	if err != nil || n <= 0 {
		return 0, nil, false
	}
	rest = rest[i:]
	if len(rest) == 0 || rest[0] != ' ' {
		return 0, nil, false
	}
	rest = rest[1:]

	if len(rest) < digestHexLen {
		return 0, nil, false
	}
	digest, err = hex.DecodeString(rest[:digestHexLen])
	if err != nil {
		return 0, nil, false
	}
	if rest[digestHexLen:] != "\n" {
		return 0, nil, false
	}
	return n, digest, true
}

// parseBody reads exactly length bytes of record body starting at
// dataOffset, hashing and feeding the JSON parser as it goes. It
// returns the parsed value (or the parse error) together with the
// actual digest. A short or failed read is an I/O error naming the
// byte range that could not be read; in that case nothing else is
// returned.
func (l *Log) parseBody(dataOffset, length int64) (value jsonval.Value, parseErr error, actual []byte, cerr *core.Error) {
	h := sha1.New()
	parser := jsonval.NewParser()

	chunk := make([]byte, bodyChunkSize)
	remaining := length
	for remaining > 0 {
		n := int64(bodyChunkSize)
		if remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(l.reader, chunk[:n]); err != nil {
			return nil, nil, nil, core.IOErrorf(err, "%s: error reading %d bytes starting at offset %d",
				l.name, remaining, dataOffset+(length-remaining))
		}
		h.Write(chunk[:n])
		parser.Feed(chunk[:n])
		remaining -= n
	}

	value, parseErr = parser.Finish()
	return value, parseErr, h.Sum(nil), nil
}
