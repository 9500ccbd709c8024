// Package logfile implements the durable, append-only record log that
// backs a transactional database. Every committed change is appended as
// a self-describing, checksummed record; the log can be replayed to
// reconstruct state or atomically compacted into a smaller equivalent
// file without any crash window that loses data.
//
// A log file is a sequence of records. Each record is one ASCII header
// line followed by a body:
//
//	<magic> <decimal-length> <hex-digest>\n
//	<decimal-length bytes of JSON text ending in \n>
//
// The digest is the SHA-1 hash of the body bytes, including the trailing
// newline. The magic token identifies the kind of log and is checked at
// open time to reject foreign files early.
//
// A Log is a single-writer, single-goroutine handle. Cross-process
// exclusion is advisory, via the lock file acquired at open time.
package logfile

import (
	"bufio"
	"bytes"
	"expvar"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/INLOpen/recordlog/core"
	"github.com/INLOpen/recordlog/jsonval"
	"github.com/INLOpen/recordlog/sys"
)

// OpenMode selects how the backing file is opened.
type OpenMode int

const (
	// ReadOnly opens an existing file for reading.
	ReadOnly OpenMode = iota
	// ReadWrite opens an existing file for reading and writing.
	ReadWrite
	// CreateExcl creates a new file, failing if it already exists.
	CreateExcl
	// Create opens the file, creating it if it does not exist.
	Create
)

// Locking selects whether an advisory lock is taken on the log's path.
type Locking int

const (
	// LockIfWritable locks unless the log is opened read-only.
	LockIfWritable Locking = iota
	// LockAlways locks regardless of open mode.
	LockAlways
	// LockNever never locks.
	LockNever
)

type logMode int

const (
	modeRead logMode = iota
	modeWrite
)

// devStdin is accepted for read-only opens even on platforms that have
// no named alias for standard input.
const devStdin = "/dev/stdin"

// Options configures Open.
type Options struct {
	// Path is the log file's name.
	Path string
	// Magic is the short ASCII token that must prefix every record.
	// It must not contain spaces or newlines.
	Magic string
	Mode  OpenMode
	// Locking defaults to LockIfWritable.
	Locking Locking

	Logger *slog.Logger

	// Optional counters, updated as records move through the log.
	BytesWritten   *expvar.Int
	RecordsRead    *expvar.Int
	RecordsWritten *expvar.Int
}

// Log is one open log file. It is not safe for concurrent use.
type Log struct {
	name   string
	magic  string
	unlock func() error // nil when no lock is held
	file   sys.FileHandle
	reader *bufio.Reader // non-nil only in read mode

	// offset is the byte position just past the last successfully read
	// or written record: the end of valid data. prevOffset is the
	// position before the most recently read record and only has
	// meaning in read mode.
	prevOffset int64
	offset     int64

	mode logMode

	// readErr, once set, is replayed by every subsequent Read. writeErr
	// forces a seek-and-truncate recovery on the next Write.
	readErr  *core.Error
	writeErr bool

	logger         *slog.Logger
	bytesWritten   *expvar.Int
	recordsRead    *expvar.Int
	recordsWritten *expvar.Int
}

// Open opens the log file named in opts. The new handle starts in read
// mode positioned at the first record.
//
// If locking is requested (see Locking), an exclusive advisory lock on
// the path is taken before the file is opened; a held lock is reported
// as an error immediately, without retrying. On any failure no partial
// state is returned: the lock is released and the file closed.
func Open(opts Options) (*Log, error) {
	if opts.Magic == "" || strings.ContainsAny(opts.Magic, " \n") {
		return nil, core.Bugf("invalid log magic %q", opts.Magic)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "logfile")

	locking := opts.Locking == LockAlways ||
		(opts.Locking == LockIfWritable && opts.Mode != ReadOnly)

	var unlock func() error
	if locking {
		var err error
		unlock, err = sys.AcquireFileLock(opts.Path)
		if err != nil {
			return nil, core.IOErrorf(err, "%s: failed to lock lockfile", opts.Path)
		}
	}

	var flags int
	switch opts.Mode {
	case ReadOnly:
		flags = os.O_RDONLY
	case ReadWrite:
		flags = os.O_RDWR
	case CreateExcl:
		flags = os.O_RDWR | os.O_CREATE | os.O_EXCL
	case Create:
		flags = os.O_RDWR | os.O_CREATE
	default:
		if unlock != nil {
			_ = unlock()
		}
		return nil, core.Bugf("invalid open mode %d", opts.Mode)
	}

	var file sys.FileHandle
	var err error
	if opts.Path == devStdin && opts.Mode == ReadOnly {
		file, err = sys.Stdin()
	} else {
		file, err = sys.OpenFile(opts.Path, flags, 0666)
	}
	if err != nil {
		op := "open"
		switch opts.Mode {
		case CreateExcl:
			op = "create"
		case Create:
			op = "create or open"
		}
		if unlock != nil {
			_ = unlock()
		}
		return nil, core.IOErrorf(err, "%s: %s failed", opts.Path, op)
	}

	if info, serr := file.Stat(); serr == nil {
		if info.Size() == 0 {
			// Probably a brand-new file: flush its directory entry so it
			// survives a crash even before the first record is written.
			if derr := sys.SyncParentDir(opts.Path); derr != nil {
				logger.Warn("cannot sync parent directory", "path", opts.Path, "error", derr)
			}
		} else if info.Mode().IsRegular() && info.Size() >= int64(len(opts.Magic)) {
			// Check the magic in the first record. A mismatch means this
			// is the wrong kind of file, so reject it before parsing
			// anything. This is a fast-fail guard only; it says nothing
			// about the validity of the rest of the file.
			buf := make([]byte, len(opts.Magic))
			if _, rerr := io.ReadFull(file, buf); rerr == nil && string(buf) != opts.Magic {
				_ = file.Close()
				if unlock != nil {
					_ = unlock()
				}
				return nil, core.SyntaxErrorf("%s: bad magic (unexpected kind of file)", opts.Path)
			}
			if _, serr := file.Seek(0, io.SeekStart); serr != nil {
				_ = file.Close()
				if unlock != nil {
					_ = unlock()
				}
				return nil, core.IOErrorf(serr, "%s: seek failed", opts.Path)
			}
		}
	}

	return &Log{
		name:           opts.Path,
		magic:          opts.Magic,
		unlock:         unlock,
		file:           file,
		reader:         bufio.NewReader(file),
		mode:           modeRead,
		logger:         logger,
		bytesWritten:   opts.BytesWritten,
		recordsRead:    opts.RecordsRead,
		recordsWritten: opts.RecordsWritten,
	}, nil
}

// Close releases the file and the advisory lock, if held. It is safe to
// call on a nil handle and more than once. Close does not flush written
// records to durable storage; callers that need durability must call
// Commit first.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	var err error
	if l.file != nil {
		err = l.file.Close()
		l.file = nil
	}
	if l.unlock != nil {
		_ = l.unlock()
		l.unlock = nil
	}
	l.reader = nil
	return err
}

// Read returns the next record in the log, or io.EOF at a clean end of
// file. Once a read fails, the same error is returned by every
// subsequent Read on this handle without touching the file; the handle
// must be discarded and the log reopened to retry.
func (l *Log) Read() (jsonval.Value, error) {
	if l.readErr != nil {
		return nil, l.readErr.Clone()
	}
	if l.mode == modeWrite {
		return nil, core.Bugf("%s: reading log file in write mode", l.name)
	}

	line, err := l.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			// No more records. Not an error and not latched: a reader
			// tailing a live log may try again later.
			return nil, io.EOF
		}
		if err != io.EOF {
			return nil, l.latch(core.IOErrorf(err, "%s: read failed", l.name))
		}
		// A final partial line falls through to header parsing, which
		// rejects it for the missing newline.
	}

	bodyLen, expected, ok := parseHeader(l.magic, line)
	if !ok {
		return nil, l.latch(core.SyntaxErrorf("%s: parse error at offset %d in header line %q",
			l.name, l.offset, strings.TrimSuffix(line, "\n")))
	}

	dataOffset := l.offset + int64(len(line))
	value, parseErr, actual, cerr := l.parseBody(dataOffset, bodyLen)
	if cerr != nil {
		return nil, l.latch(cerr)
	}

	// Verify the checksum before trusting anything the body decoded to.
	if !bytes.Equal(expected, actual) {
		return nil, l.latch(core.SyntaxErrorf(
			"%s: %d bytes starting at offset %d have SHA-1 hash %x but should have hash %x",
			l.name, bodyLen, dataOffset, actual, expected))
	}

	if parseErr != nil {
		return nil, l.latch(core.SyntaxErrorf("%s: %d bytes starting at offset %d are not valid JSON (%v)",
			l.name, bodyLen, dataOffset, parseErr))
	}
	switch jsonval.ShapeOf(value) {
	case jsonval.ShapeObject:
	case jsonval.ShapeString:
		// A bare string usually means an embedded parser surfaced an
		// error message in place of data.
		return nil, l.latch(core.SyntaxErrorf("%s: %d bytes starting at offset %d are not valid JSON (%s)",
			l.name, bodyLen, dataOffset, value.(string)))
	default:
		return nil, l.latch(core.SyntaxErrorf("%s: %d bytes starting at offset %d are not a JSON object",
			l.name, bodyLen, dataOffset))
	}

	l.prevOffset = l.offset
	l.offset = dataOffset + bodyLen
	if l.recordsRead != nil {
		l.recordsRead.Add(1)
	}
	return value, nil
}

// latch records err as the handle's permanent read error and returns it.
func (l *Log) latch(err *core.Error) error {
	l.readErr = err.Clone()
	return err
}

// Unread discards the record returned by the previous Read, so that the
// next Write overwrites it. Calling Unread again without an intervening
// Read has no further effect. It is meaningful only in read mode.
//
// Unread is useful when a record parses correctly but is judged invalid
// at a higher level, such as a transaction that no longer applies.
func (l *Log) Unread() {
	if l.mode == modeRead {
		l.offset = l.prevOffset
	}
}

// Write appends one record holding value, which must be object- or
// array-shaped at the top level. The first Write after reading seeks to
// the end of valid data and truncates the file there, discarding
// anything after the last good record; the same recovery runs after a
// failed Write to drop partially written bytes.
//
// Write only guarantees the bytes reached the OS; call Commit for
// durability.
func (l *Log) Write(value jsonval.Value) error {
	if l.mode == modeRead || l.writeErr {
		l.mode = modeWrite
		l.writeErr = false
		l.reader = nil
		if _, err := l.file.Seek(l.offset, io.SeekStart); err != nil {
			l.writeErr = true
			return core.IOErrorf(err, "%s: cannot seek to offset %d", l.name, l.offset)
		}
		if err := l.file.Truncate(l.offset); err != nil {
			l.writeErr = true
			return core.IOErrorf(err, "%s: cannot truncate to length %d", l.name, l.offset)
		}
	}

	header, body, cerr := composeRecord(l.magic, value)
	if cerr != nil {
		l.writeErr = true
		return cerr
	}

	// One logical append: header and body in a single write.
	rec := make([]byte, 0, len(header)+len(body))
	rec = append(rec, header...)
	rec = append(rec, body...)
	if _, err := l.file.Write(rec); err != nil {
		l.logger.Warn("write failed", "path", l.name, "error", err)
		// Remove any partially written bytes, ignoring errors since
		// there is nothing further we can do.
		_ = l.file.Truncate(l.offset)
		l.writeErr = true
		return core.IOErrorf(err, "%s: write failed", l.name)
	}

	l.offset += int64(len(rec))
	if l.bytesWritten != nil {
		l.bytesWritten.Add(int64(len(rec)))
	}
	if l.recordsWritten != nil {
		l.recordsWritten.Add(1)
	}
	return nil
}

// Commit forces previously written records to durable storage. This is
// the only operation with a durability guarantee.
func (l *Log) Commit() error {
	if err := l.file.Sync(); err != nil {
		return core.IOErrorf(err, "%s: fsync failed", l.name)
	}
	return nil
}

// Offset returns the byte position just past the last record read or
// written. If the whole file has been read, this is the file size.
func (l *Log) Offset() int64 {
	return l.offset
}

// Name returns the log file's path.
func (l *Log) Name() string {
	return l.name
}
