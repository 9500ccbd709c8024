package logfile

import (
	"os"

	"github.com/INLOpen/recordlog/core"
	"github.com/INLOpen/recordlog/jsonval"
	"github.com/INLOpen/recordlog/sys"
)

// tmpSuffix names the temporary file a replacement log is built in.
const tmpSuffix = ".tmp"

// Replace atomically replaces the log's contents with the given values,
// e.g. after snapshotting database state into a smaller equivalent set
// of records. On success the handle keeps working against the new file;
// on failure the original log is untouched and still usable.
func (l *Log) Replace(values []jsonval.Value) error {
	tmp, err := l.ReplaceStart()
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := tmp.Write(v); err != nil {
			tmp.ReplaceAbort()
			return err
		}
	}
	return l.ReplaceCommit(tmp)
}

// ReplaceStart begins building a replacement for the log in a fresh
// temporary file at <name>.tmp, removing any stale one left behind by
// an earlier crash. The temporary log carries the same magic and is not
// separately locked: the original handle's lock protects the whole
// operation, which is why replacing an unlocked log is a caller bug.
//
// Write the full new content to the returned handle, then call
// ReplaceCommit, or ReplaceAbort on any failure.
func (l *Log) ReplaceStart() (*Log, error) {
	if l.unlock == nil {
		return nil, core.Bugf("%s: replacing unlocked log file", l.name)
	}

	tmpName := l.name + tmpSuffix
	if err := sys.Remove(tmpName); err != nil && !os.IsNotExist(err) {
		return nil, core.IOErrorf(err, "failed to remove %s", tmpName)
	}

	return Open(Options{
		Path:    tmpName,
		Magic:   l.magic,
		Mode:    CreateExcl,
		Locking: LockNever,
		Logger:  l.logger,
	})
}

// ReplaceCommit atomically swaps the finished replacement in for the
// original log. The rename is the single atomic step: a crash before it
// leaves the original untouched, a crash after it leaves the new log
// fully in place.
//
// On success the new file's open stream, offset and magic are
// transplanted into l, which keeps its name and lock and transitions to
// write mode; tmp must not be used afterwards. On failure l is left
// completely untouched and tmp is cleaned up.
func (l *Log) ReplaceCommit(tmp *Log) error {
	if err := tmp.Commit(); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := sys.Rename(tmp.name, l.name); err != nil {
		_ = tmp.Close()
		return core.IOErrorf(err, "failed to rename %q to %q", tmp.name, l.name)
	}
	// Make the rename itself durable.
	if err := sys.SyncParentDir(l.name); err != nil {
		l.logger.Warn("cannot sync parent directory", "path", l.name, "error", err)
	}

	// Transplant tmp's live resources into l in one step so there is no
	// window where both handles own the open stream. prevOffset and the
	// latched read error only matter in read mode and are left alone.
	l.offset = tmp.offset
	l.magic = tmp.magic
	old := l.file
	l.file = tmp.file
	tmp.file = nil
	l.reader = nil
	l.writeErr = tmp.writeErr
	l.mode = modeWrite
	if old != nil {
		_ = old.Close()
	}

	return tmp.Close()
}

// ReplaceAbort discards a replacement started with ReplaceStart, closing
// and deleting the temporary file. Safe to call on a nil handle.
func (l *Log) ReplaceAbort() {
	if l == nil {
		return
	}
	name := l.name
	_ = l.Close()
	_ = sys.Remove(name)
}
