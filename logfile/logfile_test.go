package logfile

import (
	"bytes"
	"encoding/json"
	"expvar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/recordlog/core"
	"github.com/INLOpen/recordlog/jsonval"
)

const testMagic = "TESTLOG"

func openLog(t *testing.T, path string, mode OpenMode, locking Locking) *Log {
	t.Helper()
	l, err := Open(Options{Path: path, Magic: testMagic, Mode: mode, Locking: locking})
	require.NoError(t, err)
	return l
}

func obj(t *testing.T, text string) jsonval.Value {
	t.Helper()
	v, err := jsonval.Parse([]byte(text))
	require.NoError(t, err)
	return v
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	value := obj(t, `{"name":"alice","n":42,"nested":{"ok":true},"list":[1,2,3]}`)

	l := openLog(t, path, Create, LockIfWritable)
	require.NoError(t, l.Write(value))
	require.NoError(t, l.Commit())
	require.NoError(t, l.Close())

	r := openLog(t, path, ReadOnly, LockNever)
	defer r.Close()

	got, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, value, got)

	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEndToEndScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	w := openLog(t, path, Create, LockIfWritable)
	require.NoError(t, w.Write(obj(t, `{"a":1}`)))
	require.NoError(t, w.Write(obj(t, `{"b":2}`)))
	require.NoError(t, w.Commit())
	require.NoError(t, w.Close())

	r := openLog(t, path, ReadOnly, LockNever)
	first, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, obj(t, `{"a":1}`), first)
	second, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, obj(t, `{"b":2}`), second)
	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, r.Close())

	// Compact to a single record.
	c := openLog(t, path, ReadWrite, LockAlways)
	require.NoError(t, c.Replace([]jsonval.Value{obj(t, `{"c":3}`)}))
	require.NoError(t, c.Close())

	r2 := openLog(t, path, ReadOnly, LockNever)
	defer r2.Close()
	only, err := r2.Read()
	require.NoError(t, err)
	assert.Equal(t, obj(t, `{"c":3}`), only)
	_, err = r2.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMagicEnforcement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	l := openLog(t, path, Create, LockIfWritable)
	require.NoError(t, l.Write(obj(t, `{"a":1}`)))
	require.NoError(t, l.Close())

	_, err := Open(Options{Path: path, Magic: "OTHERLOG", Mode: ReadOnly, Locking: LockNever})
	require.Error(t, err)
	assert.True(t, core.IsSyntax(err))
	assert.Contains(t, err.Error(), "bad magic")
}

func TestChecksumSensitivity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	l := openLog(t, path, Create, LockIfWritable)
	require.NoError(t, l.Write(obj(t, `{"key":"value"}`)))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	bodyStart := bytes.IndexByte(data, '\n') + 1
	require.Greater(t, bodyStart, 0)

	// Flip every body byte in turn; each corruption must surface as a
	// digest mismatch, never as a silent misparse.
	for i := bodyStart; i < len(data)-1; i++ {
		corrupted := append([]byte(nil), data...)
		corrupted[i] ^= 0x01
		require.NoError(t, os.WriteFile(path, corrupted, 0644))

		r := openLog(t, path, ReadOnly, LockNever)
		_, err := r.Read()
		require.Error(t, err, "flipping byte %d must fail the read", i)
		assert.True(t, core.IsSyntax(err))
		assert.Contains(t, err.Error(), "SHA-1")
		require.NoError(t, r.Close())
	}
}

func TestLatchedReadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	l := openLog(t, path, Create, LockIfWritable)
	require.NoError(t, l.Write(obj(t, `{"a":1}`)))
	require.NoError(t, l.Close())

	// Corrupt the declared digest in the header.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	hdrEnd := bytes.IndexByte(data, '\n')
	if data[hdrEnd-1] == 'f' {
		data[hdrEnd-1] = '0'
	} else {
		data[hdrEnd-1] = 'f'
	}
	require.NoError(t, os.WriteFile(path, data, 0644))

	r := openLog(t, path, ReadOnly, LockNever)
	defer r.Close()

	_, err1 := r.Read()
	require.Error(t, err1)
	assert.True(t, core.IsSyntax(err1))

	// Every subsequent read replays the same error without I/O. Deleting
	// the file proves the second read never touches it.
	require.NoError(t, os.Remove(path))
	_, err2 := r.Read()
	require.Error(t, err2)
	assert.Equal(t, err1.Error(), err2.Error())
	assert.NotSame(t, err1, err2)
}

func TestReadInWriteModeIsBug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	l := openLog(t, path, Create, LockIfWritable)
	defer l.Close()
	require.NoError(t, l.Write(obj(t, `{"a":1}`)))

	_, err := l.Read()
	require.Error(t, err)
	assert.True(t, core.IsBug(err))
}

func TestWriteRejectsScalars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	l := openLog(t, path, Create, LockIfWritable)
	defer l.Close()

	err := l.Write("just a string")
	require.Error(t, err)
	assert.True(t, core.IsBug(err))

	// The handle recovers: a valid write afterwards succeeds.
	require.NoError(t, l.Write(obj(t, `{"a":1}`)))
}

func TestArrayComposeReadAsymmetry(t *testing.T) {
	// Arrays are legal to write but the read path accepts only objects.
	// The asymmetry is inherited from the primary log's semantics.
	path := filepath.Join(t.TempDir(), "db.log")

	l := openLog(t, path, Create, LockIfWritable)
	require.NoError(t, l.Write(obj(t, `[1,2,3]`)))
	require.NoError(t, l.Close())

	r := openLog(t, path, ReadOnly, LockNever)
	defer r.Close()
	_, err := r.Read()
	require.Error(t, err)
	assert.True(t, core.IsSyntax(err))
	assert.Contains(t, err.Error(), "not a JSON object")
}

func TestUnreadIdempotence(t *testing.T) {
	dir := t.TempDir()

	writeTwo := func(path string) {
		l := openLog(t, path, Create, LockIfWritable)
		require.NoError(t, l.Write(obj(t, `{"a":1}`)))
		require.NoError(t, l.Write(obj(t, `{"b":2}`)))
		require.NoError(t, l.Close())
	}

	once := filepath.Join(dir, "once.log")
	twice := filepath.Join(dir, "twice.log")
	writeTwo(once)
	writeTwo(twice)

	run := func(path string, unreads int) int64 {
		l := openLog(t, path, ReadWrite, LockIfWritable)
		defer l.Close()
		_, err := l.Read()
		require.NoError(t, err)
		_, err = l.Read()
		require.NoError(t, err)
		for i := 0; i < unreads; i++ {
			l.Unread()
		}
		require.NoError(t, l.Write(obj(t, `{"x":9}`)))
		return l.Offset()
	}

	assert.Equal(t, run(once, 1), run(twice, 2))

	info1, err := os.Stat(once)
	require.NoError(t, err)
	info2, err := os.Stat(twice)
	require.NoError(t, err)
	assert.Equal(t, info1.Size(), info2.Size())
}

func TestUnreadThenWriteOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	l := openLog(t, path, Create, LockIfWritable)
	require.NoError(t, l.Write(obj(t, `{"a":1}`)))
	require.NoError(t, l.Write(obj(t, `{"bad":true}`)))
	require.NoError(t, l.Close())

	rw := openLog(t, path, ReadWrite, LockIfWritable)
	_, err := rw.Read()
	require.NoError(t, err)
	_, err = rw.Read()
	require.NoError(t, err)
	rw.Unread()
	require.NoError(t, rw.Write(obj(t, `{"good":true}`)))
	require.NoError(t, rw.Close())

	r := openLog(t, path, ReadOnly, LockNever)
	defer r.Close()
	v1, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, obj(t, `{"a":1}`), v1)
	v2, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, obj(t, `{"good":true}`), v2)
	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteAfterReadTruncatesTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	l := openLog(t, path, Create, LockIfWritable)
	require.NoError(t, l.Write(obj(t, `{"a":1}`)))
	require.NoError(t, l.Write(obj(t, `{"b":2}`)))
	require.NoError(t, l.Close())

	// Append garbage past the last record, as a torn write would.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("TESTLOG garbage that is not a full reco")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Replaying stops at the garbage; switching to write mode discards it.
	rw := openLog(t, path, ReadWrite, LockIfWritable)
	_, err = rw.Read()
	require.NoError(t, err)
	_, err = rw.Read()
	require.NoError(t, err)
	_, err = rw.Read()
	require.Error(t, err)
	assert.True(t, core.IsSyntax(err))

	require.NoError(t, rw.Write(obj(t, `{"c":3}`)))
	require.NoError(t, rw.Close())

	r := openLog(t, path, ReadOnly, LockNever)
	defer r.Close()
	for _, want := range []string{`{"a":1}`, `{"b":2}`, `{"c":3}`} {
		v, err := r.Read()
		require.NoError(t, err)
		assert.Equal(t, obj(t, want), v)
	}
	_, err = r.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestTruncatedBodyIsIOError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	l := openLog(t, path, Create, LockIfWritable)
	require.NoError(t, l.Write(obj(t, `{"key":"a fairly long value to truncate"}`)))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-10], 0644))

	r := openLog(t, path, ReadOnly, LockNever)
	defer r.Close()
	_, err = r.Read()
	require.Error(t, err)
	assert.True(t, core.IsIO(err))
	assert.Contains(t, err.Error(), "error reading")
}

func TestOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	l := openLog(t, path, Create, LockIfWritable)
	assert.Equal(t, int64(0), l.Offset())
	require.NoError(t, l.Write(obj(t, `{"a":1}`)))
	written := l.Offset()
	assert.Greater(t, written, int64(0))
	require.NoError(t, l.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), written)

	r := openLog(t, path, ReadOnly, LockNever)
	defer r.Close()
	_, err = r.Read()
	require.NoError(t, err)
	assert.Equal(t, written, r.Offset(), "fully read log's offset is the file size")
}

func TestOpenModes(t *testing.T) {
	dir := t.TempDir()

	t.Run("ReadOnlyMissingFile", func(t *testing.T) {
		_, err := Open(Options{Path: filepath.Join(dir, "missing.log"), Magic: testMagic, Mode: ReadOnly, Locking: LockNever})
		require.Error(t, err)
		assert.True(t, core.IsIO(err))
	})

	t.Run("CreateExclExistingFile", func(t *testing.T) {
		path := filepath.Join(dir, "exists.log")
		require.NoError(t, os.WriteFile(path, nil, 0644))
		_, err := Open(Options{Path: path, Magic: testMagic, Mode: CreateExcl, Locking: LockNever})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create failed")
	})

	t.Run("CreateOpensExisting", func(t *testing.T) {
		path := filepath.Join(dir, "reuse.log")
		l := openLog(t, path, Create, LockIfWritable)
		require.NoError(t, l.Write(obj(t, `{"a":1}`)))
		require.NoError(t, l.Close())

		l2 := openLog(t, path, Create, LockIfWritable)
		defer l2.Close()
		v, err := l2.Read()
		require.NoError(t, err)
		assert.Equal(t, obj(t, `{"a":1}`), v)
	})

	t.Run("InvalidMagic", func(t *testing.T) {
		_, err := Open(Options{Path: filepath.Join(dir, "x.log"), Magic: "BAD MAGIC", Mode: Create})
		require.Error(t, err)
		assert.True(t, core.IsBug(err))
	})
}

func TestLocking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	w := openLog(t, path, Create, LockIfWritable)

	// A second writer is excluded while the lock is held.
	_, err := Open(Options{Path: path, Magic: testMagic, Mode: ReadWrite, Locking: LockIfWritable})
	require.Error(t, err)
	assert.True(t, core.IsIO(err))
	assert.Contains(t, err.Error(), "lock")

	// An unlocked reader may coexist with the writer.
	r, err := Open(Options{Path: path, Magic: testMagic, Mode: ReadOnly, Locking: LockIfWritable})
	require.NoError(t, err)
	require.NoError(t, r.Close())

	require.NoError(t, w.Close())

	// The lock is released on close.
	w2 := openLog(t, path, ReadWrite, LockAlways)
	require.NoError(t, w2.Close())
}

func TestCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	l := openLog(t, path, Create, LockIfWritable)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	var nilLog *Log
	assert.NoError(t, nilLog.Close())
}

func TestMetricsCounters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	written := new(expvar.Int)
	records := new(expvar.Int)
	l, err := Open(Options{
		Path: path, Magic: testMagic, Mode: Create,
		BytesWritten: written, RecordsWritten: records,
	})
	require.NoError(t, err)
	require.NoError(t, l.Write(obj(t, `{"a":1}`)))
	require.NoError(t, l.Write(obj(t, `{"b":2}`)))
	require.NoError(t, l.Close())

	assert.Equal(t, int64(2), records.Value())
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), written.Value())

	read := new(expvar.Int)
	r, err := Open(Options{Path: path, Magic: testMagic, Mode: ReadOnly, Locking: LockNever, RecordsRead: read})
	require.NoError(t, err)
	defer r.Close()
	for {
		if _, err := r.Read(); err != nil {
			break
		}
	}
	assert.Equal(t, int64(2), read.Value())
}

func TestNumberFidelity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.log")

	value := map[string]any{"big": json.Number("9007199254740993"), "frac": json.Number("0.1")}

	l := openLog(t, path, Create, LockIfWritable)
	require.NoError(t, l.Write(value))
	require.NoError(t, l.Close())

	r := openLog(t, path, ReadOnly, LockNever)
	defer r.Close()
	got, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, value, got)
}
