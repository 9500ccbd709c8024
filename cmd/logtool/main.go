// Command logtool inspects and maintains record log files: replaying
// them, verifying their integrity, compacting them in place, and making
// compressed backups.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/INLOpen/recordlog/compressors"
	"github.com/INLOpen/recordlog/config"
	"github.com/INLOpen/recordlog/jsonval"
	"github.com/INLOpen/recordlog/logfile"
)

const usageText = `usage: logtool <command> [flags] <file>...

Commands:
  dump     print every record in a log, one JSON document per line
  check    verify the integrity of one or more logs
  compact  rewrite a log as a smaller equivalent file, atomically
  backup   write a verified, optionally compressed copy of a log
  restore  recreate a log from a backup

Run 'logtool <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "dump":
		err = cmdDump(os.Args[2:])
	case "check":
		err = cmdCheck(os.Args[2:])
	case "compact":
		err = cmdCompact(os.Args[2:])
	case "backup":
		err = cmdBackup(os.Args[2:])
	case "restore":
		err = cmdRestore(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usageText)
	default:
		fmt.Fprintf(os.Stderr, "logtool: unknown command %q\n", os.Args[1])
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "logtool: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags registers the flags every command shares and returns the
// loaded configuration after fs has been parsed.
type commonFlags struct {
	cfgPath *string
	magic   *string
	level   *string
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		cfgPath: fs.String("config", "", "optional YAML config file"),
		magic:   fs.String("magic", "", "record magic (overrides config)"),
		level:   fs.String("log-level", "", "debug, info, warn or error (overrides config)"),
	}
}

func (cf *commonFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(*cf.cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if *cf.magic != "" {
		cfg.Magic = *cf.magic
	}
	if *cf.level != "" {
		cfg.LogLevel = *cf.level
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	lvl, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	return cfg, logger, nil
}

func cmdDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	cf := registerCommon(fs)
	query := fs.String("path", "", "print only this gjson path from each record")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("dump: expected exactly one log file")
	}
	cfg, logger, err := cf.load()
	if err != nil {
		return err
	}

	l, err := logfile.Open(logfile.Options{
		Path:    fs.Arg(0),
		Magic:   cfg.Magic,
		Mode:    logfile.ReadOnly,
		Locking: logfile.LockNever,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer l.Close()

	for {
		value, err := l.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("log is truncated or corrupt: %w", err)
		}
		data, err := jsonval.Marshal(value)
		if err != nil {
			return err
		}
		if *query != "" {
			result := gjson.GetBytes(data, *query)
			if result.Exists() {
				fmt.Println(result.String())
			}
			continue
		}
		fmt.Println(string(data))
	}
}

// checkResult is one file's verification outcome.
type checkResult struct {
	path    string
	records int
	offset  int64
	err     error
}

func cmdCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	cf := registerCommon(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("check: expected at least one log file")
	}
	cfg, logger, err := cf.load()
	if err != nil {
		return err
	}

	results := make([]checkResult, fs.NArg())
	var g errgroup.Group
	for i, path := range fs.Args() {
		i, path := i, path
		g.Go(func() error {
			results[i] = checkOne(path, cfg.Magic, logger)
			return nil
		})
	}
	_ = g.Wait()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FILE\tRECORDS\tBYTES\tSTATUS")
	var failed bool
	for _, r := range results {
		status := "ok"
		if r.err != nil {
			status = r.err.Error()
			failed = true
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", r.path, r.records, r.offset, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed {
		return errors.New("one or more logs failed verification")
	}
	return nil
}

func checkOne(path, magic string, logger *slog.Logger) checkResult {
	res := checkResult{path: path}

	l, err := logfile.Open(logfile.Options{
		Path:    path,
		Magic:   magic,
		Mode:    logfile.ReadOnly,
		Locking: logfile.LockNever,
		Logger:  logger,
	})
	if err != nil {
		res.err = err
		return res
	}
	defer l.Close()

	for {
		_, err := l.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.err = err
			break
		}
		res.records++
	}
	res.offset = l.Offset()
	return res
}

func cmdCompact(args []string) error {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	cf := registerCommon(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("compact: expected exactly one log file")
	}
	cfg, logger, err := cf.load()
	if err != nil {
		return err
	}

	l, err := logfile.Open(logfile.Options{
		Path:   fs.Arg(0),
		Magic:  cfg.Magic,
		Mode:   logfile.ReadWrite,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer l.Close()

	var values []jsonval.Value
	for {
		value, err := l.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("log is truncated or corrupt, refusing to compact: %w", err)
		}
		values = append(values, value)
	}

	before := l.Offset()
	if err := l.Replace(values); err != nil {
		return err
	}
	logger.Info("compacted log", "path", fs.Arg(0), "records", len(values),
		"bytes_before", before, "bytes_after", l.Offset())
	return nil
}

func cmdBackup(args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	cf := registerCommon(fs)
	codecName := fs.String("codec", "", "compression codec: none, snappy, lz4 or zstd (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("backup: expected source log and destination file")
	}
	cfg, logger, err := cf.load()
	if err != nil {
		return err
	}
	if *codecName != "" {
		cfg.Codec = *codecName
	}
	codec, err := compressors.Get(cfg.Codec)
	if err != nil {
		return err
	}

	src, dst := fs.Arg(0), fs.Arg(1)

	// Verify the source before copying: a backup of a corrupt log is
	// worse than no backup. The offset after a full replay bounds the
	// valid bytes.
	res := checkOne(src, cfg.Magic, logger)
	if res.err != nil {
		return fmt.Errorf("%s failed verification, not backing up: %w", src, res.err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return err
	}
	defer out.Close()

	cw := codec.NewWriter(out)
	if _, err := io.CopyN(cw, in, res.offset); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := cw.Close(); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	logger.Info("backup complete", "source", src, "dest", dst,
		"codec", codec.Name(), "records", res.records, "bytes", res.offset)
	return nil
}

func cmdRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	cf := registerCommon(fs)
	codecName := fs.String("codec", "", "codec the backup was written with (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("restore: expected backup file and destination log")
	}
	cfg, logger, err := cf.load()
	if err != nil {
		return err
	}
	if *codecName != "" {
		cfg.Codec = *codecName
	}
	codec, err := compressors.Get(cfg.Codec)
	if err != nil {
		return err
	}

	src, dst := fs.Arg(0), fs.Arg(1)

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	cr, err := codec.NewReader(in)
	if err != nil {
		return err
	}
	defer cr.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		return err
	}
	defer out.Close()

	n, err := io.Copy(out, cr)
	if err != nil {
		return fmt.Errorf("decompressing %s: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		return err
	}

	// A restored log must replay cleanly.
	res := checkOne(dst, cfg.Magic, logger)
	if res.err != nil {
		return fmt.Errorf("restored log failed verification: %w", res.err)
	}
	logger.Info("restore complete", "source", src, "dest", dst,
		"records", res.records, "bytes", n)
	return nil
}
