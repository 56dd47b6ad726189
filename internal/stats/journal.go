// Package stats implements the connection statistics pipeline (C8,
// spec.md §4.10): periodic sampling during a live data call, an
// append-only tab-separated journal file, final summary emission to
// syslog, and recovery of an unfinished record across daemon restarts.
package stats

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// RecordType is the single-character tag of a journal line.
type RecordType byte

// Record types (spec.md §3 StatsRecord).
const (
	RecordStart  RecordType = 'S'
	RecordPeriod RecordType = 'P'
	RecordFinish RecordType = 'F'
)

// Record is one line of the stats journal.
type Record struct {
	Type     RecordType
	From     time.Time
	To       time.Time
	Duration time.Duration
	RxBytes  uint64
	TxBytes  uint64
}

const timeLayout = "2006-01-02 15:04:05"

// Line formats r as the tab-separated journal line (spec.md §3, §6.4).
func (r Record) Line() string {
	return fmt.Sprintf("%c\t%s\t%s\t%d\t%d\t%d",
		r.Type, r.From.Format(timeLayout), r.To.Format(timeLayout),
		int64(r.Duration.Seconds()), r.RxBytes, r.TxBytes)
}

// parseRecord parses one well-formed journal line (spec.md §8 "Stats
// recovery": exactly 6 tab-separated fields).
func parseRecord(line string) (Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 6 {
		return Record{}, errors.New("stats: malformed record")
	}
	if len(fields[0]) != 1 {
		return Record{}, errors.New("stats: malformed record type")
	}
	from, err := time.Parse(timeLayout, fields[1])
	if err != nil {
		return Record{}, errors.WithMessage(err, "stats: malformed from timestamp")
	}
	to, err := time.Parse(timeLayout, fields[2])
	if err != nil {
		return Record{}, errors.WithMessage(err, "stats: malformed to timestamp")
	}
	durSecs, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return Record{}, errors.WithMessage(err, "stats: malformed duration")
	}
	rx, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return Record{}, errors.WithMessage(err, "stats: malformed rx bytes")
	}
	tx, err := strconv.ParseUint(fields[5], 10, 64)
	if err != nil {
		return Record{}, errors.WithMessage(err, "stats: malformed tx bytes")
	}
	return Record{
		Type:     RecordType(fields[0][0]),
		From:     from,
		To:       to,
		Duration: time.Duration(durSecs) * time.Second,
		RxBytes:  rx,
		TxBytes:  tx,
	}, nil
}

// Journal is the append-only, line-buffered stats record file (spec.md
// §3 StatsSession, §6.4).
type Journal struct {
	path  string
	file  *os.File
	w     *bufio.Writer
	start time.Time
}

// Start creates the journal file and writes the initial 'S' record with
// zero counters (spec.md §4.6 step 5).
func Start(path string, at time.Time) (*Journal, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.WithMessage(err, "creating stats journal")
	}
	j := &Journal{path: path, file: f, w: bufio.NewWriter(f), start: at}
	if err := j.append(Record{Type: RecordStart, From: at, To: at, Duration: 0}); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

// Sample appends a 'P' record with the counters as of now (spec.md §4.10).
func (j *Journal) Sample(now time.Time, rx, tx uint64) error {
	return j.append(Record{
		Type:     RecordPeriod,
		From:     j.start,
		To:       now,
		Duration: now.Sub(j.start),
		RxBytes:  rx,
		TxBytes:  tx,
	})
}

// Finish appends the final 'F' record, flushes the syslog summary, and
// removes the journal file (spec.md §4.10).
func (j *Journal) Finish(now time.Time, rx, tx uint64, emit func(string)) error {
	rec := Record{
		Type:     RecordFinish,
		From:     j.start,
		To:       now,
		Duration: now.Sub(j.start),
		RxBytes:  rx,
		TxBytes:  tx,
	}
	if err := j.append(rec); err != nil {
		return err
	}
	j.file.Close()
	if emit != nil {
		emit(summaryLine(rec))
	}
	return os.Remove(j.path)
}

func (j *Journal) append(r Record) error {
	if _, err := j.w.WriteString(r.Line() + "\n"); err != nil {
		return err
	}
	return j.w.Flush()
}

func summaryLine(r Record) string {
	return fmt.Sprintf("Connection stats [From: %s] [To: %s] [Duration: %ds] [RX: %d] [TX: %d]",
		r.From.Format(timeLayout), r.To.Format(timeLayout), int64(r.Duration.Seconds()), r.RxBytes, r.TxBytes)
}

// Recover scans a pre-existing journal file at path (if any) for its last
// well-formed record, reporting it via emit, then removes the file
// (spec.md §4.10 "Recovery", §8 "Stats recovery").
//
// The scan rewinds from the end of the file in 255-byte chunks looking for
// a newline, mirroring the original daemon's fixed-size rewind-and-search
// approach rather than reading the whole file into memory.
func Recover(path string, emit func(string)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithMessage(err, "opening stats journal for recovery")
	}
	defer f.Close()

	line, err := lastLine(f)
	if err == nil && line != "" {
		if rec, perr := parseRecord(line); perr == nil {
			if emit != nil {
				emit(summaryLine(rec))
			}
		}
	}
	f.Close()
	return os.Remove(path)
}

const rewindChunk = 255

// lastLine returns the last newline-terminated, non-empty line in f,
// rewinding in fixed-size chunks (spec.md §4.10).
func lastLine(f *os.File) (string, error) {
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	size := info.Size()
	var buf []byte
	pos := size
	for pos > 0 {
		chunk := int64(rewindChunk)
		if chunk > pos {
			chunk = pos
		}
		pos -= chunk
		tmp := make([]byte, chunk)
		if _, err := f.ReadAt(tmp, pos); err != nil {
			return "", err
		}
		buf = append(tmp, buf...)
		s := string(buf)
		end := strings.LastIndexByte(s, '\n')
		if end < 0 {
			continue
		}
		// Ignore any unterminated tail after the last newline.
		trimmed := strings.TrimRight(s[:end], "\n")
		if idx := strings.LastIndexByte(trimmed, '\n'); idx >= 0 {
			return trimmed[idx+1:], nil
		}
		if pos == 0 {
			return trimmed, nil
		}
	}
	return "", nil
}
