package stats

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordLineRoundTrip(t *testing.T) {
	from := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	to := from.Add(90 * time.Second)
	r := Record{Type: RecordPeriod, From: from, To: to, Duration: 90 * time.Second, RxBytes: 1024, TxBytes: 512}

	parsed, err := parseRecord(r.Line())
	require.NoError(t, err)
	assert.Equal(t, r.Type, parsed.Type)
	assert.True(t, r.From.Equal(parsed.From))
	assert.True(t, r.To.Equal(parsed.To))
	assert.Equal(t, r.Duration, parsed.Duration)
	assert.Equal(t, r.RxBytes, parsed.RxBytes)
	assert.Equal(t, r.TxBytes, parsed.TxBytes)
}

func TestParseRecordRejectsMalformed(t *testing.T) {
	_, err := parseRecord("not enough fields")
	assert.Error(t, err)
}

func TestJournalStartSampleFinish(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.journal")
	start := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	j, err := Start(path, start)
	require.NoError(t, err)

	require.NoError(t, j.Sample(start.Add(10*time.Second), 100, 50))

	var summary string
	finishTime := start.Add(20 * time.Second)
	require.NoError(t, j.Finish(finishTime, 200, 150, func(line string) { summary = line }))

	assert.Contains(t, summary, "RX: 200")
	assert.Contains(t, summary, "TX: 150")
	assert.Contains(t, summary, "Duration: 20s")
}

func TestRecoverEmitsLastRecordAndRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.journal")
	start := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	j, err := Start(path, start)
	require.NoError(t, err)
	require.NoError(t, j.Sample(start.Add(5*time.Second), 10, 5))
	require.NoError(t, j.file.Close())

	var emitted string
	require.NoError(t, Recover(path, func(line string) { emitted = line }))

	assert.Contains(t, emitted, "RX: 10")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRecoverNoFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.journal")
	assert.NoError(t, Recover(path, nil))
}

func TestLastLineOnJournalLongerThanOneChunk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.journal")
	start := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	j, err := Start(path, start)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, j.Sample(start.Add(time.Duration(i)*time.Second), uint64(i), uint64(i)))
	}
	require.NoError(t, j.file.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	line, err := lastLine(f)
	require.NoError(t, err)
	assert.Contains(t, line, "19\t19")
}
