package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRecords() []FetchRecord {
	ok := sampleRecord("01HX0000000000000000000001")

	hit := sampleRecord("01HX0000000000000000000002")
	hit.Symbol = "ETH/USDT"
	hit.CacheHit = true
	hit.StartedAt = ok.StartedAt.Add(2 * time.Second)

	short := sampleRecord("01HX0000000000000000000003")
	short.Symbol = "SOL/USDT"
	short.Truncated = true
	short.Bars = 10
	short.StartedAt = ok.StartedAt.Add(4 * time.Second)

	bad := sampleRecord("01HX0000000000000000000004")
	bad.Symbol = "NOPE/USDT"
	bad.Error = "Invalid symbol."
	bad.Bars = 0
	bad.StartedAt = ok.StartedAt.Add(6 * time.Second)

	return []FetchRecord{ok, hit, short, bad}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	recs := runRecords()
	r := Summarize("RUN1", recs)

	assert.Equal(t, "binance", r.Provider)
	assert.Equal(t, 4, r.Symbols)
	assert.Equal(t, 2, r.OK)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Truncated)
	assert.Equal(t, 1, r.CacheHits)
	assert.Equal(t, 48+48+10, r.Bars)
	assert.Equal(t, recs[0].StartedAt, r.Started)
	assert.Equal(t, recs[3].StartedAt.Add(recs[3].Duration), r.Finished)
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	r := Summarize("RUN1", nil)
	assert.Equal(t, 0, r.Symbols)
	assert.True(t, r.Started.IsZero())
}

func TestWriteOrg(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Summarize("RUN1", runRecords()).WriteOrg(&buf))
	out := buf.String()

	assert.Contains(t, out, "* HARVEST: binance RUN1")
	assert.Contains(t, out, ":FAILED:     1")
	assert.Contains(t, out, "| BTC/USDT | 1h | 2021-01-01 | 2021-01-03 | 48 | FETCHED |")
	assert.Contains(t, out, "| ETH/USDT | 1h | 2021-01-01 | 2021-01-03 | 48 | CACHED |")
	assert.Contains(t, out, "| SOL/USDT | 1h | 2021-01-01 | 2021-01-03 | 10 | SHORT |")
	assert.Contains(t, out, "** Errors\n- NOPE/USDT: Invalid symbol.")
}

func TestWriteOrgNoErrorsSection(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Summarize("RUN1", runRecords()[:2]).WriteOrg(&buf))
	assert.NotContains(t, buf.String(), "** Errors")
}

func TestWriteOrgFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.org")
	require.NoError(t, Summarize("RUN1", runRecords()).WriteOrgFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), ":RUN_ID:     RUN1")
}
