package pipeline

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenzhangda16/web3-feed/internal/feed/config"
	"github.com/chenzhangda16/web3-feed/internal/feed/model"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage"
	"github.com/chenzhangda16/web3-feed/internal/feed/trust"
)

func abc() []model.TxRecord {
	return []model.TxRecord{
		{From: "A", To: "B", Value: 10},
		{From: "A", To: "C", Value: 10},
		{From: "B", To: "A", Value: 5},
	}
}

func params() Params {
	return Params{Seed: "A", Limit: 2, Iterations: 1, Weight: 0.2, DecayRate: 0.7, Workers: 1}
}

func TestPhase1ABC(t *testing.T) {
	p1, err := Phase1(params(), abc())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, p1.Vicinity)
	assert.InDeltaSlice(t, []float64{0.2, 0.4, 0.4}, p1.GlobalScores, 1e-12)
	assert.Equal(t, 1, p1.Rounds)
	for i, a := range p1.Vicinity {
		assert.Equal(t, i, p1.Index.MustLookup(a))
	}
	assert.Equal(t, model.PeerScore{Address: "C", Score: p1.GlobalScores[2]}, p1.Peers()[2])
}

func TestPhase1IsolatedSeed(t *testing.T) {
	p := params()
	p.Seed = "nobody"
	p1, err := Phase1(p, abc())
	require.NoError(t, err)
	assert.Equal(t, []string{"nobody"}, p1.Vicinity)
	assert.InDeltaSlice(t, []float64{0.2}, p1.GlobalScores, 1e-15)
}

func TestPhase1InvalidParams(t *testing.T) {
	p := params()
	p.Iterations = 0
	_, err := Phase1(p, abc())
	assert.ErrorIs(t, err, trust.ErrInvalidIterations)
}

func TestPhase2SortedAndExcludesOutsiders(t *testing.T) {
	p1, err := Phase1(params(), abc())
	require.NoError(t, err)

	p2 := Phase2(params(), p1, []model.TopicRecord{
		{From: "B", Topic: "defi", Timestamp: 90},
		{From: "Z", Topic: "defi", Timestamp: 90},
		{From: "Z", Topic: "memes", Timestamp: 100},
		{From: "A", Topic: "nft", Timestamp: 100},
	}, 100)

	assert.Equal(t, []string{"defi", "nft"}, p2.RelevantTopics)
	assert.InDelta(t, math.Pow(0.7, 10)*0.4, p2.TopicScores[0], 1e-12)
	assert.InDelta(t, 0.2, p2.TopicScores[1], 1e-12)
	assert.Equal(t, "nft", p2.Scores()[1].Topic)
}

func TestCanonicalize(t *testing.T) {
	txs := []model.TxRecord{{From: "0xABCDEF0000000000000000000000000000000001", To: " B "}}
	trs := []model.TopicRecord{{From: "0xABCDEF0000000000000000000000000000000001", Topic: "x"}}
	Canonicalize(txs, trs)
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", txs[0].From)
	assert.Equal(t, "B", txs[0].To)
	assert.Equal(t, txs[0].From, trs[0].From)
}

func TestFingerprint(t *testing.T) {
	base := Fingerprint(params(), 100, abc(), nil)
	assert.Equal(t, base, Fingerprint(params(), 100, abc(), nil))

	p := params()
	p.Weight = 0.3
	assert.NotEqual(t, base, Fingerprint(p, 100, abc(), nil))
	assert.NotEqual(t, base, Fingerprint(params(), 101, abc(), nil))
	assert.NotEqual(t, base, Fingerprint(params(), 100, abc()[:2], nil))

	p = params()
	p.Workers = 8
	assert.Equal(t, base, Fingerprint(p, 100, abc(), nil), "worker count does not change results")
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := ReadManifest(dir)
	require.NoError(t, err)
	assert.False(t, ok)

	m := Manifest{RunID: "r", Params: params(), Inputs: map[string]int{"transactions": 3}, StartedAt: time.Unix(10, 0).UTC()}
	require.NoError(t, WriteManifest(dir, m))
	back, ok, err := ReadManifest(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, m.RunID, back.RunID)
	assert.Equal(t, m.Params, back.Params)
	assert.True(t, m.StartedAt.Equal(back.StartedAt))

	_, err = os.Stat(filepath.Join(dir, ManifestName+".tmp"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func writeCSV(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func csvConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "tx.csv"), "from,to,value\nA,B,10\nA,C,10\nB,A,5\n")
	writeCSV(t, filepath.Join(dir, "tr.csv"), "from,topic,timestamp\nB,defi,90\nZ,defi,90\nA,nft,100\n")

	now := 100.0
	c := config.Default()
	c.Seed = "A"
	c.Iterations = 1
	c.NowHours = &now
	c.OutDir = filepath.Join(dir, "out")
	c.Datasets = map[string]string{
		config.Transactions: filepath.Join(dir, "tx.csv"),
		config.TopicRecords: "csv://" + filepath.Join(dir, "tr.csv"),
		config.Peers:        filepath.Join(dir, "out", "peers.csv"),
		config.Topics:       filepath.Join(dir, "out", "topics.csv"),
	}
	return c
}

func TestRunEndToEnd(t *testing.T) {
	c := csvConfig(t)
	var summary bytes.Buffer
	r := NewRunner(c)
	r.Summary = &summary

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	peers, err := storage.NewCSV[model.PeerScore](c.Datasets[config.Peers], model.PeerCodec{}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, peers, 3)
	for i, want := range []model.PeerScore{{Address: "A", Score: 0.2}, {Address: "B", Score: 0.4}, {Address: "C", Score: 0.4}} {
		assert.Equal(t, want.Address, peers[i].Address)
		assert.InDelta(t, want.Score, peers[i].Score, 1e-12)
	}

	tops, err := storage.NewCSV[model.TopicScore](c.Datasets[config.Topics], model.TopicScoreCodec{}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, tops, 2)
	assert.Equal(t, "defi", tops[0].Topic)
	assert.InDelta(t, 0.0113, tops[0].Score, 1e-4)
	assert.Equal(t, "nft", tops[1].Topic)
	assert.InDelta(t, 0.2, tops[1].Score, 1e-12)

	m, ok, err := ReadManifest(c.OutDir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.Manifest.RunID, m.RunID)
	assert.Equal(t, 3, m.VicinitySize)
	assert.Equal(t, 2, m.TopicCount)
	assert.Equal(t, 100.0, m.NowHours)
	assert.Equal(t, map[string]int{config.Transactions: 3, config.TopicRecords: 3}, m.Inputs)
	assert.False(t, m.Fingerprint.IsZero())

	assert.Contains(t, summary.String(), "ADDRESS")
	assert.Contains(t, summary.String(), "defi")

	// Same inputs, same fingerprint, fresh run id.
	res2, err := NewRunner(c).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Manifest.Fingerprint, res2.Manifest.Fingerprint)
	assert.NotEqual(t, res.Manifest.RunID, res2.Manifest.RunID)
}

func TestRunMalformedInput(t *testing.T) {
	c := csvConfig(t)
	writeCSV(t, c.Datasets[config.Transactions], "from,to,value\nA,B,ten\n")

	_, err := NewRunner(c).Run(context.Background())
	require.ErrorIs(t, err, storage.ErrMalformedRecord)
	assert.Contains(t, err.Error(), "value")

	_, statErr := os.Stat(c.Datasets[config.Peers])
	assert.ErrorIs(t, statErr, os.ErrNotExist, "nothing is written after a failed load")
}

func TestRunMissingInput(t *testing.T) {
	c := csvConfig(t)
	c.Datasets[config.TopicRecords] = filepath.Join(t.TempDir(), "absent.csv")
	_, err := NewRunner(c).Run(context.Background())
	assert.ErrorIs(t, err, storage.ErrIO)
}

func TestRunUnsupportedInput(t *testing.T) {
	c := csvConfig(t)
	c.Datasets[config.TopicRecords] = "s3://bucket/topics"
	_, err := NewRunner(c).Run(context.Background())
	assert.ErrorIs(t, err, storage.ErrUnsupported)
}

func TestRunWaitsForLock(t *testing.T) {
	c := csvConfig(t)
	require.NoError(t, os.MkdirAll(c.OutDir, 0o755))
	held := flock.New(filepath.Join(c.OutDir, LockName))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	r := NewRunner(c)
	r.LockTimeout = 300 * time.Millisecond
	_, err = r.Run(context.Background())
	assert.ErrorContains(t, err, LockName)
}

func TestNowHoursFallsBackToClock(t *testing.T) {
	c := config.Default()
	r := NewRunner(c)
	r.Now = func() time.Time { return time.Unix(7200, 0) }
	assert.Equal(t, 2.0, r.NowHours())

	h := 5.5
	c.NowHours = &h
	assert.Equal(t, 5.5, r.NowHours())
}

func TestRunSkipUnchanged(t *testing.T) {
	c := csvConfig(t)
	first, err := NewRunner(c).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Skipped)

	c.SkipUnchanged = true
	var summary bytes.Buffer
	r := NewRunner(c)
	r.Summary = &summary
	again, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Equal(t, first.Manifest.RunID, again.Manifest.RunID)
	assert.Contains(t, summary.String(), first.Manifest.RunID)

	// A new input changes the fingerprint, so the run goes ahead.
	writeCSV(t, c.Datasets[config.Transactions], "from,to,value\nA,B,10\nA,C,20\nB,A,5\n")
	changed, err := NewRunner(c).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, changed.Skipped)
	assert.NotEqual(t, first.Manifest.Fingerprint, changed.Manifest.Fingerprint)

	m, ok, err := ReadManifest(c.OutDir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, changed.Manifest.RunID, m.RunID)
}

func TestRunSkipUnchangedRecomputesOnBadManifest(t *testing.T) {
	c := csvConfig(t)
	c.SkipUnchanged = true
	require.NoError(t, os.MkdirAll(c.OutDir, 0o755))
	writeCSV(t, filepath.Join(c.OutDir, ManifestName), "{not json")

	res, err := NewRunner(c).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 3, res.Manifest.VicinitySize)
}
