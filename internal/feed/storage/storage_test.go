package storage

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenzhangda16/web3-feed/internal/feed/model"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestCSVLoadTransactions(t *testing.T) {
	p := writeFile(t, "from,to,value\nA,B,10\nA,C,10\nB,A,5\n")

	got, err := NewCSV[model.TxRecord](p, model.TxCodec{}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.TxRecord{
		{From: "A", To: "B", Value: 10},
		{From: "A", To: "C", Value: 10},
		{From: "B", To: "A", Value: 5},
	}, got)
}

func TestCSVLoadOptionalTimestamp(t *testing.T) {
	p := writeFile(t, "from,to,value,timestamp\nA,B,1,1700000000\nB,C,2\n")

	got, err := NewCSV[model.TxRecord](p, model.TxCodec{}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].HasTimestamp)
	assert.Equal(t, uint64(1700000000), got[0].Timestamp)
	assert.False(t, got[1].HasTimestamp)
}

func TestCSVLoadHeaderOnly(t *testing.T) {
	p := writeFile(t, "from,topic,timestamp\n")
	got, err := NewCSV[model.TopicRecord](p, model.TopicCodec{}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCSVLoadMalformed(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		line   int
		column string
	}{
		{"bad value", "from,to,value\nA,B,1\nA,C,ten\n", 3, "value"},
		{"negative value", "from,to,value\nA,B,-1\n", 2, "value"},
		{"too few fields", "from,to,value\nA,B,1\nA\n", 3, ""},
		{"bad timestamp", "from,to,value,timestamp\nA,B,1,x\n", 2, "timestamp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := writeFile(t, tc.body)
			_, err := NewCSV[model.TxRecord](p, model.TxCodec{}).Load(context.Background())
			require.ErrorIs(t, err, ErrMalformedRecord)

			var re *RecordError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, p, re.Source)
			assert.Equal(t, tc.line, re.Line)
			assert.Equal(t, tc.column, re.Column)
			assert.Contains(t, err.Error(), p+":"+strconv.Itoa(tc.line))
		})
	}
}

func TestCSVLoadMissingFile(t *testing.T) {
	_, err := NewCSV[model.TxRecord](filepath.Join(t.TempDir(), "nope.csv"), model.TxCodec{}).Load(context.Background())
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, ErrMalformedRecord)
}

func TestCSVSaveRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out", "peers.csv")
	s := NewCSV[model.PeerScore](p, model.PeerCodec{})

	in := []model.PeerScore{{Address: "A", Score: 0.2}, {Address: "B", Score: 0.4}}
	require.NoError(t, s.Save(context.Background(), in))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "address,score\nA,0.2\nB,0.4\n", string(raw))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, in, got)

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestCSVLoadCanceled(t *testing.T) {
	p := writeFile(t, "from,to,value\nA,B,1\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCSV[model.TxRecord](p, model.TxCodec{}).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseLocation(t *testing.T) {
	cases := []struct {
		raw    string
		scheme Scheme
		target string
	}{
		{"./data/transactions.csv", SchemeCSV, "./data/transactions.csv"},
		{"csv://data/peers.csv", SchemeCSV, "data/peers.csv"},
		{"rocks:///var/lib/feed/tx", SchemeRocks, "/var/lib/feed/tx"},
		{"kafka://blocks", SchemeKafka, "blocks"},
		{"s3://feed-results/runs", SchemeS3, "feed-results/runs"},
		{"postgres://u:p@localhost:5432/feed", SchemePostgres, "postgres://u:p@localhost:5432/feed"},
		{"postgresql://localhost/feed", SchemePostgres, "postgresql://localhost/feed"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			loc, err := ParseLocation(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.scheme, loc.Scheme)
			assert.Equal(t, tc.target, loc.Target)
		})
	}

	for _, bad := range []string{"", "ftp://x", "kafka://"} {
		_, err := ParseLocation(bad)
		assert.ErrorIs(t, err, ErrUnsupported, bad)
	}
}

func TestLocationHelpers(t *testing.T) {
	loc, err := ParseLocation("s3://bucket/a/b/")
	require.NoError(t, err)
	b, prefix := loc.Bucket()
	assert.Equal(t, "bucket", b)
	assert.Equal(t, "a/b", prefix)

	pg, err := ParseLocation("postgres://feed:secret@db:5432/feed")
	require.NoError(t, err)
	assert.Equal(t, "postgres://feed:***@db:5432/feed", pg.String())
	assert.NotContains(t, pg.String(), "secret")
}

func TestReadCSVNamesSource(t *testing.T) {
	got, err := ReadCSV(context.Background(), strings.NewReader("from,topic,timestamp\nA,defi,5\n"), model.TopicCodec{}, "s3://feed/topics.csv")
	require.NoError(t, err)
	assert.Equal(t, []model.TopicRecord{{From: "A", Topic: "defi", Timestamp: 5}}, got)

	_, err = ReadCSV(context.Background(), strings.NewReader("from,topic,timestamp\nA,defi,soon\n"), model.TopicCodec{}, "s3://feed/topics.csv")
	var re *RecordError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "s3://feed/topics.csv", re.Source)
	assert.Equal(t, 2, re.Line)
	assert.Equal(t, "timestamp", re.Column)
}
