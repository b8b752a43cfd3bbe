package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenzhangda16/web3-feed/internal/feed/config"
	"github.com/chenzhangda16/web3-feed/internal/feed/model"
	"github.com/chenzhangda16/web3-feed/internal/feed/pipeline"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	c := config.Default()
	c.OutDir = filepath.Join(dir, "out")
	c.Datasets = map[string]string{
		config.Transactions: filepath.Join(dir, "in", "transactions.csv"),
		config.TopicRecords: filepath.Join(dir, "in", "topic_records.csv"),
		config.Peers:        filepath.Join(dir, "out", "peers.csv"),
		config.Topics:       filepath.Join(dir, "out", "topics.csv"),
	}
	p := filepath.Join(dir, "feed.yaml")
	require.NoError(t, c.Write(p))
	return p, dir
}

func TestGenThenRun(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	pinned := filepath.Join(dir, "pinned.yaml")

	_, err := execute(t, "--config", cfgPath, "gen", "--now", "480000", "--write-config", pinned)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "in", "transactions.csv"))
	require.FileExists(t, pinned)

	out, err := execute(t, "--config", pinned, "run", "--iterations", "10", "--workers", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "ADDRESS")
	assert.Contains(t, out, config.DefaultSeed)

	m, ok, err := pipeline.ReadManifest(filepath.Join(dir, "out"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 480000.0, m.NowHours)
	assert.Equal(t, 10, m.Params.Iterations)
	assert.Equal(t, 4, m.Params.Workers)
	assert.Greater(t, m.VicinitySize, 1)

	peers, err := storage.NewCSV[model.PeerScore](filepath.Join(dir, "out", "peers.csv"), model.PeerCodec{}).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, peers, m.VicinitySize)
	assert.Equal(t, config.DefaultSeed, peers[0].Address)

	out, err = execute(t, "--config", pinned, "run", "--iterations", "10", "--workers", "4", "--skip-unchanged")
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged since run "+m.RunID)
	assert.NotContains(t, out, "ADDRESS")
}

func TestRunQuietAndFlagValidation(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := execute(t, "--config", cfgPath, "gen", "--now", "100")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfgPath, "run", "-q", "--now", "100")
	require.NoError(t, err)
	assert.NotContains(t, out, "ADDRESS")

	_, err = execute(t, "--config", cfgPath, "run", "--weight", "2")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestImportCSVToCSV(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	_, err := execute(t, "--config", cfgPath, "gen", "--now", "100", "--transfers", "20")
	require.NoError(t, err)

	src := filepath.Join(dir, "in", "transactions.csv")
	dst := filepath.Join(dir, "copy", "transactions.csv")
	_, err = execute(t, "--config", cfgPath, "import", config.Transactions, src, "csv://"+dst)
	require.NoError(t, err)

	a, err := os.ReadFile(src)
	require.NoError(t, err)
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestImportRejectsUnknownDataset(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	_, err := execute(t, "--config", cfgPath, "import", "peers", filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv"))
	assert.ErrorIs(t, err, storage.ErrUnsupported)

	_, err = execute(t, "--config", cfgPath, "import", config.TopicRecords, "kafka://blocks", filepath.Join(dir, "b.csv"))
	assert.ErrorIs(t, err, storage.ErrUnsupported)
}

func TestTailRejectsNonKafka(t *testing.T) {
	cfgPath, dir := writeConfig(t)
	_, err := execute(t, "--config", cfgPath, "tail", filepath.Join(dir, "peers.csv"))
	assert.ErrorIs(t, err, storage.ErrUnsupported)
}
