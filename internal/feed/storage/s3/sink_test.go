package s3

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenzhangda16/web3-feed/internal/feed/model"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "runs/r1/peers.csv", ObjectKey("runs/", "r1", "peers"))
	assert.Equal(t, "r1/topics.csv", ObjectKey("", "r1", "topics"))
	assert.Equal(t, "a/b/r1/peers.csv", ObjectKey("/a/b/", " r1 ", "peers"))
	assert.Equal(t, "peers.csv", ObjectKey("", "", "peers"))
}

func TestNewStoreValidates(t *testing.T) {
	_, err := NewStore(Config{}, "b")
	assert.ErrorIs(t, err, storage.ErrUnsupported)
	_, err = NewStore(Config{Endpoint: "localhost:9000"}, "b")
	assert.ErrorIs(t, err, storage.ErrUnsupported)
	_, err = NewStore(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, " ")
	assert.ErrorIs(t, err, storage.ErrUnsupported)

	s, err := NewStore(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, "feed")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", s.region)
}

// Needs an S3 endpoint, e.g. a local MinIO: FEED_TEST_S3_ENDPOINT, FEED_TEST_S3_ACCESS_KEY,
// FEED_TEST_S3_SECRET_KEY.
func TestSinkAgainstS3(t *testing.T) {
	endpoint := os.Getenv("FEED_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("set FEED_TEST_S3_ENDPOINT to run against S3")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := NewStore(Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("FEED_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("FEED_TEST_S3_SECRET_KEY"),
	}, "feed-test")
	require.NoError(t, err)

	run := uuid.NewString()
	sink := NewSink[model.TopicScore](st, "runs", run, "topics", model.TopicScoreCodec{})
	require.NoError(t, sink.Save(ctx, []model.TopicScore{{Topic: "defi", Score: 0.5}}))

	got, err := st.Get(ctx, sink.Key())
	require.NoError(t, err)
	assert.Equal(t, "topic,score\ndefi,0.5\n", string(got))
}

func TestNewObjectNeedsKey(t *testing.T) {
	s, err := NewStore(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, "feed")
	require.NoError(t, err)

	_, err = NewObject[model.TxRecord](s, " / ", model.TxCodec{})
	assert.ErrorIs(t, err, storage.ErrUnsupported)

	o, err := NewObject[model.TxRecord](s, "/inputs/transactions.csv", model.TxCodec{})
	require.NoError(t, err)
	assert.Equal(t, "inputs/transactions.csv", o.Key())
}

func TestObjectRoundTrip(t *testing.T) {
	endpoint := os.Getenv("FEED_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("set FEED_TEST_S3_ENDPOINT to run against S3")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := NewStore(Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("FEED_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("FEED_TEST_S3_SECRET_KEY"),
	}, "feed-test")
	require.NoError(t, err)

	o, err := NewObject[model.TxRecord](st, "inputs/"+uuid.NewString()+".csv", model.TxCodec{})
	require.NoError(t, err)
	in := []model.TxRecord{
		{From: "a", To: "b", Value: 10, Timestamp: 1700000000, HasTimestamp: true},
		{From: "b", To: "c", Value: 5},
	}
	require.NoError(t, o.Save(ctx, in))

	got, err := o.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}
