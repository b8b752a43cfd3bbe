package pipeline

import (
	"context"
	"fmt"

	"github.com/chenzhangda16/web3-feed/internal/feed/config"
	"github.com/chenzhangda16/web3-feed/internal/feed/model"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage/kafka"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage/pg"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage/rocks"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage/s3"
)

// Opener turns dataset locations into loaders and savers. Close releases every
// connection it handed out.
type Opener struct {
	cfg   *config.Config
	runID string

	pgw     *pg.Writer
	s3s     map[string]*s3.Store
	closers []func()
}

func NewOpener(cfg *config.Config, runID string) *Opener {
	return &Opener{cfg: cfg, runID: runID, s3s: map[string]*s3.Store{}}
}

func (o *Opener) Close() {
	for i := len(o.closers) - 1; i >= 0; i-- {
		o.closers[i]()
	}
	o.closers = nil
}

// TxLoader reads transfers from CSV, RocksDB, an S3 object or a Kafka block topic.
func (o *Opener) TxLoader(loc storage.Location) (storage.Loader[model.TxRecord], error) {
	if loc.Scheme == storage.SchemeKafka {
		return o.blocks(loc)
	}
	return openStore[model.TxRecord](o, loc, model.TxCodec{})
}

func (o *Opener) TxSaver(loc storage.Location) (storage.Saver[model.TxRecord], error) {
	if loc.Scheme == storage.SchemeKafka {
		return o.blocks(loc)
	}
	return openStore[model.TxRecord](o, loc, model.TxCodec{})
}

func (o *Opener) TopicRecordLoader(loc storage.Location) (storage.Loader[model.TopicRecord], error) {
	return openStore[model.TopicRecord](o, loc, model.TopicCodec{})
}

func (o *Opener) TopicRecordSaver(loc storage.Location) (storage.Saver[model.TopicRecord], error) {
	return openStore[model.TopicRecord](o, loc, model.TopicCodec{})
}

// PeerSaver writes peer scores to any output backend. name becomes the object
// name on S3.
func (o *Opener) PeerSaver(ctx context.Context, loc storage.Location, name string) (storage.Saver[model.PeerScore], error) {
	switch loc.Scheme {
	case storage.SchemePostgres:
		w, err := o.postgres(ctx, loc)
		if err != nil {
			return nil, err
		}
		return w.Peers(o.runID), nil
	case storage.SchemeS3:
		st, prefix, err := o.s3(loc)
		if err != nil {
			return nil, err
		}
		return s3.NewSink[model.PeerScore](st, prefix, o.runID, name, model.PeerCodec{}), nil
	case storage.SchemeKafka:
		return kafka.NewSink[model.PeerScore](o.cfg.Kafka.Brokers, loc.Target, "peer_score", o.runID)
	}
	return openStore[model.PeerScore](o, loc, model.PeerCodec{})
}

func (o *Opener) TopicScoreSaver(ctx context.Context, loc storage.Location, name string) (storage.Saver[model.TopicScore], error) {
	switch loc.Scheme {
	case storage.SchemePostgres:
		w, err := o.postgres(ctx, loc)
		if err != nil {
			return nil, err
		}
		return w.Topics(o.runID), nil
	case storage.SchemeS3:
		st, prefix, err := o.s3(loc)
		if err != nil {
			return nil, err
		}
		return s3.NewSink[model.TopicScore](st, prefix, o.runID, name, model.TopicScoreCodec{}), nil
	case storage.SchemeKafka:
		return kafka.NewSink[model.TopicScore](o.cfg.Kafka.Brokers, loc.Target, "topic_score", o.runID)
	}
	return openStore[model.TopicScore](o, loc, model.TopicScoreCodec{})
}

func openStore[T any](o *Opener, loc storage.Location, codec storage.Codec[T]) (storage.Store[T], error) {
	switch loc.Scheme {
	case storage.SchemeCSV:
		return storage.NewCSV[T](loc.Target, codec), nil
	case storage.SchemeRocks:
		s, err := rocks.Open[T](loc.Target)
		if err != nil {
			return nil, err
		}
		o.closers = append(o.closers, s.Close)
		return s, nil
	case storage.SchemeS3:
		st, key, err := o.s3(loc)
		if err != nil {
			return nil, err
		}
		return s3.NewObject[T](st, key, codec)
	}
	return nil, fmt.Errorf("%w: %s cannot hold this dataset", storage.ErrUnsupported, loc)
}

func (o *Opener) blocks(loc storage.Location) (*kafka.Blocks, error) {
	return kafka.NewBlocks(kafka.BlocksConfig{
		Brokers:     o.cfg.Kafka.Brokers,
		Topic:       loc.Target,
		DedupTTL:    o.cfg.Kafka.DedupTTL,
		TxsPerBlock: o.cfg.Kafka.TxsPerBlock,
	})
}

// postgres shares one writer between both outputs. A bare "postgres://" location
// takes the DSN from config (PG_DSN).
func (o *Opener) postgres(ctx context.Context, loc storage.Location) (*pg.Writer, error) {
	if o.pgw != nil {
		return o.pgw, nil
	}
	dsn := loc.Target
	if dsn == "postgres://" || dsn == "postgresql://" {
		dsn = o.cfg.Postgres.DSN
	}
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres output without a DSN (set PG_DSN)", storage.ErrUnsupported)
	}
	w, err := pg.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := w.EnsureSchema(ctx); err != nil {
		_ = w.Close()
		return nil, err
	}
	o.pgw = w
	o.closers = append(o.closers, func() { _ = w.Close() })
	return w, nil
}

func (o *Opener) s3(loc storage.Location) (*s3.Store, string, error) {
	bucket, prefix := loc.Bucket()
	if st, ok := o.s3s[bucket]; ok {
		return st, prefix, nil
	}
	c := o.cfg.S3
	st, err := s3.NewStore(s3.Config{
		Endpoint:  c.Endpoint,
		Region:    c.Region,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		UseSSL:    c.UseSSL,
	}, bucket)
	if err != nil {
		return nil, "", err
	}
	o.s3s[bucket] = st
	return st, prefix, nil
}
