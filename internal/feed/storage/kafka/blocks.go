package kafka

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"golang.org/x/sync/errgroup"

	"github.com/chenzhangda16/web3-feed/internal/feed/model"
	"github.com/chenzhangda16/web3-feed/internal/feed/retry"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage"
	"github.com/chenzhangda16/web3-feed/pkg/hash"
)

const (
	DefaultDedupTTL    = int64(86400)
	DefaultTxsPerBlock = 64
)

type BlocksConfig struct {
	Brokers []string
	Topic   string

	// DedupTTL is how long, in block seconds, a tx hash suppresses repeats.
	DedupTTL int64
	// TxsPerBlock sizes the blocks Save packs records into.
	TxsPerBlock int
}

// Blocks treats a topic of JSON blocks as a transaction dataset. Load reads every
// partition from its oldest offset up to the high-water mark observed at start,
// so the result is a bounded snapshot, not a subscription.
type Blocks struct {
	cfg BlocksConfig
	src string
}

func NewBlocks(cfg BlocksConfig) (*Blocks, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("%w: kafka brokers and topic required", storage.ErrUnsupported)
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = DefaultDedupTTL
	}
	if cfg.TxsPerBlock <= 0 {
		cfg.TxsPerBlock = DefaultTxsPerBlock
	}
	return &Blocks{cfg: cfg, src: "kafka://" + cfg.Topic}, nil
}

type fetched struct {
	part   int32
	offset int64
	block  model.Block
}

func (b *Blocks) Load(ctx context.Context) ([]model.TxRecord, error) {
	client, err := sarama.NewClient(b.cfg.Brokers, newConfig("web3-feed-loader"))
	if err != nil {
		return nil, storage.IOError("connect", b.src, err)
	}
	defer client.Close()

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		return nil, storage.IOError("consumer", b.src, err)
	}
	defer consumer.Close()

	parts, err := client.Partitions(b.cfg.Topic)
	if err != nil {
		return nil, storage.IOError("partitions", b.src, err)
	}

	perPart := make([][]fetched, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range parts {
		i, p := i, p
		g.Go(func() error {
			blocks, err := b.readPartition(gctx, client, consumer, p)
			perPart[i] = blocks
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []fetched
	for _, bs := range perPart {
		all = append(all, bs...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].block.Header.Number < all[j].block.Header.Number
	})

	recs, dups := flatten(all, b.cfg.DedupTTL)
	log.Printf("[kafka] loaded: topic=%s partitions=%d blocks=%d txs=%d dup_txs=%d",
		b.cfg.Topic, len(parts), len(all), len(recs), dups)
	return recs, nil
}

func (b *Blocks) readPartition(ctx context.Context, client sarama.Client, consumer sarama.Consumer, part int32) ([]fetched, error) {
	oldest, err := client.GetOffset(b.cfg.Topic, part, sarama.OffsetOldest)
	if err != nil {
		return nil, storage.IOError("offset", b.src, err)
	}
	hw, err := client.GetOffset(b.cfg.Topic, part, sarama.OffsetNewest)
	if err != nil {
		return nil, storage.IOError("offset", b.src, err)
	}
	if hw <= oldest {
		return nil, nil
	}

	pc, err := consumer.ConsumePartition(b.cfg.Topic, part, oldest)
	if err != nil {
		return nil, storage.IOError("consume", b.src, err)
	}
	defer pc.Close()

	out := make([]fetched, 0, hw-oldest)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case cerr := <-pc.Errors():
			if cerr != nil {
				return nil, storage.IOError("consume", b.src, cerr)
			}
		case msg := <-pc.Messages():
			if msg == nil {
				return nil, storage.IOError("consume", b.src, fmt.Errorf("partition %d closed at %d of %d", part, len(out), hw-oldest))
			}
			blk, err := model.DecodeBlock(msg.Value)
			if err != nil {
				return nil, &storage.RecordError{
					Source: fmt.Sprintf("%s/%d@%d", b.src, part, msg.Offset),
					Line:   int(msg.Offset),
					Err:    err,
				}
			}
			out = append(out, fetched{part: part, offset: msg.Offset, block: blk})
			if msg.Offset >= hw-1 {
				return out, nil
			}
		}
	}
}

// flatten walks blocks in order and drops txs whose hash was already seen within
// ttl block-seconds.
func flatten(blocks []fetched, ttl int64) ([]model.TxRecord, int) {
	d := NewDeduper(1024)
	var out []model.TxRecord
	dups := 0
	for _, f := range blocks {
		now := f.block.Header.Timestamp
		d.Evict(now)
		for _, tx := range f.block.Txs {
			if d.SeenOrAdd(tx.Hash, now+ttl, now) {
				dups++
				continue
			}
			out = append(out, tx.Record())
		}
	}
	return out, dups
}

// Save packs records into blocks of TxsPerBlock and publishes them in order, one
// message per block keyed by block number.
func (b *Blocks) Save(ctx context.Context, records []model.TxRecord) error {
	blocks := Pack(records, b.cfg.TxsPerBlock)

	cfg := newConfig("web3-feed-producer")
	p, err := sarama.NewSyncProducer(b.cfg.Brokers, cfg)
	if err != nil {
		return storage.IOError("connect", b.src, err)
	}
	defer p.Close()

	msgs := make([]*sarama.ProducerMessage, 0, len(blocks))
	for _, blk := range blocks {
		raw, err := model.EncodeBlock(blk)
		if err != nil {
			return fmt.Errorf("kafka: encode block %d: %w", blk.Header.Number, err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: b.cfg.Topic,
			Key:   sarama.StringEncoder(strconv.FormatInt(blk.Header.Number, 10)),
			Value: sarama.ByteEncoder(raw),
		})
	}

	err = retry.Do(ctx, retry.Remote(func(attempt int, wait time.Duration, err error) {
		log.Printf("[kafka] publish retry: topic=%s attempt=%d wait=%s err=%v", b.cfg.Topic, attempt, wait, err)
	}), func(context.Context) error {
		return p.SendMessages(msgs)
	})
	if err != nil {
		return storage.IOError("publish", b.src, err)
	}
	log.Printf("[kafka] published: topic=%s blocks=%d txs=%d", b.cfg.Topic, len(blocks), len(records))
	return nil
}

// Pack groups records into chained blocks. Block timestamps come from the
// largest record timestamp seen so far; tx hashes cover the record and its
// position, so identical transfers stay distinct.
func Pack(records []model.TxRecord, perBlock int) []model.Block {
	if perBlock <= 0 {
		perBlock = DefaultTxsPerBlock
	}
	var (
		out    []model.Block
		parent hash.Hash32
		ts     int64
	)
	hb := hash.NewBuilder()
	for start, num := 0, int64(1); start < len(records); start, num = start+perBlock, num+1 {
		end := min(start+perBlock, len(records))
		blk := model.Block{Header: model.BlockHeader{Number: num, ParentHash: parent}}
		for i := start; i < end; i++ {
			r := records[i]
			if r.HasTimestamp && int64(r.Timestamp) > ts {
				ts = int64(r.Timestamp)
			}
			hb.Reset()
			txHash := hb.PutString(r.From).PutString(r.To).PutU64(r.Value).PutU64(r.Timestamp).PutU64(uint64(i)).Sum32()
			body := model.TxBody{From: r.From, To: r.To, Token: "native", Amount: int64(r.Value)}
			if r.HasTimestamp {
				body.Timestamp = int64(r.Timestamp)
			}
			blk.Txs = append(blk.Txs, model.Tx{Hash: txHash, TxBody: body, BlockNum: num})
		}
		blk.Header.Timestamp = ts
		hb.Reset()
		hb.PutI64(num).PutBytes(parent[:])
		for _, tx := range blk.Txs {
			hb.PutBytes(tx.Hash[:])
		}
		blk.Hash = hb.Sum32()
		parent = blk.Hash
		out = append(out, blk)
	}
	return out
}
