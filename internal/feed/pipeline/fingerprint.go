package pipeline

import (
	"github.com/chenzhangda16/web3-feed/internal/feed/model"
	"github.com/chenzhangda16/web3-feed/pkg/hash"
)

// Fingerprint digests the parameters, the clock and the input records. Two runs
// with equal fingerprints produce equal outputs.
func Fingerprint(p Params, nowHours float64, txs []model.TxRecord, trs []model.TopicRecord) hash.Hash32 {
	b := hash.NewBuilder()
	b.PutString(p.Seed).
		PutI64(int64(p.Limit)).
		PutI64(int64(p.Iterations)).
		PutF64(p.Weight).
		PutF64(p.Tolerance).
		PutF64(p.DecayRate).
		PutF64(nowHours)
	if p.ExcludeSeed {
		b.PutU64(1)
	} else {
		b.PutU64(0)
	}

	b.PutU64(uint64(len(txs)))
	for _, r := range txs {
		b.PutString(r.From).PutString(r.To).PutU64(r.Value)
	}
	b.PutU64(uint64(len(trs)))
	for _, r := range trs {
		b.PutString(r.From).PutString(r.Topic).PutU64(r.Timestamp)
	}
	return b.Sum32()
}
