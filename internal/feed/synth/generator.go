// Package synth generates deterministic transfer and topic datasets for demos
// and tests.
package synth

import (
	"encoding/hex"
	"fmt"
	"math/rand"

	"github.com/chenzhangda16/web3-feed/internal/feed/ids"
	"github.com/chenzhangda16/web3-feed/internal/feed/model"
	"github.com/chenzhangda16/web3-feed/pkg/rng"
)

type Params struct {
	// Seed is placed first in the address pool and fans out to SeedFanOut peers,
	// so its vicinity is never trivially empty.
	Seed       string
	SeedFanOut int

	Addresses int
	Transfers int
	// Loops adds A↔B and A→B→C→A cycles, like wash-trading clusters.
	Loops int
	// SelfLoops adds A→A transfers.
	SelfLoops int

	Topics       []string
	TopicRecords int
	NowHours     uint64
	MaxAgeHours  uint64

	RandSeed int64
}

func DefaultParams(seed string, nowHours uint64) Params {
	return Params{
		Seed:         seed,
		SeedFanOut:   4,
		Addresses:    64,
		Transfers:    400,
		Loops:        8,
		SelfLoops:    4,
		Topics:       []string{"defi", "nft", "dao", "gaming", "l2", "memes"},
		TopicRecords: 200,
		NowHours:     nowHours,
		MaxAgeHours:  48,
		RandSeed:     1,
	}
}

type Dataset struct {
	Addresses    []string
	Transactions []model.TxRecord
	TopicRecords []model.TopicRecord
}

type Generator struct {
	p     Params
	addrs []string

	rFrom  *rand.Rand
	rTo    *rand.Rand
	rAmt   *rand.Rand
	rTopic *rand.Rand
	rAge   *rand.Rand
}

func New(p Params) (*Generator, error) {
	if p.Addresses < 2 {
		return nil, fmt.Errorf("synth: need at least 2 addresses, got %d", p.Addresses)
	}
	if p.TopicRecords > 0 && len(p.Topics) == 0 {
		return nil, fmt.Errorf("synth: %d topic records but no topics", p.TopicRecords)
	}
	rf := rng.New(rng.Deterministic, p.RandSeed)
	g := &Generator{
		p:      p,
		rFrom:  rf.R(rng.FromPick),
		rTo:    rf.R(rng.ToPick),
		rAmt:   rf.R(rng.Amount),
		rTopic: rf.R(rng.TopicPick),
		rAge:   rf.R(rng.TopicAge),
	}
	g.addrs = addressPool(rf.R(rng.AddrPool), ids.Canonical(p.Seed), p.Addresses)
	return g, nil
}

func addressPool(r *rand.Rand, seed string, n int) []string {
	out := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	if seed != "" {
		out = append(out, seed)
		seen[seed] = struct{}{}
	}
	var b [20]byte
	for len(out) < n {
		_, _ = r.Read(b[:])
		a := "0x" + hex.EncodeToString(b[:])
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

func (g *Generator) amount() uint64 { return uint64(1 + g.rAmt.Int63n(1000)) }

func (g *Generator) pair() (string, string) {
	from := g.rFrom.Intn(len(g.addrs))
	to := g.rTo.Intn(len(g.addrs))
	for to == from {
		to = g.rTo.Intn(len(g.addrs))
	}
	return g.addrs[from], g.addrs[to]
}

func (g *Generator) ts() (uint64, bool) {
	if g.p.NowHours == 0 {
		return 0, false
	}
	age := uint64(g.rAge.Int63n(int64(g.p.MaxAgeHours) + 1))
	if age > g.p.NowHours {
		age = g.p.NowHours
	}
	return (g.p.NowHours - age) * 3600, true
}

func (g *Generator) tx(from, to string) model.TxRecord {
	r := model.TxRecord{From: from, To: to, Value: g.amount()}
	r.Timestamp, r.HasTimestamp = g.ts()
	return r
}

// Generate is deterministic for a given Params.
func (g *Generator) Generate() Dataset {
	p := g.p
	ds := Dataset{Addresses: append([]string(nil), g.addrs...)}

	if p.Seed != "" {
		for i := 0; i < p.SeedFanOut && i+1 < len(g.addrs); i++ {
			ds.Transactions = append(ds.Transactions, g.tx(g.addrs[0], g.addrs[1+g.rTo.Intn(len(g.addrs)-1)]))
		}
	}
	for i := 0; i < p.Transfers; i++ {
		ds.Transactions = append(ds.Transactions, g.tx(g.pair()))
	}
	for i := 0; i < p.Loops; i++ {
		ds.Transactions = append(ds.Transactions, g.loop()...)
	}
	for i := 0; i < p.SelfLoops; i++ {
		a := g.addrs[g.rFrom.Intn(len(g.addrs))]
		ds.Transactions = append(ds.Transactions, g.tx(a, a))
	}

	for i := 0; i < p.TopicRecords; i++ {
		age := uint64(g.rAge.Int63n(int64(p.MaxAgeHours) + 1))
		ts := uint64(0)
		if p.NowHours > age {
			ts = p.NowHours - age
		}
		ds.TopicRecords = append(ds.TopicRecords, model.TopicRecord{
			From:      g.addrs[g.rFrom.Intn(len(g.addrs))],
			Topic:     p.Topics[g.rTopic.Intn(len(p.Topics))],
			Timestamp: ts,
		})
	}
	return ds
}

func (g *Generator) loop() []model.TxRecord {
	if len(g.addrs) < 3 || g.rFrom.Float64() < 0.6 {
		a, b := g.pair()
		amt := g.amount() * 10
		r1, r2 := g.tx(a, b), g.tx(b, a)
		r1.Value, r2.Value = amt, amt
		return []model.TxRecord{r1, r2}
	}
	a, b := g.pair()
	c := g.addrs[g.rTo.Intn(len(g.addrs))]
	for c == a || c == b {
		c = g.addrs[g.rTo.Intn(len(g.addrs))]
	}
	amt := g.amount() * 20
	out := []model.TxRecord{g.tx(a, b), g.tx(b, c), g.tx(c, a)}
	for i := range out {
		out[i].Value = amt
	}
	return out
}
