// Package pipeline wires the trust computation to its datasets: load, phase 1
// (vicinity and global trust), phase 2 (topic relevance), save and manifest.
package pipeline

import (
	"fmt"

	"github.com/chenzhangda16/web3-feed/internal/feed/config"
	"github.com/chenzhangda16/web3-feed/internal/feed/ids"
	"github.com/chenzhangda16/web3-feed/internal/feed/matrix"
	"github.com/chenzhangda16/web3-feed/internal/feed/model"
	"github.com/chenzhangda16/web3-feed/internal/feed/neighbors"
	"github.com/chenzhangda16/web3-feed/internal/feed/topics"
	"github.com/chenzhangda16/web3-feed/internal/feed/trust"
)

// Params are the numeric knobs of one run.
type Params struct {
	Seed        string  `json:"seed"`
	Limit       int     `json:"limit"`
	Iterations  int     `json:"iterations"`
	Weight      float64 `json:"pre_trust_weight"`
	Tolerance   float64 `json:"tolerance,omitempty"`
	DecayRate   float64 `json:"decay_rate"`
	Workers     int     `json:"workers"`
	ExcludeSeed bool    `json:"exclude_seed,omitempty"`
}

func ParamsFrom(c *config.Config) Params {
	return Params{
		Seed:        ids.Canonical(c.Seed),
		Limit:       c.Limit,
		Iterations:  c.Iterations,
		Weight:      c.PreTrustWeight,
		Tolerance:   c.Tolerance,
		DecayRate:   c.DecayRate,
		Workers:     c.Workers,
		ExcludeSeed: c.ExcludeSeed,
	}
}

// Phase1Result owns the vicinity and its scores. Index is derived from Vicinity.
type Phase1Result struct {
	Vicinity     []string
	GlobalScores matrix.Vector
	Index        *ids.Index
	Rounds       int
}

func (r Phase1Result) Peers() []model.PeerScore {
	out := make([]model.PeerScore, len(r.Vicinity))
	for i, a := range r.Vicinity {
		out[i] = model.PeerScore{Address: a, Score: r.GlobalScores[i]}
	}
	return out
}

// Phase1 explores the seed's vicinity, builds its local trust matrix and
// propagates pre-trust from the seed.
func Phase1(p Params, records []model.TxRecord) (Phase1Result, error) {
	vicinity := neighbors.Explore([]string{p.Seed}, records, 0, neighbors.WithLimit(p.Limit))
	if len(vicinity) == 0 {
		return Phase1Result{}, fmt.Errorf("phase1: %w", trust.ErrEmptyVicinity)
	}
	idx := ids.IndexOf(vicinity)

	opts := []trust.BuildOption{trust.WithWorkers(p.Workers)}
	if p.ExcludeSeed {
		opts = append(opts, trust.WithExcludeTarget(p.Seed))
	}
	m, err := trust.BuildLocalTrust(vicinity, records, opts...)
	if err != nil {
		return Phase1Result{}, fmt.Errorf("phase1: build: %w", err)
	}

	pre, err := trust.PreTrust(len(vicinity), idx.MustLookup(p.Seed))
	if err != nil {
		return Phase1Result{}, fmt.Errorf("phase1: %w", err)
	}
	prop, err := trust.NewPropagator(m, pre,
		trust.WithWeight(p.Weight),
		trust.WithIterations(p.Iterations),
		trust.WithTolerance(p.Tolerance),
	)
	if err != nil {
		return Phase1Result{}, fmt.Errorf("phase1: propagate: %w", err)
	}
	g := prop.Run()

	return Phase1Result{Vicinity: vicinity, GlobalScores: g, Index: idx, Rounds: prop.Rounds()}, nil
}

// Phase2Result holds parallel slices sorted by topic.
type Phase2Result struct {
	RelevantTopics []string
	TopicScores    []float64
}

func (r Phase2Result) Scores() []model.TopicScore {
	out := make([]model.TopicScore, len(r.RelevantTopics))
	for i, t := range r.RelevantTopics {
		out[i] = model.TopicScore{Topic: t, Score: r.TopicScores[i]}
	}
	return out
}

// Phase2 scores topics engaged with by the vicinity at time nowHours.
func Phase2(p Params, p1 Phase1Result, records []model.TopicRecord, nowHours float64) Phase2Result {
	sorted := topics.Sorted(topics.Score(p1.Vicinity, p1.Index, p1.GlobalScores, records, nowHours, p.DecayRate))

	out := Phase2Result{RelevantTopics: make([]string, len(sorted)), TopicScores: make([]float64, len(sorted))}
	for i, ts := range sorted {
		out.RelevantTopics[i], out.TopicScores[i] = ts.Topic, ts.Score
	}
	return out
}

// Canonicalize folds address spellings in place.
func Canonicalize(txs []model.TxRecord, trs []model.TopicRecord) {
	for i := range txs {
		txs[i].From = ids.Canonical(txs[i].From)
		txs[i].To = ids.Canonical(txs[i].To)
	}
	for i := range trs {
		trs[i].From = ids.Canonical(trs[i].From)
	}
}
