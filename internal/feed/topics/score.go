// Package topics attributes vicinity trust to the topics addresses engaged with,
// weighting each engagement by its age.
package topics

import (
	"math"
	"sort"

	"github.com/chenzhangda16/web3-feed/internal/feed/ids"
	"github.com/chenzhangda16/web3-feed/internal/feed/matrix"
	"github.com/chenzhangda16/web3-feed/internal/feed/model"
)

const DefaultDecayRate = 0.7

// Decay returns rate^(now−ts). Future timestamps give a factor above 1 for rate < 1.
func Decay(rate, nowHours, tsHours float64) float64 {
	return math.Pow(rate, nowHours-tsHours)
}

type key struct {
	from, topic string
}

// Score sums decay·trust per topic over the engagements of vicinity members.
// Repeated (from, topic) pairs keep the last timestamp. index must cover every
// vicinity address and agree with global; a miss panics.
func Score(vicinity []string, index *ids.Index, global matrix.Vector, records []model.TopicRecord, nowHours, decayRate float64) map[string]float64 {
	members := make(map[string]struct{}, len(vicinity))
	for _, a := range vicinity {
		members[a] = struct{}{}
	}

	latest := make(map[key]uint64, len(records))
	order := make([]key, 0, len(records))
	for _, r := range records {
		k := key{from: r.From, topic: r.Topic}
		if _, ok := latest[k]; !ok {
			order = append(order, k)
		}
		latest[k] = r.Timestamp
	}

	out := make(map[string]float64)
	for _, k := range order {
		if _, ok := members[k.from]; !ok {
			continue
		}
		i := index.MustLookup(k.from)
		out[k.topic] += Decay(decayRate, nowHours, float64(latest[k])) * global[i]
	}
	return out
}

// Sorted flattens a Score result into topic order.
func Sorted(scores map[string]float64) []model.TopicScore {
	out := make([]model.TopicScore, 0, len(scores))
	for t, s := range scores {
		out = append(out, model.TopicScore{Topic: t, Score: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}
