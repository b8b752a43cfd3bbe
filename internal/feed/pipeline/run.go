package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chenzhangda16/web3-feed/internal/feed/config"
	"github.com/chenzhangda16/web3-feed/internal/feed/model"
	"github.com/chenzhangda16/web3-feed/pkg/hash"
	"github.com/chenzhangda16/web3-feed/pkg/obs"
)

const LockName = ".feed.lock"

type Runner struct {
	cfg *config.Config

	// Now is the wall clock; overridable in tests.
	Now func() time.Time
	// Summary receives the human-readable result listing; nil discards it.
	Summary io.Writer
	// LockTimeout bounds the wait for another run holding the output lock.
	LockTimeout time.Duration
}

func NewRunner(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg, Now: time.Now, LockTimeout: 10 * time.Second}
}

// Result is everything a run produced. A skipped run carries the previous
// manifest and no phase results.
type Result struct {
	Manifest Manifest
	Phase1   Phase1Result
	Phase2   Phase2Result
	Skipped  bool
}

// NowHours resolves the decay clock: configured now_hours, else wall-clock hours
// since the epoch.
func (r *Runner) NowHours() float64 {
	if r.cfg.NowHours != nil {
		return *r.cfg.NowHours
	}
	return float64(r.Now().UnixNano()) / float64(time.Hour)
}

// Run loads both inputs, computes both phases, saves both outputs and writes the
// manifest. Outputs are saved while holding <out_dir>/.feed.lock.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	started := r.Now()
	runID := uuid.NewString()
	p := ParamsFrom(r.cfg)

	op := NewOpener(r.cfg, runID)
	defer op.Close()

	txs, trs, err := r.load(ctx, op)
	if err != nil {
		return nil, err
	}
	Canonicalize(txs, trs)

	now := r.NowHours()
	fp := Fingerprint(p, now, txs, trs)
	log.Printf("[run] start: run_id=%s seed=%s txs=%d topic_records=%d now_hours=%.3f fp=%s",
		runID, p.Seed, len(txs), len(trs), now, fp.Short())

	if r.cfg.SkipUnchanged {
		if prev, ok := r.unchanged(fp); ok {
			log.Printf("[run] skip: run_id=%s fp=%s unchanged since run_id=%s", runID, fp.Short(), prev.RunID)
			if r.Summary != nil {
				fmt.Fprintf(r.Summary, "unchanged since run %s (%s)\n", prev.RunID, prev.FinishedAt.Format(time.RFC3339))
			}
			return &Result{Manifest: prev, Skipped: true}, nil
		}
	}

	t1 := time.Now()
	p1, err := Phase1(p, txs)
	if err != nil {
		return nil, err
	}
	obs.Since("phase1", t1)

	t2 := time.Now()
	p2 := Phase2(p, p1, trs, now)
	obs.Since("phase2", t2)

	unlock, err := r.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := r.save(ctx, op, p1, p2); err != nil {
		return nil, err
	}

	m := Manifest{
		RunID:        runID,
		BootID:       obs.BootID(),
		Fingerprint:  fp,
		Params:       p,
		NowHours:     now,
		Inputs:       map[string]int{config.Transactions: len(txs), config.TopicRecords: len(trs)},
		Datasets:     r.datasets(),
		VicinitySize: len(p1.Vicinity),
		Rounds:       p1.Rounds,
		TopicCount:   len(p2.RelevantTopics),
		StartedAt:    started.UTC(),
		FinishedAt:   r.Now().UTC(),
	}
	if err := WriteManifest(r.cfg.OutDir, m); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	log.Printf("[run] done: run_id=%s vicinity=%d rounds=%d topics=%d cost=%s",
		runID, m.VicinitySize, m.Rounds, m.TopicCount, m.FinishedAt.Sub(m.StartedAt).Round(time.Millisecond))

	if r.Summary != nil {
		WriteSummary(r.Summary, p1, p2)
	}
	return &Result{Manifest: m, Phase1: p1, Phase2: p2}, nil
}

// unchanged returns the manifest in out_dir when it was written for fp. An
// unreadable manifest counts as changed.
func (r *Runner) unchanged(fp hash.Hash32) (Manifest, bool) {
	prev, ok, err := ReadManifest(r.cfg.OutDir)
	if err != nil {
		log.Printf("[run] manifest unreadable, recomputing: dir=%s err=%v", r.cfg.OutDir, err)
		return Manifest{}, false
	}
	if !ok || prev.Fingerprint != fp {
		return Manifest{}, false
	}
	return prev, true
}

func (r *Runner) load(ctx context.Context, op *Opener) ([]model.TxRecord, []model.TopicRecord, error) {
	txLoc, err := r.cfg.Location(config.Transactions)
	if err != nil {
		return nil, nil, err
	}
	trLoc, err := r.cfg.Location(config.TopicRecords)
	if err != nil {
		return nil, nil, err
	}
	txl, err := op.TxLoader(txLoc)
	if err != nil {
		return nil, nil, err
	}
	trl, err := op.TopicRecordLoader(trLoc)
	if err != nil {
		return nil, nil, err
	}

	var (
		txs []model.TxRecord
		trs []model.TopicRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = txl.Load(gctx)
		if err != nil {
			return fmt.Errorf("load %s: %w", config.Transactions, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		trs, err = trl.Load(gctx)
		if err != nil {
			return fmt.Errorf("load %s: %w", config.TopicRecords, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return txs, trs, nil
}

func (r *Runner) save(ctx context.Context, op *Opener, p1 Phase1Result, p2 Phase2Result) error {
	peerLoc, err := r.cfg.Location(config.Peers)
	if err != nil {
		return err
	}
	topicLoc, err := r.cfg.Location(config.Topics)
	if err != nil {
		return err
	}
	// Opened serially: both savers may share one postgres writer.
	ps, err := op.PeerSaver(ctx, peerLoc, config.Peers)
	if err != nil {
		return err
	}
	ts, err := op.TopicScoreSaver(ctx, topicLoc, config.Topics)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ps.Save(gctx, p1.Peers()); err != nil {
			return fmt.Errorf("save %s: %w", config.Peers, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := ts.Save(gctx, p2.Scores()); err != nil {
			return fmt.Errorf("save %s: %w", config.Topics, err)
		}
		return nil
	})
	return g.Wait()
}

func (r *Runner) lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(r.cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("out dir: %w", err)
	}
	path := filepath.Join(r.cfg.OutDir, LockName)
	l := flock.New(path)

	lctx, cancel := context.WithTimeout(ctx, r.LockTimeout)
	defer cancel()
	locked, err := l.TryLockContext(lctx, 200*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("another run holds %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("another run holds %s", path)
	}
	return func() { _ = l.Unlock() }, nil
}

func (r *Runner) datasets() map[string]string {
	out := make(map[string]string, len(r.cfg.Datasets))
	for k := range r.cfg.Datasets {
		if loc, err := r.cfg.Location(k); err == nil {
			out[k] = loc.String()
		}
	}
	return out
}
