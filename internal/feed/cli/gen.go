package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/chenzhangda16/web3-feed/internal/feed/config"
	"github.com/chenzhangda16/web3-feed/internal/feed/pipeline"
	"github.com/chenzhangda16/web3-feed/internal/feed/synth"
)

func newGenCmd(rf *rootFlags) *cobra.Command {
	var (
		addrs, transfers, loops, topicRecords int
		randSeed                              int64
		now                                   uint64
		writeConfig                           string
	)
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Write a deterministic synthetic transactions and topic_records dataset",
		Long: `gen writes the configured transactions and topic_records datasets with
synthetic data centred on the configured seed. Any input backend works:
CSV, rocks:// or kafka:// for transactions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := rf.load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("now") {
				now = uint64(time.Now().Unix() / 3600)
			}
			p := synth.DefaultParams(cfg.Seed, now)
			p.Addresses, p.Transfers, p.Loops, p.TopicRecords, p.RandSeed = addrs, transfers, loops, topicRecords, randSeed

			g, err := synth.New(p)
			if err != nil {
				return err
			}
			ds := g.Generate()

			op := pipeline.NewOpener(cfg, "")
			defer op.Close()

			txLoc, err := cfg.Location(config.Transactions)
			if err != nil {
				return err
			}
			txs, err := op.TxSaver(txLoc)
			if err != nil {
				return err
			}
			if err := txs.Save(cmd.Context(), ds.Transactions); err != nil {
				return err
			}

			trLoc, err := cfg.Location(config.TopicRecords)
			if err != nil {
				return err
			}
			trs, err := op.TopicRecordSaver(trLoc)
			if err != nil {
				return err
			}
			if err := trs.Save(cmd.Context(), ds.TopicRecords); err != nil {
				return err
			}
			log.Printf("[gen] wrote: transactions=%d(%s) topic_records=%d(%s) addrs=%d now_hours=%d",
				len(ds.Transactions), txLoc, len(ds.TopicRecords), trLoc, len(ds.Addresses), now)

			if writeConfig != "" {
				h := float64(now)
				cfg.NowHours = &h
				if err := cfg.Write(writeConfig); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&addrs, "addrs", 64, "address pool size")
	fl.IntVar(&transfers, "transfers", 400, "random transfers")
	fl.IntVar(&loops, "loops", 8, "2- and 3-cycles to add")
	fl.IntVar(&topicRecords, "topic-records", 200, "topic engagements")
	fl.Int64Var(&randSeed, "rand-seed", 1, "generator seed")
	fl.Uint64Var(&now, "now", 0, "hours since epoch the data is anchored at (default: wall clock)")
	fl.StringVar(&writeConfig, "write-config", "", "also write a config pinned to the generated clock")
	return cmd
}
