package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/chenzhangda16/web3-feed/internal/feed/config"
	"github.com/chenzhangda16/web3-feed/internal/feed/pipeline"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage"
)

func newImportCmd(rf *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <transactions|topic_records> <from> <to>",
		Short: "Copy an input dataset between backends",
		Example: `  feed import transactions ./data/transactions.csv rocks://./data/tx.rocks
  feed import transactions kafka://mockchain.blocks ./data/transactions.csv`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rf.load()
			if err != nil {
				return err
			}
			from, err := storage.ParseLocation(args[1])
			if err != nil {
				return err
			}
			to, err := storage.ParseLocation(args[2])
			if err != nil {
				return err
			}
			op := pipeline.NewOpener(cfg, "")
			defer op.Close()

			n, err := copyDataset(cmd.Context(), op, args[0], from, to)
			if err != nil {
				return err
			}
			log.Printf("[import] copied: dataset=%s records=%d from=%s to=%s", args[0], n, from, to)
			return nil
		},
	}
	return cmd
}

func copyDataset(ctx context.Context, op *pipeline.Opener, kind string, from, to storage.Location) (int, error) {
	switch kind {
	case config.Transactions:
		l, err := op.TxLoader(from)
		if err != nil {
			return 0, err
		}
		s, err := op.TxSaver(to)
		if err != nil {
			return 0, err
		}
		return copyRecords(ctx, l, s)
	case config.TopicRecords:
		l, err := op.TopicRecordLoader(from)
		if err != nil {
			return 0, err
		}
		s, err := op.TopicRecordSaver(to)
		if err != nil {
			return 0, err
		}
		return copyRecords(ctx, l, s)
	}
	return 0, fmt.Errorf("%w: unknown dataset %q", storage.ErrUnsupported, kind)
}

func copyRecords[T any](ctx context.Context, l storage.Loader[T], s storage.Saver[T]) (int, error) {
	recs, err := l.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.Save(ctx, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}
