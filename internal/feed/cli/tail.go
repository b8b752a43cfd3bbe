package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chenzhangda16/web3-feed/internal/feed/storage"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage/kafka"
)

func newTailCmd(rf *rootFlags) *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "tail <kafka://topic>",
		Short: "Print result envelopes published to a Kafka output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rf.load()
			if err != nil {
				return err
			}
			loc, err := storage.ParseLocation(args[0])
			if err != nil {
				return err
			}
			if loc.Scheme != storage.SchemeKafka {
				return fmt.Errorf("%w: tail needs a kafka:// location, got %s", storage.ErrUnsupported, loc)
			}
			if len(cfg.Kafka.Brokers) == 0 {
				return fmt.Errorf("%w: no kafka brokers (set FEED_KAFKA_BROKERS)", storage.ErrUnsupported)
			}
			w := cmd.OutOrStdout()
			err = kafka.Tail(cmd.Context(), cfg.Kafka.Brokers, group, loc.Target, func(e kafka.Envelope) error {
				_, err := fmt.Fprintf(w, "%s run=%s %d/%d %s\n", e.Type, e.RunID, e.Seq+1, e.Total, e.Data)
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&group, "group", "web3-feed-tail", "kafka consumer group")
	return cmd
}
