package pipeline

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteSummary prints the vicinity scores and topic scores as two tables.
func WriteSummary(w io.Writer, p1 Phase1Result, p2 Phase2Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ADDRESS\tSCORE\n")
	for i, a := range p1.Vicinity {
		fmt.Fprintf(tw, "%s\t%.6f\n", a, p1.GlobalScores[i])
	}
	_ = tw.Flush()

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "TOPIC\tSCORE\n")
	for i, t := range p2.RelevantTopics {
		fmt.Fprintf(tw, "%s\t%.6f\n", t, p2.TopicScores[i])
	}
	_ = tw.Flush()
}
