package model

import (
	"fmt"
	"strconv"
)

// ColumnError names the column a CSV field failed to parse in.
type ColumnError struct {
	Column string
	Err    error
}

func (e *ColumnError) Error() string { return fmt.Sprintf("column %q: %v", e.Column, e.Err) }
func (e *ColumnError) Unwrap() error { return e.Err }

func wantFields(row []string, min, max int) error {
	if len(row) < min || len(row) > max {
		if min == max {
			return fmt.Errorf("want %d fields, got %d", min, len(row))
		}
		return fmt.Errorf("want %d-%d fields, got %d", min, max, len(row))
	}
	return nil
}

func parseUint(col, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, &ColumnError{Column: col, Err: err}
	}
	return v, nil
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// TxCodec maps TxRecord to "from,to,value[,timestamp]".
type TxCodec struct{}

func (TxCodec) Header() []string { return []string{"from", "to", "value", "timestamp"} }

func (TxCodec) Decode(row []string) (TxRecord, error) {
	if err := wantFields(row, 3, 4); err != nil {
		return TxRecord{}, err
	}
	v, err := parseUint("value", row[2])
	if err != nil {
		return TxRecord{}, err
	}
	r := TxRecord{From: row[0], To: row[1], Value: v}
	if len(row) == 4 && row[3] != "" {
		ts, err := parseUint("timestamp", row[3])
		if err != nil {
			return TxRecord{}, err
		}
		r.Timestamp, r.HasTimestamp = ts, true
	}
	return r, nil
}

func (TxCodec) Encode(r TxRecord) []string {
	ts := ""
	if r.HasTimestamp {
		ts = strconv.FormatUint(r.Timestamp, 10)
	}
	return []string{r.From, r.To, strconv.FormatUint(r.Value, 10), ts}
}

// TopicCodec maps TopicRecord to "from,topic,timestamp".
type TopicCodec struct{}

func (TopicCodec) Header() []string { return []string{"from", "topic", "timestamp"} }

func (TopicCodec) Decode(row []string) (TopicRecord, error) {
	if err := wantFields(row, 3, 3); err != nil {
		return TopicRecord{}, err
	}
	ts, err := parseUint("timestamp", row[2])
	if err != nil {
		return TopicRecord{}, err
	}
	return TopicRecord{From: row[0], Topic: row[1], Timestamp: ts}, nil
}

func (TopicCodec) Encode(r TopicRecord) []string {
	return []string{r.From, r.Topic, strconv.FormatUint(r.Timestamp, 10)}
}

// PeerCodec maps PeerScore to "address,score".
type PeerCodec struct{}

func (PeerCodec) Header() []string { return []string{"address", "score"} }

func (PeerCodec) Decode(row []string) (PeerScore, error) {
	if err := wantFields(row, 2, 2); err != nil {
		return PeerScore{}, err
	}
	f, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return PeerScore{}, &ColumnError{Column: "score", Err: err}
	}
	return PeerScore{Address: row[0], Score: f}, nil
}

func (PeerCodec) Encode(p PeerScore) []string {
	return []string{p.Address, formatFloat(p.Score)}
}

// TopicScoreCodec maps TopicScore to "topic,score".
type TopicScoreCodec struct{}

func (TopicScoreCodec) Header() []string { return []string{"topic", "score"} }

func (TopicScoreCodec) Decode(row []string) (TopicScore, error) {
	if err := wantFields(row, 2, 2); err != nil {
		return TopicScore{}, err
	}
	f, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return TopicScore{}, &ColumnError{Column: "score", Err: err}
	}
	return TopicScore{Topic: row[0], Score: f}, nil
}

func (TopicScoreCodec) Encode(s TopicScore) []string {
	return []string{s.Topic, formatFloat(s.Score)}
}
