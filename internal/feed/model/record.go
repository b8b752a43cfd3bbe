package model

// TxRecord is one EOA-to-EOA transfer. Timestamp is optional in the source
// data and unused by the trust computation.
type TxRecord struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Value        uint64 `json:"value"`
	Timestamp    uint64 `json:"timestamp,omitempty"`
	HasTimestamp bool   `json:"has_timestamp,omitempty"`
}

// TopicRecord says an address engaged with a topic at Timestamp (hours since epoch).
type TopicRecord struct {
	From      string `json:"from"`
	Topic     string `json:"topic"`
	Timestamp uint64 `json:"timestamp"`
}

type PeerScore struct {
	Address string  `json:"address"`
	Score   float64 `json:"score"`
}

type TopicScore struct {
	Topic string  `json:"topic"`
	Score float64 `json:"score"`
}
