package model

import (
	"encoding/json"

	"github.com/chenzhangda16/web3-feed/pkg/hash"
)

// Block is the JSON envelope the chain fetcher produces to Kafka, one message per block.
type Block struct {
	Header BlockHeader `json:"header"`
	Hash   hash.Hash32 `json:"hash"`
	Txs    []Tx        `json:"txs"`
}

type BlockHeader struct {
	Number     int64       `json:"number"`
	ParentHash hash.Hash32 `json:"parent_hash"`
	Timestamp  int64       `json:"timestamp"`
}

type Tx struct {
	Hash     hash.Hash32 `json:"hash"`
	TxBody   TxBody      `json:"tx_body"`
	BlockNum int64       `json:"block_num"`
}

type TxBody struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Token     string `json:"token"`
	Amount    int64  `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

func EncodeBlock(b Block) ([]byte, error) { return json.Marshal(b) }

func DecodeBlock(raw []byte) (Block, error) {
	var b Block
	err := json.Unmarshal(raw, &b)
	return b, err
}

// Record flattens a chain tx into the shape the trust computation reads.
// Negative amounts are clamped to zero.
func (tx Tx) Record() TxRecord {
	v := tx.TxBody.Amount
	if v < 0 {
		v = 0
	}
	r := TxRecord{
		From:  tx.TxBody.From,
		To:    tx.TxBody.To,
		Value: uint64(v),
	}
	if tx.TxBody.Timestamp > 0 {
		r.Timestamp = uint64(tx.TxBody.Timestamp)
		r.HasTimestamp = true
	}
	return r
}
