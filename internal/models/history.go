package models

import "time"

// HistoryKind distinguishes how a contract record entered the history.
type HistoryKind string

const (
	HistoryGenerated HistoryKind = "generated"
	HistoryAnalyzed  HistoryKind = "analyzed"
)

// HistoryItem is one cached generate/analyze result. Items are never
// mutated after creation; the history evicts the oldest past its cap.
type HistoryItem struct {
	ID           string         `json:"id"`
	Kind         HistoryKind    `json:"kind"`
	ContractType string         `json:"contract_type"`
	Timestamp    time.Time      `json:"timestamp"`
	Data         ContractRecord `json:"data"`
}
