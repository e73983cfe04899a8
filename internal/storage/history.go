package storage

import (
	"encoding/json"
	"fmt"

	"github.com/Veraticus/spice-books/internal/model"
)

type historyEntry struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

func encodeHistory(h model.CorrectionHistory) (string, error) {
	entries := make([]historyEntry, 0, len(h))
	for _, change := range h.Changes() {
		entries = append(entries, historyEntry{From: change.From, To: change.To, Count: h[change]})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to encode correction history: %w", err)
	}
	return string(data), nil
}

func decodeHistory(data string) (model.CorrectionHistory, error) {
	h := model.CorrectionHistory{}
	if data == "" {
		return h, nil
	}
	var entries []historyEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, fmt.Errorf("failed to decode correction history: %w", err)
	}
	for _, e := range entries {
		h[model.CategoryChange{From: e.From, To: e.To}] += e.Count
	}
	return h, nil
}
