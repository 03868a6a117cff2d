package types

// ProgressEvent is emitted once per chunk during a transfer.
type ProgressEvent struct {
	Chunk       uint64  `json:"progress"`      // Bytes in this chunk
	Transferred uint64  `json:"progressTotal"` // Bytes transferred so far
	Total       uint64  `json:"total"`         // Content length, 0 if unknown
	Rate        float64 `json:"transferSpeed"` // Bytes per second since the transfer started
}

// Percentage returns the completion percentage, or -1 when the total is unknown.
func (p ProgressEvent) Percentage() float64 {
	if p.Total == 0 {
		return -1
	}
	return float64(p.Transferred) / float64(p.Total) * 100
}
