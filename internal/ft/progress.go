package ft

import "sync/atomic"

// ScanProgress holds live counters updated by the scan pipeline.
// All fields are atomic so they can be written from worker goroutines and
// read by a caller polling progress without locks.
type ScanProgress struct {
	FilesDiscovered atomic.Int64
	FilesHashed     atomic.Int64
	BytesRead       atomic.Int64
	RecordsCreated  atomic.Int64
	Errors          atomic.Int64
}

// ScanResult is the final report of one scan run.
type ScanResult struct {
	Discovered int64
	Hashed     int64
	BytesRead  int64
	Created    int64
	Errors     int64
}

// Snapshot returns a point-in-time copy of the counters.
func (p *ScanProgress) Snapshot() ScanResult {
	return ScanResult{
		Discovered: p.FilesDiscovered.Load(),
		Hashed:     p.FilesHashed.Load(),
		BytesRead:  p.BytesRead.Load(),
		Created:    p.RecordsCreated.Load(),
		Errors:     p.Errors.Load(),
	}
}
