package model

import "time"

// MemoryRecord is one versioned snapshot of an agent's stored blob.
// EncryptedData is opaque to the service; it is stored and returned
// byte-for-byte without inspection.
type MemoryRecord struct {
	AgentID       AgentID
	Version       int
	EncryptedData string
	StoredAt      time.Time
}

// ServiceStats holds aggregate counts derived from the underlying
// stores on demand. They are never kept as separately mutated
// counters.
type ServiceStats struct {
	TotalAgents             int
	TotalMemoryRecords      int
	AverageVersionsPerAgent float64
}
