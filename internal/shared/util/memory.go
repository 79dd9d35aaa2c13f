package util

import (
	"runtime"
)

// MemoryUsage is a snapshot of the process memory, in MiB.
type MemoryUsage struct {
	HeapMB     uint64 `json:"heap_mb"`
	SysMB      uint64 `json:"sys_mb"`
	GCCycles   uint32 `json:"gc_cycles"`
	Goroutines int    `json:"goroutines"`
}

func ReadMemoryUsage() MemoryUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryUsage{
		HeapMB:     m.HeapAlloc >> 20,
		SysMB:      m.Sys >> 20,
		GCCycles:   m.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
}
