package telemetry

import (
	"runtime"
	"time"

	"tapescrub/internal/logging"
)

// MemorySnapshot represents memory state at a point in time
type MemorySnapshot struct {
	Timestamp   time.Time
	TotalMB     uint64 // Total system memory
	AvailableMB uint64 // Available memory for use
	UsedMB      uint64 // Currently used memory
	FreeMB      uint64 // Free memory (not including buffers/cache)
}

// GetAvailableMemoryMB returns only the available memory in MB
func GetAvailableMemoryMB() uint64 {
	snapshot := GetSystemMemory()
	return snapshot.AvailableMB
}

// GetGoMemoryStats returns Go runtime memory statistics
type GoMemoryStats struct {
	AllocMB      uint64 // Currently allocated heap memory
	TotalAllocMB uint64 // Cumulative allocated memory
	SysMB        uint64 // Memory obtained from system
	NumGC        uint32 // Number of GC runs
}

// GetGoMemory retrieves Go runtime memory statistics
func GetGoMemory() GoMemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return GoMemoryStats{
		AllocMB:      m.Alloc / (1024 * 1024),
		TotalAllocMB: m.TotalAlloc / (1024 * 1024),
		SysMB:        m.Sys / (1024 * 1024),
		NumGC:        m.NumGC,
	}
}

// IsLowMemory returns true if available memory is below threshold
func IsLowMemory(thresholdMB uint64) bool {
	available := GetAvailableMemoryMB()
	return available < thresholdMB
}

// MemoryPressureLevel represents how much memory pressure the system is under
type MemoryPressureLevel int

const (
	MemoryPressureNone MemoryPressureLevel = iota // >800MB available
	MemoryPressureLow                              // 400-800MB available
	MemoryPressureMedium                           // 200-400MB available
	MemoryPressureHigh                             // 100-200MB available
	MemoryPressureCritical                         // <100MB available
)

// GetMemoryPressure returns the current memory pressure level
func GetMemoryPressure() MemoryPressureLevel {
	available := GetAvailableMemoryMB()

	switch {
	case available < 100:
		return MemoryPressureCritical
	case available < 200:
		return MemoryPressureHigh
	case available < 400:
		return MemoryPressureMedium
	case available < 800:
		return MemoryPressureLow
	default:
		return MemoryPressureNone
	}
}

// String returns a human-readable description of memory pressure
func (m MemoryPressureLevel) String() string {
	switch m {
	case MemoryPressureNone:
		return "None"
	case MemoryPressureLow:
		return "Low"
	case MemoryPressureMedium:
		return "Medium"
	case MemoryPressureHigh:
		return "High"
	case MemoryPressureCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// ObserveMemory snapshots system memory and updates m's memory gauges. Safe
// to call on a ticker from the main loop; m may be nil, in which case this
// is a no-op (mirrors the manager package's nil-safe record helpers).
func ObserveMemory(m *Metrics) {
	if m == nil {
		return
	}
	m.MemoryAvailableMB.Set(float64(GetAvailableMemoryMB()))
	m.MemoryPressure.Set(float64(GetMemoryPressure()))
}

// LogMemorySnapshot logs a detailed memory snapshot
func LogMemorySnapshot() {
	sys := GetSystemMemory()
	goMem := GetGoMemory()
	pressure := GetMemoryPressure()

	logging.For("telemetry").Info().
		Uint64("total_mb", sys.TotalMB).
		Uint64("available_mb", sys.AvailableMB).
		Uint64("used_mb", sys.UsedMB).
		Uint64("free_mb", sys.FreeMB).
		Uint64("go_alloc_mb", goMem.AllocMB).
		Uint64("go_sys_mb", goMem.SysMB).
		Uint32("go_gc_runs", goMem.NumGC).
		Str("pressure", pressure.String()).
		Msg("memory snapshot")
}
