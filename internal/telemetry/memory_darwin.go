//go:build darwin
// +build darwin

package telemetry

import (
	"runtime"
	"time"

	"tapescrub/internal/logging"
)

// GetSystemMemory retrieves current system memory information on macOS
// Uses Go runtime stats as syscall.Sysinfo is not available on Darwin
func GetSystemMemory() MemorySnapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	// On macOS, we use Go's runtime stats as approximation
	// This gives us process memory, not system-wide, but it's useful for monitoring
	allocMB := m.Alloc / (1024 * 1024)
	sysMB := m.Sys / (1024 * 1024)

	// Rough approximation: assume a 2GB system budget when no better source
	// is available. A real deployment would shell out to sysctl/vm_stat.
	totalMB := uint64(2048)
	usedMB := sysMB
	freeMB := totalMB - usedMB
	availableMB := freeMB

	if availableMB > totalMB {
		availableMB = totalMB / 2 // Fallback to 50% available
	}

	logging.For("telemetry").Debug().
		Uint64("alloc_mb", allocMB).
		Uint64("sys_mb", sysMB).
		Msg("system memory read via go runtime stats (darwin approximation)")

	return MemorySnapshot{
		Timestamp:   time.Now(),
		TotalMB:     totalMB,
		AvailableMB: availableMB,
		UsedMB:      usedMB,
		FreeMB:      freeMB,
	}
}
