//go:build !windows

package handler

import (
	"sync"
	"syscall"
	"time"
)

// CPU tracking state for calculating delta between polls
var (
	cpuMu          sync.Mutex
	lastCPUTime    time.Duration // user + system time
	lastWallTime   time.Time
	cpuInitialized bool
)

// getCPUUsage returns the CPU usage percentage for this process since the
// last call, capped at one core.
func getCPUUsage() float64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}

	userTime := time.Duration(rusage.Utime.Sec)*time.Second + time.Duration(rusage.Utime.Usec)*time.Microsecond
	sysTime := time.Duration(rusage.Stime.Sec)*time.Second + time.Duration(rusage.Stime.Usec)*time.Microsecond
	total := userTime + sysTime

	now := time.Now()

	cpuMu.Lock()
	defer cpuMu.Unlock()

	if !cpuInitialized {
		lastCPUTime = total
		lastWallTime = now
		cpuInitialized = true
		return 0
	}

	cpuDelta := total - lastCPUTime
	wallDelta := now.Sub(lastWallTime)
	lastCPUTime = total
	lastWallTime = now

	if wallDelta <= 0 {
		return 0
	}

	pct := float64(cpuDelta) / float64(wallDelta) * 100
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}
