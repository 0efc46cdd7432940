package server

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
)

// acceptsPerCPU is the number of standing accepts per logical CPU in
// low-latency mode.
const acceptsPerCPU = 10

// logicalCPUs returns the number of logical processors, falling back to the
// Go runtime's view when the host cannot be queried.
func logicalCPUs() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// standingAccepts returns how many accepts the server keeps outstanding.
func standingAccepts(lowLatency bool, cpus int) int {
	if !lowLatency {
		return 1
	}
	if cpus < 1 {
		cpus = 1
	}
	return acceptsPerCPU * cpus
}
