package tier

import (
	"fmt"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// Detect classifies a device from its logical core count and memory size in
// gigabytes. Zero values mean unknown and do not influence the result.
func Detect(cores int, memoryGB float64) Tier {
	if (cores > 0 && cores <= 2) || (memoryGB > 0 && memoryGB <= 2) {
		return Low
	}
	if cores >= 8 && memoryGB >= 8 {
		return High
	}
	return Medium
}

// DetectHost classifies the machine the process runs on.
func DetectHost() (Tier, error) {
	cores, err := cpu.Counts(true)
	if err != nil {
		return Medium, fmt.Errorf("count cpus: %w", err)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return Medium, fmt.Errorf("read memory: %w", err)
	}

	return Detect(cores, float64(vm.Total)/(1<<30)), nil
}
