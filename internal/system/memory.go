package system

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Memory is a snapshot of host and process memory in bytes.
type Memory struct {
	Total      uint64
	Available  uint64
	ProcessRSS uint64
}

// MemoryReport samples host memory and the RSS of this process.
func MemoryReport() (Memory, error) {
	var m Memory
	vm, err := mem.VirtualMemory()
	if err != nil {
		return m, fmt.Errorf("read host memory: %w", err)
	}
	m.Total = vm.Total
	m.Available = vm.Available

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return m, fmt.Errorf("inspect process: %w", err)
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return m, fmt.Errorf("read process memory: %w", err)
	}
	m.ProcessRSS = info.RSS
	return m, nil
}

// FrameBytes is the size of one raw RGBA frame.
func FrameBytes(width, height int) uint64 {
	return uint64(width) * uint64(height) * 4
}

// MB formats a byte count in mebibytes.
func MB(b uint64) string {
	return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
}
