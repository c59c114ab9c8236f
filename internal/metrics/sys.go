package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

var startedAt = time.Now()

// SysHealth is the process snapshot reported by /health.
type SysHealth struct {
	Uptime       string `json:"uptime"`
	AllocMB      uint64 `json:"allocMb"`
	SysMB        uint64 `json:"sysMb"`
	NumGC        uint32 `json:"numGc"`
	Goroutines   int    `json:"goroutines"`
	DataDiskSize string `json:"dataDiskSize"`
}

// GetSysHealth collects real-time health data. dataPath may be a file or a
// directory.
func GetSysHealth(dataPath string) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SysHealth{
		Uptime:       time.Since(startedAt).Round(time.Second).String(),
		AllocMB:      m.Alloc / 1024 / 1024,
		SysMB:        m.Sys / 1024 / 1024,
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
		DataDiskSize: humanSize(diskUsage(dataPath)),
	}
}

func diskUsage(path string) int64 {
	var size int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
