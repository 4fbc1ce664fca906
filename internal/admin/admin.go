/*
Package admin serves operational endpoints shared by every service.
*/
package admin

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"FuelLab_V2.0/internal/utility"
	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// StartTime is when the process started serving.
var StartTime = time.Now()

// cpuSampleWindow is how long CPU usage is measured for each request.
var cpuSampleWindow = 500 * time.Millisecond

const gigabyte = 1024 * 1024 * 1024

func gb(b uint64) string {
	return fmt.Sprintf("%.2f GB", float64(b)/gigabyte)
}

func percent(p float64) string {
	return fmt.Sprintf("%.2f%%", p)
}

// SystemHealthHandler reports host CPU, memory and disk usage along with runtime info.
// Sections whose probe fails are reported as unavailable instead of failing the request.
func SystemHealthHandler(c echo.Context) error {
	logger := utility.GetLogger(c)
	ctx := c.Request().Context()
	unavailable := map[string]interface{}{"status": "unavailable"}

	resp := map[string]interface{}{
		"status": "online",
	}

	// 1. Host/Runtime Info
	runtimeInfo := map[string]interface{}{
		"uptime":     time.Since(StartTime).Round(time.Second).String(),
		"start_time": StartTime.Format(time.RFC3339),
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}
	if hInfo, err := host.InfoWithContext(ctx); err == nil {
		runtimeInfo["os"] = hInfo.OS
		runtimeInfo["platform"] = hInfo.Platform
		runtimeInfo["arch"] = hInfo.KernelArch
		runtimeInfo["hostname"] = hInfo.Hostname
	} else {
		logger.Warn().Err(err).Msg("host info unavailable")
	}
	resp["runtime"] = runtimeInfo

	// 2. CPU Usage (sampled over cpuSampleWindow)
	if cpuPercent, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false); err == nil && len(cpuPercent) > 0 {
		resp["cpu"] = map[string]interface{}{
			"usage_percent": percent(cpuPercent[0]),
			"cores":         runtime.NumCPU(),
		}
	} else {
		logger.Warn().Err(err).Msg("cpu usage unavailable")
		resp["cpu"] = unavailable
	}

	// 3. Memory Stats
	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp["memory"] = map[string]interface{}{
			"total_gb":     gb(v.Total),
			"used_gb":      gb(v.Used),
			"used_percent": percent(v.UsedPercent),
			"free_gb":      gb(v.Free),
		}
	} else {
		logger.Warn().Err(err).Msg("memory stats unavailable")
		resp["memory"] = unavailable
	}

	// 4. Disk Stats (Root partition)
	if d, err := disk.UsageWithContext(ctx, "/"); err == nil {
		resp["disk"] = map[string]interface{}{
			"total_gb":     gb(d.Total),
			"used_gb":      gb(d.Used),
			"used_percent": percent(d.UsedPercent),
		}
	} else {
		logger.Warn().Err(err).Msg("disk stats unavailable")
		resp["disk"] = unavailable
	}

	return c.JSON(http.StatusOK, resp)
}
