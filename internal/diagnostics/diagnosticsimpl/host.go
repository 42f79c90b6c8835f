package diagnosticsimpl

import (
	"context"

	"github.com/orgball2608/insta-downloader-client/internal/domain"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

func collectHostInfo(ctx context.Context) (*domain.HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, err
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		MemoryTotal:     vm.Total,
		MemoryUsed:      vm.Used,
		MemoryUsedPct:   vm.UsedPercent,
	}, nil
}
