package editor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/domain/topology"
)

// runDevicePoller refreshes device statuses on the configured cadence. The
// interval is re-read every cycle so a config reload takes effect without
// restarting the session.
func (s *Session) runDevicePoller(ctx context.Context) {
	defer s.done.Done()
	for {
		interval := s.cfg().DevicePollInterval
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			s.pollDevices(ctx)
		}
	}
}

// pollDevices fans one stats fetch out per device node and folds the
// results back into the graph as a single reconciliation step. A device
// whose fetch fails reports unknown; the cycle itself never aborts on
// individual failures.
func (s *Session) pollDevices(ctx context.Context) {
	s.mu.Lock()
	devices := s.graph.DeviceNodes()
	autoDetect := s.autoDetect
	s.mu.Unlock()

	if len(devices) == 0 {
		return
	}

	window := s.cfg().LivenessWindow
	reports := make([]topology.DeviceReport, len(devices))
	var wg sync.WaitGroup
	for i, device := range devices {
		wg.Add(1)
		go func(i int, nodeID, deviceName string) {
			defer wg.Done()
			reports[i] = s.fetchDeviceReport(ctx, nodeID, deviceName, window)
		}(i, device.ID, device.Data.(topology.DeviceData).DeviceName)
	}
	wg.Wait()

	select {
	case <-ctx.Done():
		return
	default:
	}

	s.mu.Lock()
	s.graph.ApplyDeviceReports(reports, autoDetect)
	s.mu.Unlock()

	if s.collectors != nil {
		s.collectors.PollCycles.WithLabelValues("success").Inc()
	}
}

func (s *Session) fetchDeviceReport(ctx context.Context, nodeID, deviceName string, window time.Duration) topology.DeviceReport {
	callCtx, cancel := context.WithTimeout(ctx, window/10+time.Second)
	defer cancel()

	stats, err := s.api.LastStats(callCtx, s.token, deviceName)
	if err != nil {
		if s.collectors != nil {
			s.collectors.PollDeviceErrors.Inc()
		}
		s.logger.Debug("device stats fetch failed",
			zap.String("device", deviceName), zap.Error(err))
		return topology.DeviceReport{NodeID: nodeID, Status: topology.StatusUnknown}
	}

	report := topology.DeviceReport{NodeID: nodeID, Status: topology.StatusOffline, IP: stats.IP}
	if stats.FreshWithin(window, time.Now()) {
		report.Status = topology.StatusOnline
		// Only live devices vouch for their gateway; a silent device must
		// not keep a stale router on the canvas.
		report.Gateway = stats.Gateway
	}
	return report
}

// runAlertPoller refreshes fired-rule highlights on the configured cadence.
func (s *Session) runAlertPoller(ctx context.Context) {
	defer s.done.Done()
	for {
		interval := s.cfg().AlertPollInterval
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			s.pollAlerts(ctx)
		}
	}
}

// pollAlerts applies the current alert window. On fetch failure the previous
// highlights stand; a transient upstream error should not blank the canvas.
func (s *Session) pollAlerts(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	recent, err := s.api.RecentAlerts(callCtx, s.token)
	if err != nil {
		if s.collectors != nil {
			s.collectors.AlertCycles.WithLabelValues("error").Inc()
		}
		s.logger.Debug("alert fetch failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.graph.ApplyRecentAlerts(recent)
	s.mu.Unlock()

	if s.collectors != nil {
		s.collectors.AlertCycles.WithLabelValues("success").Inc()
	}
}
