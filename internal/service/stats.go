package service

import (
	"fmt"
	"sync/atomic"
	"time"
)

// StatsService counts successful deliveries since process start.
// It is shared by every pipeline execution and the /stats command.
type StatsService struct {
	downloads atomic.Int64
	startedAt time.Time
	now       func() time.Time
}

// NewStatsService creates a stats service whose uptime starts now.
func NewStatsService() *StatsService {
	return &StatsService{startedAt: time.Now(), now: time.Now}
}

// RecordDelivery increments the delivery counter.
func (s *StatsService) RecordDelivery() int64 {
	return s.downloads.Add(1)
}

// Downloads returns the number of successful deliveries.
func (s *StatsService) Downloads() int64 {
	return s.downloads.Load()
}

// StartedAt returns the process start time.
func (s *StatsService) StartedAt() time.Time {
	return s.startedAt
}

// Uptime returns the time elapsed since start.
func (s *StatsService) Uptime() time.Duration {
	return s.now().Sub(s.startedAt)
}

// FormatUptime renders a duration as "1d 2h 3m 4s".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}
