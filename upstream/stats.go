// Package upstream tracks the pool of configured vendor endpoints: their
// configuration, rolling health statistics, and the selection strategies
// that pick which endpoint serves a request.
package upstream

import (
	"sync"
	"time"
)

// Status classifies an upstream by its recent success rate.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusOffline   Status = "offline"
)

// Success-rate thresholds for status classification, in percent.
const (
	healthyThreshold  = 95
	degradedThreshold = 80
)

// Stats is the rolling request bookkeeping for one upstream. Safe for
// concurrent use.
type Stats struct {
	mu sync.Mutex

	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	totalTokens        int64
	avgResponseTime    time.Duration
	lastRequestAt      time.Time
	status             Status
}

func NewStats() *Stats {
	return &Stats{status: StatusHealthy}
}

// Record folds one request outcome into the stats and reclassifies the
// status: healthy at 95% success or better, degraded at 80%, unhealthy
// below that.
func (s *Stats) Record(success bool, tokens int64, responseTime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++
	if success {
		s.successfulRequests++
	} else {
		s.failedRequests++
	}
	s.totalTokens += tokens

	if s.totalRequests == 1 {
		s.avgResponseTime = responseTime
	} else {
		prev := s.avgResponseTime * time.Duration(s.totalRequests-1)
		s.avgResponseTime = (prev + responseTime) / time.Duration(s.totalRequests)
	}
	s.lastRequestAt = time.Now()

	rate := float64(s.successfulRequests) / float64(s.totalRequests) * 100
	switch {
	case rate >= healthyThreshold:
		s.status = StatusHealthy
	case rate >= degradedThreshold:
		s.status = StatusDegraded
	default:
		s.status = StatusUnhealthy
	}
}

// SuccessRate returns the success percentage, zero before any request.
func (s *Stats) SuccessRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalRequests == 0 {
		return 0
	}
	return float64(s.successfulRequests) / float64(s.totalRequests) * 100
}

func (s *Stats) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// MarkOffline overrides the classification until the next recorded
// request, used when a health check cannot reach the upstream.
func (s *Stats) MarkOffline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusOffline
}

func (s *Stats) TotalRequests() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalRequests
}

// Snapshot is a point-in-time copy of the stats for reporting.
type Snapshot struct {
	TotalRequests      int64         `json:"total_requests"`
	SuccessfulRequests int64         `json:"successful_requests"`
	FailedRequests     int64         `json:"failed_requests"`
	TotalTokens        int64         `json:"total_tokens"`
	SuccessRate        float64       `json:"success_rate"`
	AvgResponseTime    time.Duration `json:"avg_response_time"`
	LastRequestAt      time.Time     `json:"last_request_at"`
	Status             Status        `json:"status"`
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	rate := float64(0)
	if s.totalRequests > 0 {
		rate = float64(s.successfulRequests) / float64(s.totalRequests) * 100
	}
	return Snapshot{
		TotalRequests:      s.totalRequests,
		SuccessfulRequests: s.successfulRequests,
		FailedRequests:     s.failedRequests,
		TotalTokens:        s.totalTokens,
		SuccessRate:        rate,
		AvgResponseTime:    s.avgResponseTime,
		LastRequestAt:      s.lastRequestAt,
		Status:             s.status,
	}
}
