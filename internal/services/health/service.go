package health

import (
	"context"
	"sync"
	"time"
)

const checkTimeout = 3 * time.Second

// Checker is a dependency probed by the health endpoint.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Report is the health payload.
type Report struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// OK reports whether every check passed.
func (r Report) OK() bool {
	return r.Status == "OK"
}

// Service encapsulates health-related checks.
type Service struct {
	checkers []Checker
	now      func() time.Time
}

// NewService constructs a new health service.
func NewService(checkers ...Checker) *Service {
	return &Service{checkers: checkers, now: time.Now}
}

// Status runs all checks concurrently and summarizes them.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{Status: "OK", Timestamp: s.now().UTC()}
	if len(s.checkers) == 0 {
		return report
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	report.Checks = make(map[string]string, len(s.checkers))
	for _, c := range s.checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			result := "ok"
			if err := c.Check(ctx); err != nil {
				result = "error: " + err.Error()
			}
			mu.Lock()
			report.Checks[c.Name()] = result
			if result != "ok" {
				report.Status = "DEGRADED"
			}
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return report
}
