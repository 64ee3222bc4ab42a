package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// CheckFunc checks one component. It returns nil when the component is
// healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// Status is the outcome of a single check.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
)

// Overall report statuses.
const (
	ReportHealthy  = "healthy"
	ReportDegraded = "degraded"
)

// DefaultTimeout is used when New is given a zero timeout.
const DefaultTimeout = 5 * time.Second

// Result is the outcome of one named check.
type Result struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"-"`
}

// MarshalJSON reports Duration in milliseconds.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		Duration int64 `json:"duration_ms"`
	}{plain(r), r.Duration.Milliseconds()})
}

// Report is the aggregated outcome of a Run.
type Report struct {
	Status    string    `json:"status"`
	Results   []Result  `json:"results"`
	Timestamp time.Time `json:"timestamp"`
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	return r.Status == ReportHealthy
}

// Err joins one error per check that did not pass, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		switch res.Status {
		case StatusOK:
		case StatusTimeout:
			errs = append(errs, fmt.Errorf("%s: %w", res.Name, ErrCheckTimeout))
		default:
			errs = append(errs, fmt.Errorf("%s: %s", res.Name, res.Message))
		}
	}
	return errors.Join(errs...)
}

// ErrCheckTimeout is reported for checks that exceed the checker timeout.
var ErrCheckTimeout = errors.New("health check timeout")

// Checker runs registered component checks. It is safe for concurrent use.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
	now     func() time.Time
}

// New creates a checker that gives each check timeout to finish. A zero
// timeout means DefaultTimeout.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
		now:     time.Now,
	}
}

// Register adds or replaces the check for name.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Unregister removes the check for name.
func (c *Checker) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Names returns the registered check names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run executes every registered check concurrently and waits for all of
// them. With no checks registered the report is healthy.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make([]Result, 0, len(checks))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.runCheck(ctx, name, check)

			resultsMu.Lock()
			results = append(results, res)
			resultsMu.Unlock()
		}()
	}
	wg.Wait()

	slices.SortFunc(results, func(a, b Result) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})

	status := ReportHealthy
	for _, res := range results {
		if res.Status != StatusOK {
			status = ReportDegraded
			break
		}
	}

	return Report{
		Status:    status,
		Results:   results,
		Timestamp: c.now(),
	}
}

// runCheck executes check with the checker timeout. A panicking check is
// reported as failed.
func (c *Checker) runCheck(ctx context.Context, name string, check CheckFunc) Result {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("panic: %v", r)
			}
		}()
		errCh <- check(checkCtx)
	}()

	select {
	case err := <-errCh:
		res := Result{Name: name, Status: StatusOK, Duration: time.Since(start)}
		if err != nil {
			res.Status = StatusFailed
			res.Message = err.Error()
		}
		return res
	case <-checkCtx.Done():
		return Result{
			Name:     name,
			Status:   StatusTimeout,
			Message:  ErrCheckTimeout.Error(),
			Duration: time.Since(start),
		}
	}
}
