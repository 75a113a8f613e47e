// Package health reports service readiness.
package health

import "context"

// Status values reported by Check.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// keywordChecker reports keyword backend reachability.
type keywordChecker interface {
	HealthCheck(ctx context.Context) bool
}

// semanticChecker reports semantic backend configuration and reachability.
type semanticChecker interface {
	IsEnabled() bool
	HealthCheck(ctx context.Context) bool
}

// Report is the health check result.
type Report struct {
	Status   string `json:"status"`
	Keyword  bool   `json:"keyword"`
	Semantic bool   `json:"semantic"`
	Version  string `json:"version"`
}

// Service performs health checks.
type Service struct {
	keyword  keywordChecker
	semantic semanticChecker
	version  string
}

// New creates a health service.
func New(kw keywordChecker, sem semanticChecker, version string) *Service {
	return &Service{keyword: kw, semantic: sem, version: version}
}

// Check probes the backends. The keyword backend is load-bearing: when it is
// down the whole service is down. A disabled or unreachable semantic backend
// is a degraded but working deployment.
func (s *Service) Check(ctx context.Context) Report {
	report := Report{
		Keyword:  s.keyword.HealthCheck(ctx),
		Semantic: s.semantic.IsEnabled() && s.semantic.HealthCheck(ctx),
		Version:  s.version,
	}

	switch {
	case !report.Keyword:
		report.Status = StatusError
	case !report.Semantic:
		report.Status = StatusDegraded
	default:
		report.Status = StatusOK
	}
	return report
}
