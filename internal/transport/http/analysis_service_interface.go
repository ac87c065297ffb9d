package http

import (
	"context"

	"stockpulse/pkg/contracts/domain"
)

// AnalysisServiceInterface is the service contract used by the analysis and
// cache handlers
type AnalysisServiceInterface interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error)
	CacheStats(ctx context.Context) (domain.CacheStats, error)
	CacheClear(ctx context.Context) (int, error)
}
