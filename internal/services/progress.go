package services

import "time"

// WebSocketHub broadcasts typed messages to connected clients
type WebSocketHub interface {
	Broadcast(messageType string, data interface{})
}

// Progress message types
const (
	MessageAnalysisStage   = "analysis_stage"
	MessageTickerProgress  = "ticker_progress"
	MessageTickerCompleted = "ticker_complete"
	MessageTickerError     = "ticker_error"
)

// ProgressReporter turns analysis state changes into hub broadcasts. A nil
// reporter discards everything.
type ProgressReporter struct {
	hub WebSocketHub
}

// NewProgressReporter creates a reporter on hub
func NewProgressReporter(hub WebSocketHub) *ProgressReporter {
	return &ProgressReporter{hub: hub}
}

// Stage announces a request-level state transition
func (p *ProgressReporter) Stage(requestID string, stage Stage) {
	if p == nil || p.hub == nil {
		return
	}
	p.hub.Broadcast(MessageAnalysisStage, map[string]interface{}{
		"request_id": requestID,
		"stage":      string(stage),
		"timestamp":  time.Now().UTC(),
	})
}

// TickerStage announces that ticker entered stage
func (p *ProgressReporter) TickerStage(requestID, ticker string, stage Stage) {
	if p == nil || p.hub == nil {
		return
	}
	p.hub.Broadcast(MessageTickerProgress, map[string]interface{}{
		"request_id": requestID,
		"ticker":     ticker,
		"stage":      string(stage),
		"status":     "active",
	})
}

// TickerDone announces a ticker whose metrics are ready
func (p *ProgressReporter) TickerDone(requestID, ticker string, points int) {
	if p == nil || p.hub == nil {
		return
	}
	p.hub.Broadcast(MessageTickerCompleted, map[string]interface{}{
		"request_id":  requestID,
		"ticker":      ticker,
		"status":      "completed",
		"data_points": points,
	})
}

// TickerFailed announces a ticker dropped from the analysis
func (p *ProgressReporter) TickerFailed(requestID, ticker string, stage Stage, err error) {
	if p == nil || p.hub == nil {
		return
	}
	p.hub.Broadcast(MessageTickerError, map[string]interface{}{
		"request_id": requestID,
		"ticker":     ticker,
		"stage":      string(stage),
		"status":     "failed",
		"error":      err.Error(),
	})
}
