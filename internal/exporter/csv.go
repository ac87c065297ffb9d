package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"stockpulse/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteMetricsCSV writes one row per succeeded ticker in request order
func WriteMetricsCSV(w io.Writer, resp *domain.AnalysisResponse) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(metricsHeader); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	rows := 0
	for _, ticker := range resp.SucceededTickers {
		m, ok := resp.Metrics[ticker]
		if !ok {
			continue
		}
		if err := writer.Write(metricsRecord(m)); err != nil {
			return fmt.Errorf("failed to write record for %s: %w", ticker, err)
		}
		rows++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	slog.Debug("metrics CSV written",
		slog.String("request_id", resp.RequestID),
		slog.Int("record_count", rows))
	return nil
}
