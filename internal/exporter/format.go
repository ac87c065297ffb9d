package exporter

import (
	"fmt"
	"strconv"
	"strings"

	"stockpulse/pkg/contracts/domain"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat resolves a format name. Empty defaults to XLSX.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename builds a download name such as analysis_AAPL-MSFT_2024-01-01_2024-03-01.xlsx
func Filename(resp *domain.AnalysisResponse, f Format) string {
	return fmt.Sprintf("analysis_%s_%s_%s.%s",
		strings.Join(resp.Tickers, "-"), resp.DateRange.Start, resp.DateRange.End, f)
}

// metricsHeader is shared by the CSV export and the Metrics sheet
var metricsHeader = []string{
	"Ticker", "Total Return %", "Volatility %", "Average Volume",
	"SMA 20", "SMA 50", "SMA 200", "Volume Trend",
	"Start Price", "End Price", "Latest Close", "Data Points",
}

func metricsRecord(m domain.MetricsResult) []string {
	return []string{
		m.Ticker,
		formatFloat(m.TotalReturn),
		formatFloat(m.Volatility),
		formatInt(m.AverageVolume),
		formatOptional(m.SMA20),
		formatOptional(m.SMA50),
		formatOptional(m.SMA200),
		string(m.VolumeTrend),
		formatFloat(m.StartPrice),
		formatFloat(m.EndPrice),
		formatFloat(m.LatestClose),
		strconv.Itoa(m.DataPoints),
	}
}

// formatFloat always uses two decimals so 13.4 renders as 13.40
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

// formatOptional renders an undefined value as an empty cell
func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}
