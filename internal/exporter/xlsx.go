package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"stockpulse/pkg/contracts/domain"
)

const (
	SheetMetrics     = "Metrics"
	SheetCorrelation = "Correlation"
	SheetFailures    = "Failures"
	historyPrefix    = "History "
)

// HistorySheet returns the sheet name holding a ticker's bars
func HistorySheet(ticker string) string {
	return historyPrefix + ticker
}

// WriteXLSX renders resp as a workbook
func WriteXLSX(w io.Writer, resp *domain.AnalysisResponse) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", SheetMetrics); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}
	if err := writeMetricsSheet(f, header, resp); err != nil {
		return err
	}

	if len(resp.CorrelationMatrix) > 0 {
		if err := writeCorrelationSheet(f, header, resp); err != nil {
			return err
		}
	}

	for _, ticker := range resp.SucceededTickers {
		bars, ok := resp.HistoricalData[ticker]
		if !ok {
			continue
		}
		if err := writeHistorySheet(f, header, ticker, bars); err != nil {
			return err
		}
	}

	if len(resp.FailedTickers) > 0 {
		if err := writeFailuresSheet(f, header, resp); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeMetricsSheet(f *excelize.File, header int, resp *domain.AnalysisResponse) error {
	if err := setHeader(f, SheetMetrics, header, metricsHeader); err != nil {
		return err
	}

	row := 2
	for _, ticker := range resp.SucceededTickers {
		m, ok := resp.Metrics[ticker]
		if !ok {
			continue
		}
		values := []interface{}{
			m.Ticker, m.TotalReturn, m.Volatility, m.AverageVolume,
			optional(m.SMA20), optional(m.SMA50), optional(m.SMA200),
			string(m.VolumeTrend), m.StartPrice, m.EndPrice, m.LatestClose, m.DataPoints,
		}
		if err := setRow(f, SheetMetrics, row, values); err != nil {
			return err
		}
		row++
	}
	return f.SetColWidth(SheetMetrics, "A", "L", 15)
}

func writeCorrelationSheet(f *excelize.File, header int, resp *domain.AnalysisResponse) error {
	if _, err := f.NewSheet(SheetCorrelation); err != nil {
		return fmt.Errorf("create %s sheet: %w", SheetCorrelation, err)
	}

	tickers := make([]string, 0, len(resp.SucceededTickers))
	for _, t := range resp.SucceededTickers {
		if _, ok := resp.CorrelationMatrix[t]; ok {
			tickers = append(tickers, t)
		}
	}

	if err := setHeader(f, SheetCorrelation, header, append([]string{""}, tickers...)); err != nil {
		return err
	}
	for i, a := range tickers {
		values := make([]interface{}, 0, len(tickers)+1)
		values = append(values, a)
		for _, b := range tickers {
			if v, ok := resp.CorrelationMatrix.Get(a, b); ok {
				values = append(values, v)
			} else {
				values = append(values, nil)
			}
		}
		if err := setRow(f, SheetCorrelation, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func writeHistorySheet(f *excelize.File, header int, ticker string, bars []domain.Bar) error {
	sheet := HistorySheet(ticker)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create %s sheet: %w", sheet, err)
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open stream writer for %s: %w", sheet, err)
	}
	if err := sw.SetRow("A1", []interface{}{
		excelize.Cell{StyleID: header, Value: "Date"},
		excelize.Cell{StyleID: header, Value: "Open"},
		excelize.Cell{StyleID: header, Value: "High"},
		excelize.Cell{StyleID: header, Value: "Low"},
		excelize.Cell{StyleID: header, Value: "Close"},
		excelize.Cell{StyleID: header, Value: "Volume"},
	}); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	for i, b := range bars {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, []interface{}{
			b.Timestamp.UTC().Format("2006-01-02 15:04"), b.Open, b.High, b.Low, b.Close, b.Volume,
		}); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", sheet, err)
	}
	return nil
}

func writeFailuresSheet(f *excelize.File, header int, resp *domain.AnalysisResponse) error {
	if _, err := f.NewSheet(SheetFailures); err != nil {
		return fmt.Errorf("create %s sheet: %w", SheetFailures, err)
	}
	if err := setHeader(f, SheetFailures, header, []string{"Ticker", "Reason"}); err != nil {
		return err
	}
	for i, t := range resp.FailedTickers {
		if err := setRow(f, SheetFailures, i+2, []interface{}{t, resp.Failures[t]}); err != nil {
			return err
		}
	}
	return nil
}

func setHeader(f *excelize.File, sheet string, style int, titles []string) error {
	values := make([]interface{}, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	if err := setRow(f, sheet, 1, values); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func optional(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

// Export writes resp in the given format
func Export(w io.Writer, format Format, resp *domain.AnalysisResponse) error {
	switch format {
	case FormatCSV:
		return WriteMetricsCSV(w, resp)
	case FormatXLSX:
		return WriteXLSX(w, resp)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
