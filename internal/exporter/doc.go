// Package exporter renders an analysis response as a downloadable file.
//
// Two formats are supported:
//
// CSV: one row per succeeded ticker with its metrics, prefixed with a UTF-8
// BOM so spreadsheet applications detect the encoding.
//
// XLSX: a workbook with a Metrics sheet, a Correlation sheet and one
// History sheet per ticker, built with excelize.
//
// Example usage:
//
//	format, err := exporter.ParseFormat(r.URL.Query().Get("format"))
//	if err != nil {
//		return err
//	}
//	w.Header().Set("Content-Type", format.ContentType())
//	err = exporter.Export(w, format, resp)
package exporter
