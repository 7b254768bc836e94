package analytics

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/creatorhub/backend/internal/models"
)

const exportDate = "2006-01-02"

// VideoMetricsCSV renders cached per-day video metrics. Identical inputs
// always produce identical bytes: ordering comes from the input slice and no
// wall-clock value is written.
func VideoMetricsCSV(videoID string, points []models.AnalyticsPoint) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write([]string{"video_id", "date", "metric", "value"})
	for _, p := range points {
		w.Write([]string{
			videoID,
			p.Date.UTC().Format(exportDate),
			p.MetricType,
			strconv.FormatFloat(p.Value, 'f', 4, 64),
		})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ChannelMetricsCSV renders per-day channel metrics.
func ChannelMetricsCSV(history []models.ChannelMetrics) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write([]string{"date", "subscribers", "total_views", "total_watch_time_minutes", "average_view_duration_seconds"})
	for _, m := range history {
		w.Write([]string{
			m.Date.UTC().Format(exportDate),
			strconv.FormatInt(m.Subscribers, 10),
			strconv.FormatInt(m.TotalViews, 10),
			strconv.FormatInt(m.TotalWatchTime, 10),
			strconv.FormatFloat(m.AverageViewDuration, 'f', 2, 64),
		})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// VideoMetricsPDF renders a video metrics report. The document creation date
// is pinned to the end of the requested range so the bytes are reproducible.
func VideoMetricsPDF(videoID string, start, end time.Time, points []models.AnalyticsPoint, author string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCreationDate(end.UTC())
	doc.SetModificationDate(end.UTC())
	doc.SetAuthor(author, false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.Cell(0, 10, "Video Analytics Report")
	doc.Ln(12)

	doc.SetFont("Helvetica", "", 11)
	doc.Cell(0, 7, "Video: "+videoID)
	doc.Ln(7)
	doc.Cell(0, 7, "Range: "+start.UTC().Format(exportDate)+" to "+end.UTC().Format(exportDate))
	doc.Ln(10)

	doc.SetFont("Helvetica", "B", 11)
	doc.CellFormat(35, 8, "Date", "1", 0, "C", false, 0, "")
	doc.CellFormat(60, 8, "Metric", "1", 0, "C", false, 0, "")
	doc.CellFormat(40, 8, "Value", "1", 0, "C", false, 0, "")
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 10)
	for _, p := range points {
		doc.CellFormat(35, 7, p.Date.UTC().Format(exportDate), "1", 0, "C", false, 0, "")
		doc.CellFormat(60, 7, p.MetricType, "1", 0, "L", false, 0, "")
		doc.CellFormat(40, 7, strconv.FormatFloat(p.Value, 'f', 2, 64), "1", 0, "R", false, 0, "")
		doc.Ln(-1)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ChannelMetricsPDF renders a channel metrics report with the same
// reproducibility rules as VideoMetricsPDF.
func ChannelMetricsPDF(channelID string, start, end time.Time, history []models.ChannelMetrics, author string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCreationDate(end.UTC())
	doc.SetModificationDate(end.UTC())
	doc.SetAuthor(author, false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.Cell(0, 10, "Channel Analytics Report")
	doc.Ln(12)

	doc.SetFont("Helvetica", "", 11)
	doc.Cell(0, 7, "Channel: "+channelID)
	doc.Ln(7)
	doc.Cell(0, 7, "Range: "+start.UTC().Format(exportDate)+" to "+end.UTC().Format(exportDate))
	doc.Ln(10)

	doc.SetFont("Helvetica", "B", 10)
	for _, head := range []string{"Date", "Subscribers", "Views", "Watch min", "Avg sec"} {
		doc.CellFormat(36, 8, head, "1", 0, "C", false, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 10)
	for _, m := range history {
		doc.CellFormat(36, 7, m.Date.UTC().Format(exportDate), "1", 0, "C", false, 0, "")
		doc.CellFormat(36, 7, strconv.FormatInt(m.Subscribers, 10), "1", 0, "R", false, 0, "")
		doc.CellFormat(36, 7, strconv.FormatInt(m.TotalViews, 10), "1", 0, "R", false, 0, "")
		doc.CellFormat(36, 7, strconv.FormatInt(m.TotalWatchTime, 10), "1", 0, "R", false, 0, "")
		doc.CellFormat(36, 7, strconv.FormatFloat(m.AverageViewDuration, 'f', 1, 64), "1", 0, "R", false, 0, "")
		doc.Ln(-1)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
