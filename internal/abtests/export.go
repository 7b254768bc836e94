package abtests

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/pkg/response"
)

// testReport bundles everything an export needs.
type testReport struct {
	Test     *models.ABTest
	Variants []models.TestVariant
	Results  []models.TestResult
}

func (h *Handler) buildReport(c *gin.Context) (*testReport, bool) {
	user, ok := h.currentUser(c)
	if !ok {
		return nil, false
	}
	test, ok := h.loadTeamTest(c, user)
	if !ok {
		return nil, false
	}
	variants, err := h.repo.ListVariants(c.Request.Context(), test.ID)
	if err != nil {
		response.Internal(c, "failed to load variants")
		return nil, false
	}
	results, err := h.repo.ListResults(c.Request.Context(), test.ID)
	if err != nil {
		response.Internal(c, "failed to load results")
		return nil, false
	}
	return &testReport{Test: test, Variants: variants, Results: results}, true
}

// ExportCSV handles GET /abtests/:id/export/csv. Identical inputs always
// produce identical bytes: rows follow stored order and no wall-clock value
// is written.
func (h *Handler) ExportCSV(c *gin.Context) {
	report, ok := h.buildReport(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write([]string{"section", "variant", "metric", "value", "recorded_at"})
	for _, v := range report.Variants {
		w.Write([]string{"summary", v.Name, "impressions", strconv.FormatInt(v.Impressions, 10), ""})
		w.Write([]string{"summary", v.Name, "clicks", strconv.FormatInt(v.Clicks, 10), ""})
		w.Write([]string{"summary", v.Name, "views", strconv.FormatInt(v.Views, 10), ""})
		w.Write([]string{"summary", v.Name, "ctr", formatFloat(v.CTR), ""})
		w.Write([]string{"summary", v.Name, "is_winner", strconv.FormatBool(v.IsWinner), ""})
	}

	names := variantNames(report.Variants)
	for _, r := range report.Results {
		w.Write([]string{
			"timeseries",
			names[r.VariantID.String()],
			r.MetricType,
			formatFloat(r.Value),
			r.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		response.Internal(c, "failed to render csv")
		return
	}

	filename := fmt.Sprintf("abtest-%s.csv", report.Test.ID)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(200, "text/csv", buf.Bytes())
}

// ExportPDF handles GET /abtests/:id/export/pdf. The document creation date
// is pinned to the test's own timestamps so the bytes are reproducible.
func (h *Handler) ExportPDF(c *gin.Context) {
	report, ok := h.buildReport(c)
	if !ok {
		return
	}

	pdf, err := renderTestPDF(report, h.pdfAuthor)
	if err != nil {
		h.logger.Error("render test pdf", zap.Error(err))
		response.Internal(c, "failed to render pdf")
		return
	}

	filename := fmt.Sprintf("abtest-%s.pdf", report.Test.ID)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(200, "application/pdf", pdf)
}

func renderTestPDF(report *testReport, author string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	// Pin metadata time so identical inputs give identical bytes.
	doc.SetCreationDate(report.Test.CreatedAt.UTC())
	doc.SetModificationDate(report.Test.UpdatedAt.UTC())
	doc.SetAuthor(author, false)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.Cell(0, 10, "A/B Test Report")
	doc.Ln(12)

	doc.SetFont("Helvetica", "", 11)
	doc.Cell(0, 7, "Video: "+report.Test.VideoTitle)
	doc.Ln(7)
	doc.Cell(0, 7, fmt.Sprintf("Type: %s    Status: %s", report.Test.TestType, report.Test.Status))
	doc.Ln(7)
	if report.Test.StartDate != nil {
		doc.Cell(0, 7, "Started: "+report.Test.StartDate.UTC().Format(time.RFC3339))
		doc.Ln(7)
	}
	if report.Test.CompletedAt != nil {
		doc.Cell(0, 7, "Completed: "+report.Test.CompletedAt.UTC().Format(time.RFC3339))
		doc.Ln(7)
	}
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 11)
	for i, head := range []string{"Variant", "Impressions", "Clicks", "Views", "CTR", "Winner"} {
		width := 30.0
		if i == 0 {
			width = 25
		}
		doc.CellFormat(width, 8, head, "1", 0, "C", false, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 11)
	for _, v := range report.Variants {
		winner := ""
		if v.IsWinner {
			winner = "yes"
		}
		doc.CellFormat(25, 8, v.Name, "1", 0, "C", false, 0, "")
		doc.CellFormat(30, 8, strconv.FormatInt(v.Impressions, 10), "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 8, strconv.FormatInt(v.Clicks, 10), "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 8, strconv.FormatInt(v.Views, 10), "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 8, formatFloat(v.CTR), "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 8, winner, "1", 0, "C", false, 0, "")
		doc.Ln(-1)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func variantNames(variants []models.TestVariant) map[string]string {
	names := make(map[string]string, len(variants))
	for _, v := range variants {
		names[v.ID.String()] = v.Name
	}
	return names
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}
