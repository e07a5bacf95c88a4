// Package report renders sprint reports as PDF.
package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/zulandar/sprintyard/internal/models"
	"github.com/zulandar/sprintyard/internal/scope"
	"github.com/zulandar/sprintyard/internal/sprint"
	"gorm.io/gorm"
)

// Data is everything printed in a sprint report.
type Data struct {
	Sprint   *models.Sprint
	Progress sprint.Progress
	Scope    scope.Result
	Issues   []models.Issue
}

// Load gathers the report data for a sprint.
func Load(db *gorm.DB, sprintID uint) (*Data, error) {
	s, err := sprint.Get(db, sprintID)
	if err != nil {
		return nil, err
	}
	p, err := sprint.ProgressOf(db, sprintID)
	if err != nil {
		return nil, err
	}
	st, err := scope.Status(db, sprintID)
	if err != nil {
		return nil, err
	}
	issues, err := sprint.Issues(db, sprintID)
	if err != nil {
		return nil, err
	}
	return &Data{Sprint: s, Progress: p, Scope: st, Issues: issues}, nil
}

// issue table column widths in mm; the page body is 190mm wide.
var columns = []struct {
	title string
	width float64
}{
	{"ID", 14}, {"Title", 92}, {"Type", 20}, {"Priority", 18}, {"Status", 28}, {"Points", 18},
}

// Write renders d as a one-section A4 PDF.
func Write(w io.Writer, d *Data) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(d.Sprint.Name), false)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr(fmt.Sprintf("Sprint Report: %s", d.Sprint.Name)))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	line := func(label, value string) {
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(45, 7, label)
		pdf.SetFont("Arial", "", 11)
		pdf.Cell(0, 7, tr(value))
		pdf.Ln(7)
	}
	line("Status", d.Sprint.Status)
	line("Dates", dateRange(d.Sprint))
	if d.Sprint.Goal != "" {
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(45, 7, "Goal")
		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 7, tr(d.Sprint.Goal), "", "", false)
	}
	pdf.Ln(4)

	// Points
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, "Scope")
	pdf.Ln(9)
	line("Capacity", fmt.Sprintf("%g pts", d.Sprint.CapacityStoryPoints))
	line("Committed", fmt.Sprintf("%g pts", d.Scope.Baseline))
	line("Current", fmt.Sprintf("%g pts", d.Progress.Points))
	line("Done", fmt.Sprintf("%g pts (%d of %d issues)", d.Progress.DonePoints, d.Progress.DoneCount, d.Progress.IssueCount))
	creep := "n/a (no baseline)"
	if !d.Scope.Skipped {
		creep = fmt.Sprintf("%.1f%% (threshold %.0f%%)", d.Scope.Ratio*100, d.Scope.Threshold*100)
	}
	line("Scope creep", creep)
	if d.Scope.Alerted {
		pdf.SetTextColor(229, 57, 53)
		line("Alert", "scope creep threshold exceeded")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(4)

	// Issues
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, "Issues")
	pdf.Ln(9)
	if len(d.Issues) == 0 {
		pdf.SetFont("Arial", "", 11)
		pdf.Cell(0, 8, "No issues in this sprint.")
		pdf.Ln(8)
	} else {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range columns {
			pdf.CellFormat(c.width, 7, c.title, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, is := range d.Issues {
			points := "-"
			if is.StoryPoints != nil {
				points = fmt.Sprintf("%g", *is.StoryPoints)
			}
			cells := []string{
				fmt.Sprintf("%d", is.ID),
				fit(pdf, tr(is.Title), columns[1].width-2),
				is.Type, is.Priority, is.Status, points,
			}
			for i, c := range columns {
				pdf.CellFormat(c.width, 7, cells[i], "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("report: render sprint %d: %w", d.Sprint.ID, err)
	}
	return nil
}

// Sprint loads and renders the report for sprintID.
func Sprint(db *gorm.DB, sprintID uint, w io.Writer) error {
	d, err := Load(db, sprintID)
	if err != nil {
		return err
	}
	return Write(w, d)
}

func dateRange(s *models.Sprint) string {
	start, end := "not set", "not set"
	if s.StartDate != nil {
		start = s.StartDate.Format("2006-01-02")
	}
	if s.EndDate != nil {
		end = s.EndDate.Format("2006-01-02")
	}
	return start + " to " + end
}

// fit shortens s with an ellipsis until it fits in width mm. s is already
// translated to the single-byte font encoding.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
