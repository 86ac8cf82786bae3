package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"gopower/domain/power"
)

// ReportWriter renders a completed analysis as an Excel workbook: one sheet
// per result table plus a means chart mirroring the plot artifact.
type ReportWriter struct{}

// NewReportWriter creates an Excel report writer
func NewReportWriter() *ReportWriter {
	return &ReportWriter{}
}

// Write renders the bundle and saves the workbook at path.
func (w *ReportWriter) Write(bundle *power.ResultBundle, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := w.writeEffects(f, bundle); err != nil {
		return err
	}
	if err := w.writeMultivariate(f, bundle); err != nil {
		return err
	}
	if err := w.writePairwise(f, bundle); err != nil {
		return err
	}
	if err := w.writeMarginalMeans(f, bundle); err != nil {
		return err
	}
	if err := w.writeMeans(f, bundle); err != nil {
		return err
	}

	// Drop the default sheet so the ANOVA table opens first.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to finalize workbook: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func (w *ReportWriter) writeEffects(f *excelize.File, bundle *power.ResultBundle) error {
	const sheet = "ANOVA Power"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []interface{}{"effect", "num_df", "den_df", "MSE", "F", "partial_eta_sq", "p_value", "cohen_f", "noncentrality", "critical_F", "power_pct"}
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}
	for i, eff := range bundle.MainEffects {
		row := []interface{}{eff.Effect, eff.NumDF, eff.DenDF, eff.MSE, eff.F, eff.PartialEtaSq, eff.PValue, eff.CohenF, eff.Lambda, eff.CriticalF, eff.Power}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "A", 18)
}

func (w *ReportWriter) writeMultivariate(f *excelize.File, bundle *power.ResultBundle) error {
	if len(bundle.Multivariate) == 0 {
		return nil
	}
	const sheet = "MANOVA Power"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []interface{}{"effect", "test", "statistic", "approx_F", "num_df", "den_df", "noncentrality", "critical_F", "power_pct"}
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}
	for i, mv := range bundle.Multivariate {
		row := []interface{}{mv.Effect, mv.Test, mv.Statistic, mv.ApproxF, mv.NumDF, mv.DenDF, mv.Lambda, mv.CriticalF, mv.Power}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "A", 18)
}

func (w *ReportWriter) writePairwise(f *excelize.File, bundle *power.ResultBundle) error {
	const sheet = "Pairwise"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []interface{}{"comparison", "paired", "effect_size", "power_pct"}
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}
	for i, p := range bundle.Pairwise {
		row := []interface{}{p.Label, p.Paired, p.EffectSize, p.Power}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "A", 24)
}

func (w *ReportWriter) writeMarginalMeans(f *excelize.File, bundle *power.ResultBundle) error {
	if len(bundle.MarginalMeans) == 0 {
		return nil
	}
	const sheet = "Marginal Means"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []interface{}{"contrast", "t_ratio", "df", "partial_eta_sq", "cohen_f", "noncentrality", "power_pct"}
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}
	for i, c := range bundle.MarginalMeans {
		row := []interface{}{c.Contrast, c.TRatio, c.DF, c.PartialEtaSq, c.CohenF, c.Lambda, c.Power}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "A", 24)
}

func (w *ReportWriter) writeMeans(f *excelize.File, bundle *power.ResultBundle) error {
	const sheet = "Means"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []interface{}{"cell", "n", "mean", "sd", "ci_lower", "ci_upper"}
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}
	for i, c := range bundle.Plot.Cells {
		row := []interface{}{c.Label, c.N, c.Mean, c.SD, c.CILower, c.CIUpper}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	last := len(bundle.Plot.Cells) + 1
	chart := excelize.Chart{
		Type:  excelize.Col,
		Title: []excelize.RichTextRun{{Text: bundle.Plot.Title}},
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$C$1", sheet),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheet, last),
			Values:     fmt.Sprintf("%s!$C$2:$C$%d", sheet, last),
		}},
	}
	if err := f.AddChart(sheet, "H2", &chart); err != nil {
		return fmt.Errorf("failed to add means chart: %w", err)
	}
	return f.SetColWidth(sheet, "A", "A", 18)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
