// Package report renders a completed power analysis as markdown and HTML.
// The markdown form is the canonical human-readable artifact; HTML is a
// straight rendering of it for the API surface.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"gopower/domain/power"
)

// Markdown builds the full markdown report for one analysis.
func Markdown(bundle *power.ResultBundle) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Power Analysis %s\n\n", bundle.ID)
	fmt.Fprintf(&b, "Design `%s`, n = %d per cell, alpha = %g.\n\n",
		bundle.Design.Code, bundle.Design.N, bundle.Alpha)

	b.WriteString("## ANOVA power\n\n")
	b.WriteString("| Effect | df1 | df2 | MSE | F | partial eta^2 | p | Cohen's f | lambda | power (%) |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|---|---|\n")
	for _, eff := range bundle.MainEffects {
		fmt.Fprintf(&b, "| %s | %s | %s | %.4f | %.4f | %.4f | %.4g | %.4f | %s | %.2f |\n",
			eff.Effect, num(eff.NumDF), num(eff.DenDF), eff.MSE, eff.F,
			eff.PartialEtaSq, eff.PValue, eff.CohenF, num(eff.Lambda), eff.Power)
	}
	b.WriteString("\n")

	if len(bundle.Multivariate) > 0 {
		b.WriteString("## MANOVA power\n\n")
		b.WriteString("| Effect | Test | Statistic | approx F | df1 | df2 | lambda | power (%) |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|\n")
		for _, mv := range bundle.Multivariate {
			fmt.Fprintf(&b, "| %s | %s | %.4f | %.4f | %s | %s | %s | %.2f |\n",
				mv.Effect, mv.Test, mv.Statistic, mv.ApproxF,
				num(mv.NumDF), num(mv.DenDF), num(mv.Lambda), mv.Power)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Pairwise comparisons\n\n")
	b.WriteString("Uncorrected per-comparison power; no multiplicity adjustment is applied.\n\n")
	b.WriteString("| Comparison | Paired | Effect size | power (%) |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, p := range bundle.Pairwise {
		fmt.Fprintf(&b, "| %s | %t | %.4f | %.2f |\n", p.Label, p.Paired, p.EffectSize, p.Power)
	}
	b.WriteString("\n")

	if len(bundle.MarginalMeans) > 0 {
		b.WriteString("## Marginal-means contrasts\n\n")
		b.WriteString("| Contrast | t | df | partial eta^2 | power (%) |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, c := range bundle.MarginalMeans {
			fmt.Fprintf(&b, "| %s | %.4f | %s | %.4f | %.2f |\n",
				c.Contrast, c.TRatio, num(c.DF), c.PartialEtaSq, c.Power)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Cell means\n\n")
	b.WriteString("| Cell | n | Mean | SD | 95% CI |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, c := range bundle.Plot.Cells {
		fmt.Fprintf(&b, "| %s | %d | %.4f | %.4f | [%.4f, %.4f] |\n",
			c.Label, c.N, c.Mean, c.SD, c.CILower, c.CIUpper)
	}

	return b.String()
}

// HTML renders the markdown report to a standalone HTML fragment.
func HTML(bundle *power.ResultBundle) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	doc := p.Parse([]byte(Markdown(bundle)))
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.Render(doc, renderer)
}

// num formats a possibly-fractional degree of freedom or noncentrality
// without trailing decimal noise on whole numbers.
func num(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return fmt.Sprintf("%g", v)
	}
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.3f", v)
}
