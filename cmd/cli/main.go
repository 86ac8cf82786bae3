package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"gopower/adapters/excel"
	"gopower/adapters/stats/anova"
	"gopower/adapters/stats/emmeans"
	"gopower/app"
	"gopower/domain/design"
	"gopower/domain/power"
	"gopower/internal"
	"gopower/internal/report"
)

func main() {
	designCode := flag.String("design", "", "design code, e.g. 2b*2w")
	names := flag.String("factors", "", "comma-separated factor names (optional)")
	n := flag.Int("n", 0, "sample size per cell")
	mu := flag.String("mu", "", "comma-separated cell means")
	sd := flag.String("sd", "", "comma-separated cell standard deviations (or one value)")
	r := flag.Float64("r", 0, "correlation between within-subject cells")
	alpha := flag.Float64("alpha", 0.05, "significance level")
	correction := flag.String("correction", "none", "sphericity correction: none, gg, hf")
	emm := flag.Bool("emm", false, "run the marginal-means contrast pass")
	emmModel := flag.String("emm-model", "univariate", "marginal-means model: univariate, multivariate")
	contrast := flag.String("contrast", "pairwise", "contrast family: pairwise, revpairwise, consec, poly, eff")
	emmComp := flag.String("emm-comp", "", "grouping factors for marginal means, e.g. a+b")
	seed := flag.Int64("seed", 1, "synthesis seed")
	xlsxOut := flag.String("xlsx", "", "write an Excel report to this path")
	flag.Parse()

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	if *designCode == "" || *n == 0 || *mu == "" || *sd == "" {
		flag.Usage()
		os.Exit(2)
	}

	spec, err := design.New(design.Params{
		Code:        *designCode,
		FactorNames: splitNames(*names),
		N:           *n,
		Mu:          mustFloats("mu", *mu),
		SD:          mustFloats("sd", *sd),
		R:           *r,
	})
	if err != nil {
		log.Fatalf("Invalid design: %v", err)
	}

	opts := power.Options{
		Alpha:      *alpha,
		Correction: power.Correction(*correction),
		EMM:        *emm,
		EMMModel:   power.EMMModel(*emmModel),
		Contrast:   power.ContrastType(*contrast),
		EMMComp:    *emmComp,
		Seed:       *seed,
	}
	if !*emm {
		opts.EMMModel = ""
		opts.Contrast = ""
	}

	service := app.NewExactPowerService(anova.NewFitter(), emmeans.NewEngine(), internal.NewDefaultLogger())
	bundle, err := service.Run(context.Background(), app.ExactPowerRequest{Design: spec, Options: opts})
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	fmt.Print(report.Markdown(bundle))

	if *xlsxOut != "" {
		if err := excel.NewReportWriter().Write(bundle, *xlsxOut); err != nil {
			log.Fatalf("Excel report failed: %v", err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", *xlsxOut)
	}
}

func splitNames(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func mustFloats(name, s string) []float64 {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			log.Fatalf("Invalid %s value %q", name, p)
		}
		out = append(out, v)
	}
	return out
}
