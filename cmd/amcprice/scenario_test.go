package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/meenmo/amclib/utils"
)

func TestLoadScenario(t *testing.T) {
	t.Parallel()

	s, err := LoadScenario("testdata/callable_swap.yaml")
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if s.ReferenceDate != "2026-03-02" {
		t.Fatalf("reference_date = %q, want 2026-03-02", s.ReferenceDate)
	}
	if len(s.Model.Currencies) != 1 || s.Model.Currencies[0].Code != "EUR" {
		t.Fatalf("unexpected currencies: %+v", s.Model.Currencies)
	}
	if len(s.Trade.Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(s.Trade.Legs))
	}

	cfg := s.EngineConfig()
	if cfg.Samples != 200 || cfg.Seed != 11 || cfg.PolynomialOrder != 2 {
		t.Fatalf("unexpected engine config: %+v", cfg)
	}
}

func TestBuildModelAndLegs(t *testing.T) {
	t.Parallel()

	s, err := LoadScenario("testdata/callable_swap.yaml")
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	reference, err := utils.ParseDate(s.ReferenceDate)
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}

	m, err := s.BuildModel(reference)
	if err != nil {
		t.Fatalf("BuildModel: %v", err)
	}
	if m.Dimension() != 1 {
		t.Fatalf("Dimension = %d, want 1", m.Dimension())
	}

	legs, err := s.BuildLegs(m)
	if err != nil {
		t.Fatalf("BuildLegs: %v", err)
	}
	if len(legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(legs))
	}
	// Annual fixed leg over 5 years, semiannual floating leg.
	if got := len(legs[0].Flows); got != 5 {
		t.Fatalf("fixed leg has %d coupons, want 5", got)
	}
	if got := len(legs[1].Flows); got != 10 {
		t.Fatalf("floating leg has %d coupons, want 10", got)
	}
	if !legs[1].Payer {
		t.Fatalf("floating leg should be the payer leg")
	}
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run([]string{"-scenario", "testdata/callable_swap.yaml"}, nil, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("run exited %d, stderr: %s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "underlying NPV (EUR)") || !strings.Contains(out, "option NPV") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRunRejectsMissingScenario(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if code := run(nil, nil, &stdout, &stderr); code != 2 {
		t.Fatalf("run without -scenario exited %d, want 2", code)
	}
	if code := run([]string{"-scenario", "testdata/absent.yaml"}, nil, &stdout, &stderr); code != 1 {
		t.Fatalf("run with absent file exited %d, want 1", code)
	}
}
