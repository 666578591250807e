package core

import (
	"errors"
	"testing"
)

func TestParsePeriod(t *testing.T) {
	cases := []struct {
		in  string
		out Period
		ok  bool
	}{
		{"2026-03", Period{2026, 3}, true},
		{" 2026-12 ", Period{2026, 12}, true},
		{"2026-3", Period{}, false},
		{"2026-13", Period{}, false},
		{"2026-00", Period{}, false},
		{"26-03", Period{}, false},
		{"2026/03", Period{}, false},
		{"", Period{}, false},
		{"2026-+1", Period{}, false},
		{"+202-01", Period{}, false},
		{"2026--1", Period{}, false},
		{"2026- 1", Period{}, false},
		{"0000-01", Period{}, false},
	}
	for _, tc := range cases {
		got, err := ParsePeriod(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidPeriod) {
			t.Fatalf("%q expected ErrInvalidPeriod, got %v", tc.in, err)
		}
	}
}

func TestPeriodStringRoundTrip(t *testing.T) {
	p := NewPeriod(2026, 2)
	if p.String() != "2026-02" {
		t.Fatalf("String() = %q", p.String())
	}
	back, err := ParsePeriod(p.String())
	if err != nil || back != p {
		t.Fatalf("round trip failed: %v %v", back, err)
	}
}

func TestPeriodAddMonthsRollsYear(t *testing.T) {
	start := NewPeriod(2026, 11)
	want := []Period{{2026, 11}, {2026, 12}, {2027, 1}, {2027, 2}}
	for i, w := range want {
		if got := start.AddMonths(i); got != w {
			t.Fatalf("AddMonths(%d) = %v, want %v", i, got, w)
		}
	}
	if got := NewPeriod(2026, 1).AddMonths(-1); got != (Period{2025, 12}) {
		t.Fatalf("AddMonths(-1) = %v", got)
	}
}

func TestPeriodBefore(t *testing.T) {
	if !NewPeriod(2025, 12).Before(NewPeriod(2026, 1)) {
		t.Fatal("expected Dec 2025 before Jan 2026")
	}
	if NewPeriod(2026, 1).Before(NewPeriod(2026, 1)) {
		t.Fatal("a period is not before itself")
	}
}

func TestPeriodLabels(t *testing.T) {
	p := NewPeriod(2027, 1)
	if p.Label() != "Jan 2027" {
		t.Fatalf("Label() = %q", p.Label())
	}
	if p.MonthName() != "January" {
		t.Fatalf("MonthName() = %q", p.MonthName())
	}
}
