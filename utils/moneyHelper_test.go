package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound2_HalfUp(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"10.005", "10.01"},
		{"10.004", "10"},
		{"19.999999999", "20"},
		{"-10.005", "-10.01"},
		{"0", "0"},
		{"123.456", "123.46"},
	}
	for _, tc := range cases {
		d := decimal.RequireFromString(tc.in)
		got := Round2(d)
		if got.String() != tc.expected {
			t.Fatalf("Round2(%s) expected %s, got %s", tc.in, tc.expected, got.String())
		}
	}
}

func TestCalculateTaxFromRate(t *testing.T) {
	cases := []struct {
		subtotal      string
		rate          string
		expectedTax   string
		expectedTotal string
	}{
		{"100", "18", "18", "118"},
		{"100", "0", "0", "100"},
		{"33.33", "18", "6", "39.33"},
		{"0.01", "18", "0", "0.01"},
		{"1000", "8", "80", "1080"},
	}
	for _, tc := range cases {
		tax, total := CalculateTaxFromRate(
			decimal.RequireFromString(tc.subtotal),
			decimal.RequireFromString(tc.rate),
		)
		if tax.String() != tc.expectedTax {
			t.Fatalf("CalculateTaxFromRate(%s, %s) tax expected %s, got %s",
				tc.subtotal, tc.rate, tc.expectedTax, tax.String())
		}
		if total.String() != tc.expectedTotal {
			t.Fatalf("CalculateTaxFromRate(%s, %s) total expected %s, got %s",
				tc.subtotal, tc.rate, tc.expectedTotal, total.String())
		}
	}
}

func TestCalculateTotalFromTax(t *testing.T) {
	total := CalculateTotalFromTax(
		decimal.RequireFromString("82"),
		decimal.RequireFromString("18"),
	)
	if total.String() != "100" {
		t.Fatalf("expected 100, got %s", total.String())
	}

	// Unrounded inputs still produce a 2-decimal total.
	total = CalculateTotalFromTax(
		decimal.RequireFromString("10.005"),
		decimal.RequireFromString("1.8009"),
	)
	if total.String() != "11.81" {
		t.Fatalf("expected 11.81, got %s", total.String())
	}
}

func TestWithinTolerance(t *testing.T) {
	a := decimal.RequireFromString("100.00")
	if !WithinTolerance(a, decimal.RequireFromString("100.01")) {
		t.Fatal("difference of exactly 0.01 should be within tolerance")
	}
	if WithinTolerance(a, decimal.RequireFromString("100.02")) {
		t.Fatal("difference of 0.02 should be outside tolerance")
	}
	if !WithinTolerance(a, a) {
		t.Fatal("equal values should be within tolerance")
	}
}
