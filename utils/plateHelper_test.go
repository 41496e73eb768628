package utils

import "testing"

func TestExtractPlate_LabeledDescriptions(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"Flete de carga PLACA: ABC-123 Lima-Callao", "ABC123"},
		{"SERVICIO DE TRANSPORTE PLACA ABC-123", "ABC123"},
		{"placa:XJ-4821 traslado de mercaderia", "XJ4821"},
		{"TRANSPORTE DE CARGA PLACA # B7C-829", "B7C829"},
		{"<p>Flete PLACA: <b>ABC-123</b></p>", "ABC123"},
	}
	for _, tc := range cases {
		got, ok := ExtractPlate(tc.in)
		if !ok {
			t.Fatalf("ExtractPlate(%q) expected %s, got none", tc.in, tc.expected)
		}
		if got != tc.expected {
			t.Fatalf("ExtractPlate(%q) expected %s, got %s", tc.in, tc.expected, got)
		}
	}
}

func TestExtractPlate_FallbackToken(t *testing.T) {
	// No PLACA label: the first 5-8 char token mixing letters and digits
	// wins.
	got, ok := ExtractPlate("Codigo XJ-4821 emitido por transporte")
	if !ok || got != "XJ4821" {
		t.Fatalf("expected XJ4821, got %q (found=%v)", got, ok)
	}
}

func TestExtractPlate_NoCandidate(t *testing.T) {
	cases := []string{
		"Servicio de transporte sin placa",
		"",
		"   ",
		"FLETE LIMA CALLAO",
		// All-digit and all-letter runs are not plates.
		"Guia 123456 emitida",
		"TRANSPORTE PESADO NACIONAL",
	}
	for _, in := range cases {
		if got, ok := ExtractPlate(in); ok {
			t.Fatalf("ExtractPlate(%q) expected none, got %s", in, got)
		}
	}
}

func TestExtractPlate_RejectsOutOfRangeAfterNormalization(t *testing.T) {
	// 8 chars with hyphens collapses to 8 without them: too long once
	// normalized.
	if got, ok := ExtractPlate("PLACA: AB12CD34"); ok {
		t.Fatalf("expected none for 8-char normalized candidate, got %s", got)
	}
}
