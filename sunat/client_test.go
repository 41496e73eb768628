package sunat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("SUNAT_API_BASE_URL", srv.URL)
	t.Setenv("SUNAT_API_KEY", "test-key")
	t.Setenv("SUNAT_RATE_LIMIT_PER_MIN", "60000")

	client, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	return client, srv
}

func TestLookupInvoice_ParsesPayload(t *testing.T) {
	var gotQuery map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("missing api key header")
		}
		q := r.URL.Query()
		gotQuery = map[string]string{
			"type_code": q.Get("type_code"),
			"ruc":       q.Get("ruc"),
			"serial":    q.Get("serial"),
			"number":    q.Get("number"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": {
				"issuer_tax_id": "20100070970",
				"header": {
					"serial": "F001",
					"number": "000123",
					"issue_date": "2024-03-15",
					"currency_code": "PEN",
					"subtotal": "100.00",
					"tax": "18.00",
					"total": "118.00"
				},
				"items": [
					{
						"description": "FLETE PLACA ABC-123",
						"unit_measure_description": "VIAJE",
						"quantity": "1",
						"unit_value": "100.00",
						"tax_value": "18.00",
						"total_value": "118.00"
					}
				]
			}
		}`))
	})

	invoice, err := client.LookupInvoice(context.Background(), "01", "20100070970", "F001", "000123")
	if err != nil {
		t.Fatalf("LookupInvoice error: %v", err)
	}
	if gotQuery["type_code"] != "01" || gotQuery["ruc"] != "20100070970" ||
		gotQuery["serial"] != "F001" || gotQuery["number"] != "000123" {
		t.Fatalf("unexpected query params: %v", gotQuery)
	}
	if invoice.Header.CurrencyCode != "PEN" {
		t.Fatalf("currency expected PEN, got %s", invoice.Header.CurrencyCode)
	}
	if invoice.Header.IssueDate == nil || invoice.Header.IssueDate.Format("2006-01-02") != "2024-03-15" {
		t.Fatalf("issue date not parsed: %v", invoice.Header.IssueDate)
	}
	if invoice.Header.Total.String() != "118" {
		t.Fatalf("total expected 118, got %s", invoice.Header.Total.String())
	}
	if len(invoice.Items) != 1 || invoice.Items[0].UnitMeasureDescription != "VIAJE" {
		t.Fatalf("items not parsed: %+v", invoice.Items)
	}
}

func TestLookupInvoice_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "message": "comprobante no encontrado"}`))
	})

	_, err := client.LookupInvoice(context.Background(), "01", "20100070970", "F001", "999999")
	if !errors.Is(err, ErrInvoiceNotFound) {
		t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
	}
}

func TestLookupInvoice_ServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	if _, err := client.LookupInvoice(context.Background(), "01", "20100070970", "F001", "000123"); err == nil {
		t.Fatal("expected error on 500 response")
	}
}

func TestLookupInvoice_MalformedIssueDate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": {"header": {"issue_date": "15/03/2024"}}}`))
	})

	if _, err := client.LookupInvoice(context.Background(), "01", "20100070970", "F001", "000123"); err == nil {
		t.Fatal("expected error on malformed issue_date")
	}
}

func TestNewClient_RequiresConfiguration(t *testing.T) {
	t.Setenv("SUNAT_API_BASE_URL", "")
	t.Setenv("SUNAT_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error without SUNAT_API_BASE_URL")
	}

	t.Setenv("SUNAT_API_BASE_URL", "https://example.test")
	if _, err := NewClient(); err == nil {
		t.Fatal("expected error without SUNAT_API_KEY")
	}
}
