package sunat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client is the read-only lookup client for the tax-authority invoice
// service. Lookups are always fallible and never write anything, so a
// failure here is side-effect-free by construction.
type Client struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

var ErrInvoiceNotFound = errors.New("invoice not found in tax authority")

func NewClient() (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("SUNAT_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("SUNAT_API_BASE_URL is empty")
	}
	apiKey := strings.TrimSpace(os.Getenv("SUNAT_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("SUNAT_API_KEY is empty")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("SUNAT_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	rateLimitPerMin := int64(30)
	if v := strings.TrimSpace(os.Getenv("SUNAT_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

// LookupInvoice fetches the canonical invoice for a natural key. typeCode
// must already be the zero-padded two-digit voucher type ("01").
func (c *Client) LookupInvoice(ctx context.Context, typeCode, supplierNumber, serial, number string) (*Invoice, error) {
	params := url.Values{}
	params.Set("type_code", typeCode)
	params.Set("ruc", supplierNumber)
	params.Set("serial", serial)
	params.Set("number", number)

	body, err := c.get(ctx, "/v1/invoices", params)
	if err != nil {
		return nil, err
	}

	var parsed invoiceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed invoice payload: %w", err)
	}
	if !parsed.Success {
		if parsed.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, parsed.Message)
		}
		return nil, ErrInvoiceNotFound
	}

	if parsed.Invoice.Header.RawIssueDate != "" {
		issued, err := time.Parse("2006-01-02", parsed.Invoice.Header.RawIssueDate)
		if err != nil {
			return nil, fmt.Errorf("malformed issue_date %q: %w", parsed.Invoice.Header.RawIssueDate, err)
		}
		parsed.Invoice.Header.IssueDate = &issued
	}

	return &parsed.Invoice, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sunat api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
