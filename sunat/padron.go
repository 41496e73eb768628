package sunat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// PadronClient resolves a RUC to its registered legal name against the
// taxpayer registry (padrón). Read-only.
type PadronClient struct {
	baseURL string
	http    *http.Client
}

func NewPadronClient() (*PadronClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("PADRON_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("PADRON_API_BASE_URL is empty")
	}
	return &PadronClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// LookupName returns ("", false, nil) when the RUC is not registered; the
// caller must then leave any previously known name untouched.
func (c *PadronClient) LookupName(ctx context.Context, taxId string) (string, bool, error) {
	endpoint := fmt.Sprintf("%s/v1/taxpayers/%s", c.baseURL, taxId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, fmt.Errorf("padron api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed taxpayerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, fmt.Errorf("malformed taxpayer payload: %w", err)
	}
	if !parsed.Success || parsed.LegalName == "" {
		return "", false, nil
	}
	return parsed.LegalName, true, nil
}
