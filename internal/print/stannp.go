package print

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"postcard-service/internal/config"
	"postcard-service/internal/errs"
	"postcard-service/internal/logger"
	"postcard-service/internal/models"
)

// Result is what the vendor acknowledges a submission with.
type Result struct {
	VendorID string
	ProofURL string
}

// Submitter hands a finished order to the print vendor.
type Submitter interface {
	Submit(ctx context.Context, order *models.Order) (Result, error)
}

// Client talks to the Stannp postcard API. Submission is retried on
// transport failures only; an HTTP-level rejection means the payload itself
// is bad and retrying cannot help.
type Client struct {
	cfg      config.StannpConfig
	testMode bool
	client   *http.Client
	log      *logger.Logger
	sleep    func(time.Duration)
}

var (
	attemptTimeouts = []time.Duration{30 * time.Second, 45 * time.Second, 60 * time.Second}
	attemptBackoffs = []time.Duration{5 * time.Second, 10 * time.Second}
)

func NewClient(cfg config.StannpConfig, testMode bool, log *logger.Logger) *Client {
	return &Client{
		cfg:      cfg,
		testMode: testMode,
		client:   &http.Client{},
		log:      log,
		sleep:    time.Sleep,
	}
}

type createResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
		PDF    string      `json:"pdf"`
	} `json:"data"`
	Error string `json:"error"`
}

// Submit validates the order's artifacts, builds the vendor payload and
// posts it, retrying transport failures with escalating timeouts. On success
// it returns the vendor's order ID and the proof PDF URL.
func (c *Client) Submit(ctx context.Context, order *models.Order) (Result, error) {
	if err := c.validateArtifacts(order); err != nil {
		return Result{}, err
	}
	if c.cfg.APIKey == "" {
		return Result{}, errs.Fatal(nil, "print vendor API key not configured")
	}

	form := c.buildPayload(order)

	var lastErr error
	for attempt := 0; attempt < len(attemptTimeouts); attempt++ {
		if attempt > 0 {
			c.sleep(attemptBackoffs[attempt-1])
		}

		result, err := c.post(ctx, order.TransactionID, form, attemptTimeouts[attempt])
		if err == nil {
			c.log.LogVendor("SUBMIT", order.TransactionID, fmt.Sprintf("accepted as vendor order %s on attempt %d", result.VendorID, attempt+1))
			return result, nil
		}
		if !errs.IsTransient(err) {
			return Result{}, err
		}
		c.log.LogVendor("RETRY", order.TransactionID, fmt.Sprintf("attempt %d failed: %v", attempt+1, err))
		lastErr = err
	}
	return Result{}, errs.Fatal(lastErr, "print submission failed after %d attempts", len(attemptTimeouts))
}

// validateArtifacts checks both faces resolve before anything leaves the
// process. Inline data URIs are accepted but flagged, since the vendor
// fetches by URL and oversized payloads degrade deliverability.
func (c *Client) validateArtifacts(order *models.Order) error {
	for _, face := range []struct{ name, ref string }{
		{"front", order.FrontArtifactURL},
		{"back", order.BackArtifactURL},
	} {
		if strings.TrimSpace(face.ref) == "" {
			return errs.Validation("missing %s artifact for %s", face.name, order.TransactionID)
		}
		if strings.HasPrefix(face.ref, "data:image") {
			c.log.LogDegraded("PRINT", fmt.Sprintf("%s artifact for %s is an inline data URI", face.name, order.TransactionID))
			continue
		}
		if !strings.HasPrefix(face.ref, "http://") && !strings.HasPrefix(face.ref, "https://") {
			return errs.Validation("%s artifact for %s is not a resolvable URL", face.name, order.TransactionID)
		}
	}
	return nil
}

func (c *Client) buildPayload(order *models.Order) url.Values {
	first, last := splitName(order.RecipientName)

	form := url.Values{}
	if c.testMode {
		form.Set("test", "true")
	} else {
		form.Set("test", "false")
	}
	form.Set("size", vendorSize(order.SizeClass))
	form.Set("front", order.FrontArtifactURL)
	form.Set("back", order.BackArtifactURL)
	form.Set("recipient[firstname]", first)
	form.Set("recipient[lastname]", last)
	form.Set("recipient[address1]", order.AddressLine1)
	if order.AddressLine2 != "" {
		form.Set("recipient[address2]", order.AddressLine2)
	}
	form.Set("recipient[city]", order.City)
	form.Set("recipient[state]", order.State)
	form.Set("recipient[postcode]", order.PostalCode)
	form.Set("recipient[country]", "US")
	return form
}

func (c *Client) post(ctx context.Context, transactionID string, form url.Values, timeout time.Duration) (Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/postcards/create?api_key=%s", c.cfg.BaseURL, url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, errs.Fatal(err, "build print request for %s", transactionID)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, errs.Transient(err, "print vendor unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, errs.Transient(err, "read print vendor response")
	}

	var parsed createResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, errs.Fatal(err, "print vendor returned malformed response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !parsed.Success {
		return Result{}, errs.Fatal(nil, "print vendor rejected %s (status %d): %s", transactionID, resp.StatusCode, parsed.Error)
	}
	return Result{VendorID: parsed.Data.ID.String(), ProofURL: parsed.Data.PDF}, nil
}

// vendorSize maps the internal size class to the vendor's catalog name.
func vendorSize(size models.SizeClass) string {
	if size == models.SizeXL {
		return "6x9"
	}
	return "4x6"
}

func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	idx := strings.LastIndex(full, " ")
	if idx < 0 {
		return full, ""
	}
	return full[:idx], full[idx+1:]
}
