package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/avollmer/propsync-backend/pkg/config"
	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
	"github.com/avollmer/propsync-backend/pkg/logger"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBackoffBase = 250 * time.Millisecond
	defaultBackoffCap  = 2 * time.Second
)

var (
	errBaseURLRequired  = errors.New("crm base url is required")
	errAPITokenRequired = errors.New("crm api token is required")
	errLoggerRequired   = errors.New("crm logger is required")
)

// Client talks to the CRM REST API. Authentication rides as a query
// parameter, so request URLs never reach the logs; only method and path do.
type Client struct {
	baseURL     string
	apiToken    string
	http        *http.Client
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	logger      *logger.Logger
}

// NewClient validates the configuration and builds the CRM client.
func NewClient(ctx context.Context, cfg config.CRMConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiToken := strings.TrimSpace(cfg.APIToken)
	if apiToken == "" {
		return nil, errAPITokenRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	c := &Client{
		baseURL:     baseURL,
		apiToken:    apiToken,
		http:        &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
		backoffBase: defaultBackoffBase,
		backoffCap:  defaultBackoffCap,
		logger:      logg,
	}

	logg.Info(ctx, "crm client initialized")
	return c, nil
}

// SearchProducts returns the products whose name matches term exactly, in
// the CRM's search order. The search is restricted to the name field so the
// name stays the natural key.
func (c *Client) SearchProducts(ctx context.Context, name string) ([]Product, error) {
	params := url.Values{}
	params.Set("term", name)
	params.Set("exact_match", "true")
	params.Set("fields", "name")

	data, err := c.do(ctx, "search products", http.MethodGet, "/products/search", params, nil)
	if err != nil {
		return nil, err
	}

	var payload searchData
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode product search response")
		}
	}

	products := make([]Product, 0, len(payload.Items))
	for _, entry := range payload.Items {
		products = append(products, entry.Item)
	}
	return products, nil
}

// CreateProduct registers a new product with a single price row.
func (c *Client) CreateProduct(ctx context.Context, name string, price decimal.Decimal, currency string) (Product, error) {
	body := map[string]any{
		"name": name,
		"prices": []map[string]any{
			{"price": price.InexactFloat64(), "currency": currency},
		},
	}

	data, err := c.do(ctx, "create product", http.MethodPost, "/products", nil, body)
	if err != nil {
		return Product{}, err
	}

	var product Product
	if err := json.Unmarshal(data, &product); err != nil {
		return Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode created product")
	}
	return product, nil
}

// GetDealProducts lists the product rows currently attached to a deal.
func (c *Client) GetDealProducts(ctx context.Context, dealID int64) ([]DealProduct, error) {
	path := fmt.Sprintf("/deals/%d/products", dealID)
	data, err := c.do(ctx, "list deal products", http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var links []DealProduct
	if len(data) > 0 {
		if err := json.Unmarshal(data, &links); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode deal products")
		}
	}
	return links, nil
}

// DeleteDealProduct detaches one product row from a deal.
func (c *Client) DeleteDealProduct(ctx context.Context, dealID, linkID int64) error {
	path := fmt.Sprintf("/deals/%d/products/%d", dealID, linkID)
	_, err := c.do(ctx, "delete deal product", http.MethodDelete, path, nil, nil)
	return err
}

// AddProductToDeal attaches one product row to a deal. Zero discount and tax
// are omitted so the CRM applies its own defaults; the discount type rides
// along only when a discount is present.
func (c *Client) AddProductToDeal(ctx context.Context, dealID int64, in AddProductInput) (DealProduct, error) {
	body := map[string]any{
		"product_id": in.ProductID,
		"item_price": in.ItemPrice.InexactFloat64(),
		"quantity":   in.Quantity,
	}
	if in.Discount.IsPositive() {
		body["discount"] = in.Discount.InexactFloat64()
		if in.DiscountType != "" {
			body["discount_type"] = in.DiscountType
		}
	}
	if in.Tax.IsPositive() {
		body["tax"] = in.Tax.InexactFloat64()
	}
	if in.BillingFrequency != "" {
		body["billing_frequency"] = in.BillingFrequency
	}

	path := fmt.Sprintf("/deals/%d/products", dealID)
	data, err := c.do(ctx, "add deal product", http.MethodPost, path, nil, body)
	if err != nil {
		return DealProduct{}, err
	}

	var link DealProduct
	if err := json.Unmarshal(data, &link); err != nil {
		return DealProduct{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode deal product")
	}
	return link, nil
}

// AddNote attaches a note to a deal.
func (c *Client) AddNote(ctx context.Context, dealID int64, content string) error {
	body := map[string]any{
		"deal_id": dealID,
		"content": content,
	}
	_, err := c.do(ctx, "add note", http.MethodPost, "/notes", nil, body)
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, payload any) (json.RawMessage, error) {
	endpoint, err := c.endpoint(path, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build crm url")
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode crm payload")
		}
	}

	ctx = c.logger.WithFields(ctx, map[string]any{"operation": op, "method": method, "path": path})
	c.logger.Info(ctx, "crm request")

	var data json.RawMessage
	err = retry.Do(ctx, c.newBackoff(), func(ctx context.Context) error {
		data = nil

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build crm request")
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "crm unreachable"))
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read crm response"))
		}

		var env envelope
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode crm response")
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := pkgerrors.New(codeForStatus(resp.StatusCode), fmt.Sprintf("crm returned %d", resp.StatusCode)).
				WithDetails(map[string]any{"method": method, "path": path, "error": env.Error})
			if retryableStatus(resp.StatusCode) {
				return retry.RetryableError(apiErr)
			}
			return apiErr
		}

		if !env.Success {
			return pkgerrors.New(pkgerrors.CodeDependency, "crm rejected the request").
				WithDetails(map[string]any{"method": method, "path": path, "error": env.Error, "error_info": env.ErrorInfo})
		}

		data = env.Data
		return nil
	})
	if err != nil {
		typed := pkgerrors.As(err)
		if typed == nil {
			return nil, err
		}
		c.logger.Error(ctx, "crm request failed", typed)
		return nil, typed
	}

	c.logger.Info(ctx, "crm response")
	return data, nil
}

func (c *Client) endpoint(path string, params url.Values) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for key, values := range params {
		for _, value := range values {
			q.Add(key, value)
		}
	}
	q.Set("api_token", c.apiToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) newBackoff() retry.Backoff {
	retries := c.maxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	b := retry.NewFibonacci(c.backoffBase)
	b = retry.WithCappedDuration(c.backoffCap, b)
	return retry.WithMaxRetries(uint64(retries), b)
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	default:
		return status >= 500
	}
}
