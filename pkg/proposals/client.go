package proposals

import (
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

	"github.com/avollmer/propsync-backend/pkg/config"
	pkgerrors "github.com/avollmer/propsync-backend/pkg/errors"
	"github.com/avollmer/propsync-backend/pkg/logger"
)

const (
	tokenHeader = "Bptoken"

	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBackoffBase = 250 * time.Millisecond
	defaultBackoffCap  = 2 * time.Second

	maxErrorBody = 512
)

var (
	errBaseURLRequired = errors.New("proposal service base url is required")
	errAPIKeyRequired  = errors.New("proposal service api key is required")
	errLoggerRequired  = errors.New("proposal service logger is required")
)

// listingPaths are scanned in order when an identifier is not a proposal id.
// Quote ids surface in proposal URLs, so senders occasionally deliver them
// instead of the real id.
var listingPaths = []string{"/proposal/sent", "/proposal/signed", "/proposal/draft"}

// Client talks to the proposal service with centralized auth, retries, and
// error mapping.
type Client struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	logger      *logger.Logger
}

// NewClient validates the configuration and builds the proposal service client.
func NewClient(ctx context.Context, cfg config.ProposalsConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
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
		apiKey:      apiKey,
		http:        &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
		backoffBase: defaultBackoffBase,
		backoffCap:  defaultBackoffCap,
		logger:      logg,
	}

	logg.Info(ctx, "proposal client initialized")
	return c, nil
}

// GetProposal fetches the full proposal document. The identifier may be a
// proposal id or a quote id; quote ids are resolved by scanning the sent,
// signed, and draft listings.
func (c *Client) GetProposal(ctx context.Context, proposalID string) (Proposal, error) {
	id := strings.TrimSpace(proposalID)
	if id == "" {
		return Proposal{}, pkgerrors.New(pkgerrors.CodeValidation, "proposal id is required")
	}

	ctx = c.logger.WithProposalID(ctx, id)
	doc, err := c.fetchByID(ctx, id)
	if err == nil {
		c.logger.Info(ctx, "proposal fetched")
		return doc, nil
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		return Proposal{}, err
	}

	c.logger.Info(ctx, "proposal id unknown, scanning listings for quote id")
	return c.findByQuoteID(ctx, id)
}

func (c *Client) fetchByID(ctx context.Context, id string) (Proposal, error) {
	env, err := c.getJSON(ctx, "/proposal/"+url.PathEscape(id))
	if err != nil {
		return Proposal{}, err
	}
	if env.errored() {
		return Proposal{}, pkgerrors.New(pkgerrors.CodeNotFound, "proposal lookup rejected").
			WithDetails(map[string]any{"proposal_id": id, "message": env.Message})
	}

	var doc Proposal
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &doc); err != nil {
			return Proposal{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode proposal payload")
		}
	}
	return doc, nil
}

func (c *Client) findByQuoteID(ctx context.Context, quoteID string) (Proposal, error) {
	for _, path := range listingPaths {
		env, err := c.getJSON(ctx, path)
		if err != nil {
			c.logger.Warn(c.logger.WithField(ctx, "path", path), "proposal listing scan failed")
			continue
		}
		if env.errored() || len(env.Data) == 0 {
			continue
		}

		var entries []listEntry
		if err := json.Unmarshal(env.Data, &entries); err != nil {
			c.logger.Warn(c.logger.WithField(ctx, "path", path), "proposal listing payload malformed")
			continue
		}

		for _, entry := range entries {
			if entry.QuoteID.String() != quoteID {
				continue
			}
			ctx := c.logger.WithFields(ctx, map[string]any{"resolved_id": entry.ID.String(), "path": path})
			c.logger.Info(ctx, "quote id resolved to proposal")
			return c.fetchByID(ctx, entry.ID.String())
		}
	}

	return Proposal{}, pkgerrors.New(pkgerrors.CodeNotFound, "proposal not found").
		WithDetails(map[string]any{"proposal_id": quoteID})
}

func (c *Client) getJSON(ctx context.Context, path string) (envelope, error) {
	var env envelope
	err := retry.Do(ctx, c.newBackoff(), func(ctx context.Context) error {
		env = envelope{}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build proposal service request")
		}
		req.Header.Set(tokenHeader, c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "proposal service unreachable"))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read proposal service response"))
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := pkgerrors.New(codeForStatus(resp.StatusCode), fmt.Sprintf("proposal service returned %d", resp.StatusCode)).
				WithDetails(map[string]any{"path": path, "body": excerpt(body)})
			if retryableStatus(resp.StatusCode) {
				return retry.RetryableError(apiErr)
			}
			return apiErr
		}

		if err := json.Unmarshal(body, &env); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode proposal service response")
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return envelope{}, typed
		}
		return envelope{}, err
	}
	return env, nil
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

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
