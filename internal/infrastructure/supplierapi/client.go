// Package supplierapi is the HTTP adapter for the supplier platform. It
// implements supplier.Client: one shared access token refreshed ahead of
// expiry, a request spacing limiter, and a single retry after a fixed
// backoff when the platform reports rate limiting.
package supplierapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dropship/backend/internal/domain/supplier"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const tokenHeader = "CJ-Access-Token"

// errTokenRejected is returned by send when the platform refuses the token
var errTokenRejected = errors.New("supplierapi: access token rejected")

// Client implements supplier.Client over HTTP
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	mu             sync.Mutex
	token          string
	expiresAt      time.Time
	refreshToken   string
	refreshExpires time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Ensure Client implements the port
var _ supplier.Client = (*Client)(nil)

// NewClient creates a client. Missing credentials are not an error here;
// every call reports supplier.ErrNotConfigured instead so the rest of the
// application can start without supplier access.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		logger:     logger.Named("supplier"),
		now:        time.Now,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

// Authenticate ensures a valid access token is held
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureTokenLocked(ctx)
}

func (c *Client) ensureTokenLocked(ctx context.Context) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	now := c.now()
	if c.token != "" && now.Add(c.cfg.RefreshSkew).Before(c.expiresAt) {
		return nil
	}

	if c.refreshToken != "" && now.Before(c.refreshExpires) {
		var data tokenData
		err := c.post(ctx, "/authentication/refreshAccessToken", refreshRequest{RefreshToken: c.refreshToken}, &data)
		if err == nil && data.AccessToken != "" {
			c.storeToken(data, now)
			c.logger.Debug("access token refreshed", zap.Time("expires_at", c.expiresAt))
			return nil
		}
		c.logger.Warn("token refresh failed, re-authenticating", zap.Error(err))
	}

	var data tokenData
	err := c.post(ctx, "/authentication/getAccessToken", authRequest{Email: c.cfg.Email, Password: c.cfg.APIKey}, &data)
	if err != nil {
		if supplier.IsTransient(err) {
			return err
		}
		return fmt.Errorf("%w: %v", supplier.ErrAuthFailed, err)
	}
	if data.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", supplier.ErrAuthFailed)
	}
	c.storeToken(data, now)
	c.logger.Info("authenticated with supplier", zap.Time("expires_at", c.expiresAt))
	return nil
}

func (c *Client) storeToken(data tokenData, now time.Time) {
	c.token = data.AccessToken
	if exp, ok := parseExpiry(data.AccessTokenExpiryDate); ok {
		c.expiresAt = exp
	} else {
		c.expiresAt = now.Add(c.cfg.TokenTTL)
	}
	if data.RefreshToken != "" {
		c.refreshToken = data.RefreshToken
		if exp, ok := parseExpiry(data.RefreshTokenExpiryDate); ok {
			c.refreshExpires = exp
		} else {
			c.refreshExpires = c.expiresAt
		}
	}
}

func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureTokenLocked(ctx); err != nil {
		return "", err
	}
	return c.token, nil
}

func (c *Client) invalidateToken(rejected string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == rejected {
		c.token = ""
		c.expiresAt = time.Time{}
	}
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// ListProducts fetches one page of the product list
func (c *Client) ListProducts(ctx context.Context, q supplier.ListQuery) (*supplier.ListPage, error) {
	q.Normalize()
	params := url.Values{}
	params.Set("pageNum", strconv.Itoa(q.PageNum))
	params.Set("pageSize", strconv.Itoa(q.PageSize))
	if q.CategoryID != "" {
		params.Set("categoryId", q.CategoryID)
	}
	if q.Warehouse != "" {
		params.Set("countryCode", q.Warehouse)
	} else if q.CountryCode != "" {
		params.Set("countryCode", q.CountryCode)
	}

	var data listData
	if _, err := c.call(ctx, http.MethodGet, "/product/list", params, nil, &data); err != nil {
		return nil, err
	}
	page := &supplier.ListPage{
		PageNum:  q.PageNum,
		PageSize: q.PageSize,
		Total:    int(data.Total),
		Entries:  make([]supplier.ListEntry, 0, len(data.List)),
	}
	for _, w := range data.List {
		if w.PID == "" {
			continue
		}
		page.Entries = append(page.Entries, w.toDomain())
	}
	return page, nil
}

// GetProduct fetches product detail including variants. Stock is fetched
// separately with GetStock.
func (c *Client) GetProduct(ctx context.Context, pid string) (*supplier.Product, error) {
	if strings.TrimSpace(pid) == "" {
		return nil, fmt.Errorf("%w: empty pid", supplier.ErrProductNotFound)
	}
	params := url.Values{}
	params.Set("pid", pid)

	var w productWire
	raw, err := c.call(ctx, http.MethodGet, "/product/query", params, nil, &w)
	if err != nil {
		return nil, notFoundAs(err, supplier.ErrProductNotFound, pid)
	}
	if raw == nil || w.PID == "" {
		return nil, fmt.Errorf("%w: %s", supplier.ErrProductNotFound, pid)
	}
	return w.toDomain(raw), nil
}

// GetStock fetches per-warehouse inventory for a product
func (c *Client) GetStock(ctx context.Context, pid string) ([]supplier.StockEntry, error) {
	params := url.Values{}
	params.Set("pid", pid)

	var rows []stockWire
	if _, err := c.call(ctx, http.MethodGet, "/product/stock/queryByPid", params, nil, &rows); err != nil {
		return nil, notFoundAs(err, supplier.ErrProductNotFound, pid)
	}
	entries := make([]supplier.StockEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toDomain())
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Logistics and orders
// ---------------------------------------------------------------------------

// FreightQuote asks for carrier options for a set of line items
func (c *Client) FreightQuote(ctx context.Context, req supplier.FreightQuoteRequest) ([]supplier.FreightOption, error) {
	body := freightRequest{
		StartCountryCode: strings.ToUpper(req.OriginCountry),
		EndCountryCode:   strings.ToUpper(req.DestinationCountry),
	}
	for _, it := range req.Items {
		body.Products = append(body.Products, freightLineWire{Quantity: it.Quantity, VID: it.VariantID})
	}

	var rows []freightOptionWire
	if _, err := c.call(ctx, http.MethodPost, "/logistic/freightCalculate", nil, body, &rows); err != nil {
		return nil, err
	}
	options := make([]supplier.FreightOption, 0, len(rows))
	for _, r := range rows {
		if !r.LogisticPrice.Valid {
			continue
		}
		options = append(options, supplier.FreightOption{
			Carrier:       r.LogisticName,
			Price:         r.LogisticPrice.Value,
			EstimatedDays: r.LogisticAging,
		})
	}
	return options, nil
}

// CreateOrder submits an order to the supplier
func (c *Client) CreateOrder(ctx context.Context, req supplier.OrderRequest) (*supplier.OrderReceipt, error) {
	a := req.Address
	body := createOrderRequest{
		OrderNumber:          req.OrderNumber,
		ShippingCountryCode:  a.CountryCode,
		ShippingProvince:     a.Province,
		ShippingCity:         a.City,
		ShippingAddress:      a.Line1,
		ShippingAddress2:     a.Line2,
		ShippingCustomerName: a.Name,
		ShippingZip:          a.PostalCode,
		ShippingPhone:        a.Phone,
		LogisticName:         req.Carrier,
	}
	for _, l := range req.Lines {
		body.Products = append(body.Products, freightLineWire{Quantity: l.Quantity, VID: l.VariantID})
	}

	var w orderWire
	if _, err := c.call(ctx, http.MethodPost, "/shopping/order/createOrderV2", nil, body, &w); err != nil {
		return nil, err
	}
	if w.OrderID == "" {
		return nil, fmt.Errorf("%w: order created without id", supplier.ErrInvalidResponse)
	}
	return &supplier.OrderReceipt{SupplierOrderID: w.OrderID, Status: w.OrderStatus}, nil
}

// GetTracking fetches the shipment state of a supplier order
func (c *Client) GetTracking(ctx context.Context, supplierOrderID string) (*supplier.Tracking, error) {
	params := url.Values{}
	params.Set("orderId", supplierOrderID)

	var w orderWire
	raw, err := c.call(ctx, http.MethodGet, "/shopping/order/getOrderDetail", params, nil, &w)
	if err != nil {
		return nil, notFoundAs(err, supplier.ErrOrderNotFound, supplierOrderID)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", supplier.ErrOrderNotFound, supplierOrderID)
	}
	t := &supplier.Tracking{
		SupplierOrderID: firstNonEmpty(w.OrderID, supplierOrderID),
		TrackingNumber:  strings.TrimSpace(w.TrackNumber),
		Carrier:         strings.TrimSpace(w.LogisticName),
		Status:          strings.TrimSpace(w.OrderStatus),
	}
	if ts, ok := parseExpiry(w.UpdateDate); ok {
		t.UpdatedAt = &ts
	}
	return t, nil
}

// ListReviews fetches one page of product reviews
func (c *Client) ListReviews(ctx context.Context, pid string, pageNum, pageSize int) (*supplier.ReviewPage, error) {
	if pageNum < 1 {
		pageNum = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	params := url.Values{}
	params.Set("pid", pid)
	params.Set("pageNum", strconv.Itoa(pageNum))
	params.Set("pageSize", strconv.Itoa(pageSize))

	var data commentListData
	if _, err := c.call(ctx, http.MethodGet, "/product/productComments", params, nil, &data); err != nil {
		return nil, notFoundAs(err, supplier.ErrProductNotFound, pid)
	}
	page := &supplier.ReviewPage{PageNum: pageNum, PageSize: pageSize, Total: int(data.Total)}
	for _, w := range data.List {
		if w.CommentID == "" {
			continue
		}
		page.Reviews = append(page.Reviews, w.toDomain(pid))
	}
	return page, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// call performs an authenticated request and decodes the envelope data into
// out. It returns the raw data (nil when the platform sent none). A rejected
// token is replaced once; a rate-limited call is retried once after
// RateLimitBackoff.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) (json.RawMessage, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}

	env, err := c.send(ctx, method, path, query, body, token)
	if errors.Is(err, errTokenRejected) {
		c.invalidateToken(token)
		if token, err = c.currentToken(ctx); err != nil {
			return nil, err
		}
		env, err = c.send(ctx, method, path, query, body, token)
	}
	if errors.Is(err, supplier.ErrRateLimited) {
		c.logger.Warn("rate limited by supplier, backing off",
			zap.String("path", path),
			zap.Duration("backoff", c.cfg.RateLimitBackoff),
		)
		if serr := c.sleep(ctx, c.cfg.RateLimitBackoff); serr != nil {
			return nil, fmt.Errorf("%w: %w", supplier.ErrUnavailable, serr)
		}
		env, err = c.send(ctx, method, path, query, body, token)
	}
	if errors.Is(err, errTokenRejected) {
		return nil, fmt.Errorf("%w: %v", supplier.ErrAuthFailed, err)
	}
	if err != nil {
		return nil, err
	}

	if !env.hasData() {
		return nil, nil
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", supplier.ErrInvalidResponse, path, err)
		}
	}
	return env.Data, nil
}

// post sends an unauthenticated request; used for the token endpoints
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	env, err := c.send(ctx, http.MethodPost, path, nil, body, "")
	if errors.Is(err, supplier.ErrRateLimited) {
		if serr := c.sleep(ctx, c.cfg.RateLimitBackoff); serr != nil {
			return fmt.Errorf("%w: %w", supplier.ErrUnavailable, serr)
		}
		env, err = c.send(ctx, http.MethodPost, path, nil, body, "")
	}
	if err != nil {
		return err
	}
	if !env.hasData() {
		return fmt.Errorf("%w: %s: empty data", supplier.ErrInvalidResponse, path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", supplier.ErrInvalidResponse, path, err)
	}
	return nil
}

// send performs one paced HTTP round trip and classifies the outcome
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, token string) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", supplier.ErrUnavailable, err)
	}

	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("supplierapi: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("supplierapi: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", supplier.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", supplier.ErrUnavailable, err)
	}
	c.logger.Debug("supplier request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP 429", supplier.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if token == "" {
			return nil, fmt.Errorf("%w: HTTP %d", supplier.ErrAuthFailed, resp.StatusCode)
		}
		return nil, errTokenRejected
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", supplier.ErrUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("%w: HTTP %d", supplier.ErrRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", supplier.ErrInvalidResponse, err)
	}
	if env.ok() {
		return &env, nil
	}

	switch env.Code {
	case codeRateLimited:
		return nil, fmt.Errorf("%w: %s", supplier.ErrRateLimited, env.Message)
	case codeTokenInvalid, codeTokenExpired:
		if token == "" {
			return nil, fmt.Errorf("%w: %s", supplier.ErrAuthFailed, env.Message)
		}
		return nil, errTokenRejected
	}
	return nil, &supplier.BusinessError{Code: env.Code, Message: env.Message}
}

// notFoundAs maps a business rejection that reads as "not found" onto a
// typed sentinel so callers can skip rather than fail.
func notFoundAs(err, sentinel error, id string) error {
	var be *supplier.BusinessError
	if errors.As(err, &be) {
		msg := strings.ToLower(be.Message)
		if strings.Contains(msg, "not found") || strings.Contains(msg, "not exist") {
			return fmt.Errorf("%w: %s: %w", sentinel, id, err)
		}
	}
	return err
}
