package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/xelth-com/eckposgo/internal/models"
)

// CredentialStore is what the client needs from the terminal's local
// credential storage: the current bearer token plus read/write access
// for the refresh flow.
type CredentialStore interface {
	ResolveToken() (string, bool)
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Client talks to the POS backend REST API. It covers exactly the
// surface the sync core consumes.
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialStore
}

// NewClient creates a REST client for the given base URL. creds may be
// nil for unauthenticated use.
func NewClient(baseURL string, creds CredentialStore) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(),
		creds:   creds,
	}
}

func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			DialContext:     dialer.DialContext,
			MaxIdleConns:    100,
			IdleConnTimeout: 90 * time.Second,
		},
	}
}

// Products fetches the full catalog
func (c *Client) Products(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	err := c.do(ctx, http.MethodGet, "/products/", nil, &out)
	return out, err
}

// CreateProduct creates a catalog entry
func (c *Client) CreateProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	var out models.Product
	if err := c.do(ctx, http.MethodPost, "/products/", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProduct replaces a catalog entry
func (c *Client) UpdateProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	var out models.Product
	path := fmt.Sprintf("/products/%d/", p.ID)
	if err := c.do(ctx, http.MethodPut, path, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProduct removes a catalog entry
func (c *Client) DeleteProduct(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d/", id), nil, nil)
}

// Sales fetches the sale history
func (c *Client) Sales(ctx context.Context) ([]models.Sale, error) {
	var out []models.Sale
	err := c.do(ctx, http.MethodGet, "/sales/", nil, &out)
	return out, err
}

// CreateSale submits a sale draft and returns the created record
func (c *Client) CreateSale(ctx context.Context, draft models.SaleDraft) (*models.Sale, error) {
	var out models.Sale
	if err := c.do(ctx, http.MethodPost, "/sales/", draft, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaleByID fetches one sale
func (c *Client) SaleByID(ctx context.Context, id int) (*models.Sale, error) {
	var out models.Sale
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sales/%d/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadReceipt fetches the server-rendered receipt document
func (c *Client) DownloadReceipt(ctx context.Context, saleID int) ([]byte, error) {
	return c.doRaw(ctx, http.MethodGet, fmt.Sprintf("/sales/%d/receipt/", saleID))
}

// Warehouses fetches all stock locations
func (c *Client) Warehouses(ctx context.Context) ([]models.Warehouse, error) {
	var out []models.Warehouse
	err := c.do(ctx, http.MethodGet, "/warehouses/", nil, &out)
	return out, err
}

// Customers fetches the customer register
func (c *Client) Customers(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	err := c.do(ctx, http.MethodGet, "/customers/", nil, &out)
	return out, err
}

// Inventory fetches per-warehouse stock levels
func (c *Client) Inventory(ctx context.Context) ([]models.InventoryRecord, error) {
	var out []models.InventoryRecord
	err := c.do(ctx, http.MethodGet, "/inventory/", nil, &out)
	return out, err
}

// VerifyCoupon checks a coupon code against the backend
func (c *Client) VerifyCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	var out models.Coupon
	if err := c.do(ctx, http.MethodGet, "/coupons/verify/"+code+"/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	data, status, err := c.request(ctx, method, path, body, true)
	if err != nil {
		return err
	}
	if status >= 400 {
		return decodeError(status, data)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, path string) ([]byte, error) {
	data, status, err := c.request(ctx, method, path, nil, true)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, decodeError(status, data)
	}
	return data, nil
}

func (c *Client) request(ctx context.Context, method, path string, body any, allowRefresh bool) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.creds != nil {
		if token, ok := c.creds.ResolveToken(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	// An expired access token gets one refresh-and-retry
	if resp.StatusCode == http.StatusUnauthorized && allowRefresh && c.refreshToken(ctx) {
		return c.request(ctx, method, path, body, false)
	}

	return data, resp.StatusCode, nil
}

// refreshToken exchanges the stored refresh token for a fresh access
// token. Returns false when no refresh is possible.
func (c *Client) refreshToken(ctx context.Context) bool {
	if c.creds == nil {
		return false
	}
	refresh, ok := c.creds.Get("refreshToken")
	if !ok || refresh == "" {
		return false
	}

	payload, _ := json.Marshal(map[string]string{"refresh": refresh})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token/refresh/", bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var out struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Access == "" {
		return false
	}
	if err := c.creds.Set("token", out.Access); err != nil {
		return false
	}
	return true
}

// decodeError extracts a server rejection, keeping field-level
// validation detail when the backend provides it.
func decodeError(status int, data []byte) error {
	apiErr := &Error{StatusCode: status, Message: http.StatusText(status)}

	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &detail); err == nil && detail.Detail != "" {
		apiErr.Message = detail.Detail
		return apiErr
	}

	var fields map[string][]string
	if err := json.Unmarshal(data, &fields); err == nil && len(fields) > 0 {
		apiErr.Fields = fields
		return apiErr
	}

	if len(data) > 0 {
		apiErr.Message = string(data)
	}
	return apiErr
}
