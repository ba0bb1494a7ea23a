package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Client is an HTTP client for the shop backend.
type Client struct {
	BaseURL string
	APIKey  string
	AdminID string
	HTTP    *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey, adminID string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		AdminID: adminID,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Request/response types (mirrors the backend API, independently defined) ---

// SaleItemPayload is one line of a sale submission.
type SaleItemPayload struct {
	ProductID    string  `json:"productId"`
	ProductName  string  `json:"productName"`
	ProductBrand string  `json:"productBrand,omitempty"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unitPrice"`
	TotalPrice   float64 `json:"totalPrice"`
}

// SalePayload is the body for POST /api/sales.
type SalePayload struct {
	Items            []SaleItemPayload `json:"items"`
	CustomerName     string            `json:"customerName,omitempty"`
	CustomerPhone    string            `json:"customerPhone,omitempty"`
	CustomerEmail    string            `json:"customerEmail,omitempty"`
	CustomerLocation string            `json:"customerLocation,omitempty"`
	Subtotal         float64           `json:"subtotal"`
	TotalAmount      float64           `json:"totalAmount"`
	AmountPaid       float64           `json:"amountPaid"`
	PaymentMethod    string            `json:"paymentMethod"`
	Notes            string            `json:"notes,omitempty"`
	CreatedBy        string            `json:"createdBy,omitempty"`
	OfflineNumber    string            `json:"offlineNumber,omitempty"`
	CreatedAt        string            `json:"createdAt,omitempty"`
}

// CreateSaleResponse is the response from POST /api/sales.
type CreateSaleResponse struct {
	Success bool `json:"success"`
	Sale    struct {
		ID         string `json:"id"`
		SaleNumber string `json:"saleNumber"`
	} `json:"sale"`
	Message string `json:"message,omitempty"`
}

// ProductPayload is the body for POST /api/products.
type ProductPayload struct {
	Name          string   `json:"name"`
	Brand         string   `json:"brand,omitempty"`
	Category      string   `json:"category,omitempty"`
	PurchasePrice float64  `json:"purchasePrice"`
	SellingPrice  float64  `json:"sellingPrice"`
	Stock         int      `json:"stock"`
	LowStockAlert int      `json:"lowStockAlert,omitempty"`
	Images        []string `json:"images,omitempty"`
	CreatedBy     string   `json:"createdBy,omitempty"`
}

// CreateProductResponse is the response from POST /api/products.
type CreateProductResponse struct {
	Success bool `json:"success"`
	Product struct {
		ID string `json:"id"`
	} `json:"product"`
	Message string `json:"message,omitempty"`
}

// RestockRequest is the body for POST /api/products/{id}/restock.
type RestockRequest struct {
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes,omitempty"`
}

// RestockResponse is the response from a restock request.
type RestockResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RemoteProduct is a product as the server returns it.
type RemoteProduct struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Brand         string   `json:"brand,omitempty"`
	Category      string   `json:"category,omitempty"`
	PurchasePrice float64  `json:"purchasePrice"`
	SellingPrice  float64  `json:"sellingPrice"`
	Stock         int      `json:"stock"`
	LowStockAlert int      `json:"lowStockAlert,omitempty"`
	Images        []string `json:"images,omitempty"`
	CreatedBy     string   `json:"createdBy,omitempty"`
	CreatedAt     string   `json:"createdAt,omitempty"`
}

// RemoteSale is a sale as the server returns it.
type RemoteSale struct {
	ID            string            `json:"id"`
	SaleNumber    string            `json:"saleNumber"`
	Items         []SaleItemPayload `json:"items"`
	CustomerName  string            `json:"customerName,omitempty"`
	Subtotal      float64           `json:"subtotal"`
	TotalAmount   float64           `json:"totalAmount"`
	AmountPaid    float64           `json:"amountPaid"`
	PaymentStatus string            `json:"paymentStatus"`
	PaymentMethod string            `json:"paymentMethod"`
	Status        string            `json:"status"`
	CreatedBy     string            `json:"createdBy,omitempty"`
	CreatedAt     string            `json:"createdAt,omitempty"`
}

// ListParams filters server-side listings.
type ListParams struct {
	Category  string
	CreatedBy string
	Since     string // YYYY-MM-DD
	Until     string
	Limit     int
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doNoAuth("GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateSale submits a sale for creation. The server assigns the final id
// and sale number.
func (c *Client) CreateSale(payload *SalePayload) (*CreateSaleResponse, error) {
	var resp CreateSaleResponse
	if err := c.do("POST", "/api/sales", payload, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("sale rejected: %s", respMessage(resp.Message))
	}
	if resp.Sale.ID == "" || resp.Sale.SaleNumber == "" {
		return nil, fmt.Errorf("server accepted sale but returned no identity")
	}
	return &resp, nil
}

// CreateProduct submits a product for creation.
func (c *Client) CreateProduct(payload *ProductPayload) (*CreateProductResponse, error) {
	var resp CreateProductResponse
	if err := c.do("POST", "/api/products", payload, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("product rejected: %s", respMessage(resp.Message))
	}
	if resp.Product.ID == "" {
		return nil, fmt.Errorf("server accepted product but returned no id")
	}
	return &resp, nil
}

// RestockProduct submits a stock credit for an existing remote product.
func (c *Client) RestockProduct(productID string, req *RestockRequest) error {
	var resp RestockResponse
	if err := c.do("POST", fmt.Sprintf("/api/products/%s/restock", url.PathEscape(productID)), req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("restock rejected: %s", respMessage(resp.Message))
	}
	return nil
}

// GetProducts fetches the server's product list.
func (c *Client) GetProducts(params ListParams) ([]RemoteProduct, error) {
	var resp []RemoteProduct
	if err := c.do("GET", "/api/products"+params.encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetSales fetches the server's sale list.
func (c *Client) GetSales(params ListParams) ([]RemoteSale, error) {
	var resp []RemoteSale
	if err := c.do("GET", "/api/sales"+params.encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p ListParams) encode() string {
	values := url.Values{}
	if p.Category != "" {
		values.Set("category", p.Category)
	}
	if p.CreatedBy != "" {
		values.Set("createdBy", p.CreatedBy)
	}
	if p.Since != "" {
		values.Set("since", p.Since)
	}
	if p.Until != "" {
		values.Set("until", p.Until)
	}
	if p.Limit > 0 {
		values.Set("limit", fmt.Sprintf("%d", p.Limit))
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

func respMessage(msg string) string {
	if msg == "" {
		return "no reason given"
	}
	return msg
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// do executes an authenticated HTTP request.
func (c *Client) do(method, path string, body, result any) error {
	return c.doRequest(method, path, body, result, true)
}

// doNoAuth executes an unauthenticated HTTP request.
func (c *Client) doNoAuth(method, path string, body, result any) error {
	return c.doRequest(method, path, body, result, false)
}

func (c *Client) doRequest(method, path string, body, result any, auth bool) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.AdminID != "" {
		req.Header.Set("X-Admin-ID", c.AdminID)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
			case http.StatusForbidden:
				return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
			case http.StatusNotFound:
				return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
			default:
				return &apiErr
			}
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
