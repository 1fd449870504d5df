// Package client is the REST client for the order/device backend. Every
// operation except the IMEI lookups transparently falls back to the
// in-memory mock store when the backend is unreachable.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"device-intake-backend/internal/memstore"
	"device-intake-backend/internal/model"
	"device-intake-backend/internal/workflow"
)

// ErrRemoteUnavailable wraps transport failures and unexpected HTTP
// statuses from the backend.
var ErrRemoteUnavailable = errors.New("remote backend unavailable")

// Client talks to the intake backend. It satisfies workflow.Repository
// and workflow.IMEIResolver.
type Client struct {
	baseURL  string
	client   *http.Client
	fallback *memstore.Store
}

// New creates a client for the backend at baseURL. The fallback store is
// shared for the process lifetime.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		fallback: memstore.New(),
	}
}

// Fallback exposes the mock store, mainly for tests.
func (c *Client) Fallback() *memstore.Store {
	return c.fallback
}

// doJSON issues a request with an optional JSON body and decodes a JSON
// response into out. Conflict responses surface as memstore.ErrConflict;
// any other failure is ErrRemoteUnavailable.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("%s %s: %w", method, path, memstore.ErrConflict)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, ErrRemoteUnavailable)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s %s: %w", method, path, err)
	}
	return nil
}

// fallbackWorthy reports whether an error should trigger the mock store.
// Conflicts are real answers from the backend, not outages.
func fallbackWorthy(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}

// CreateOrder creates an order, falling back to a mock order with
// generated id, number and today's date.
func (c *Client) CreateOrder(ctx context.Context, req workflow.CreateOrderRequest) (*model.Order, error) {
	var order model.Order
	err := c.doJSON(ctx, http.MethodPost, "/api/orders", req, &order)
	if err == nil {
		return &order, nil
	}
	if !fallbackWorthy(err) {
		return nil, err
	}
	log.Printf("Remote order creation failed, using mock store: %v", err)
	return c.fallback.CreateOrder(ctx, req)
}

// FetchOrders lists all orders.
func (c *Client) FetchOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	err := c.doJSON(ctx, http.MethodGet, "/api/orders", nil, &orders)
	if err == nil {
		return orders, nil
	}
	if !fallbackWorthy(err) {
		return nil, err
	}
	log.Printf("Remote order listing failed, using mock store: %v", err)
	return c.fallback.FetchOrders(ctx)
}

// GetOrder fetches an order by id or order number.
func (c *Client) GetOrder(ctx context.Context, idOrNumber string) (*model.Order, error) {
	var order model.Order
	err := c.doJSON(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(idOrNumber), nil, &order)
	if err == nil {
		return &order, nil
	}
	if !fallbackWorthy(err) {
		return nil, err
	}
	return c.fallback.GetOrder(ctx, idOrNumber)
}

// DeleteOrder removes an order by id.
func (c *Client) DeleteOrder(ctx context.Context, id string) error {
	err := c.doJSON(ctx, http.MethodDelete, "/api/orders/"+url.PathEscape(id), nil, nil)
	if err == nil {
		return nil
	}
	if !fallbackWorthy(err) {
		return err
	}
	return c.fallback.DeleteOrder(ctx, id)
}

// MarkOrderDraft moves an order into the Draft side-state.
func (c *Client) MarkOrderDraft(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := c.doJSON(ctx, http.MethodPatch, "/api/orders/"+url.PathEscape(id)+"/draft", nil, &order)
	if err == nil {
		return &order, nil
	}
	if !fallbackWorthy(err) {
		return nil, err
	}
	return c.fallback.MarkOrderDraft(ctx, id)
}

// CheckLabelNumber reports whether a label number is already taken.
func (c *Client) CheckLabelNumber(ctx context.Context, label string) (bool, error) {
	var exists bool
	err := c.doJSON(ctx, http.MethodGet, "/api/orders/check-label/"+url.PathEscape(label), nil, &exists)
	if err == nil {
		return exists, nil
	}
	if !fallbackWorthy(err) {
		return false, err
	}
	return c.fallback.CheckLabelNumber(ctx, label)
}

// ExportReport asks the backend for the order's report locator.
func (c *Client) ExportReport(ctx context.Context, orderID string) (string, error) {
	var payload struct {
		ReportURL string `json:"reportUrl"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(orderID)+"/export", nil, &payload)
	if err == nil {
		return payload.ReportURL, nil
	}
	if !fallbackWorthy(err) {
		return "", err
	}
	return c.fallback.ExportReport(ctx, orderID)
}

// CreateDevice submits a Station 1 device record.
func (c *Client) CreateDevice(ctx context.Context, req workflow.CreateDeviceRequest) (*model.Device, error) {
	var device model.Device
	err := c.doJSON(ctx, http.MethodPost, "/api/devices", req, &device)
	if err == nil {
		return &device, nil
	}
	if !fallbackWorthy(err) {
		return nil, err
	}
	log.Printf("Remote device creation failed, using mock store: %v", err)
	return c.fallback.CreateDevice(ctx, req)
}

// GetDevice fetches a device by id.
func (c *Client) GetDevice(ctx context.Context, id string) (*model.Device, error) {
	var device model.Device
	err := c.doJSON(ctx, http.MethodGet, "/api/devices/"+url.PathEscape(id), nil, &device)
	if err == nil {
		return &device, nil
	}
	if !fallbackWorthy(err) {
		return nil, err
	}
	return c.fallback.GetDevice(ctx, id)
}

// DevicesByOrder lists an order's devices.
func (c *Client) DevicesByOrder(ctx context.Context, orderID string) ([]model.Device, error) {
	var devices []model.Device
	err := c.doJSON(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(orderID)+"/devices", nil, &devices)
	if err == nil {
		return devices, nil
	}
	if !fallbackWorthy(err) {
		return nil, err
	}
	return c.fallback.DevicesByOrder(ctx, orderID)
}

// SearchDevices matches devices by partial IMEI, serial, order id, order
// number or label number.
func (c *Client) SearchDevices(ctx context.Context, query string) ([]model.Device, error) {
	var devices []model.Device
	err := c.doJSON(ctx, http.MethodGet, "/api/devices/search?q="+url.QueryEscape(query), nil, &devices)
	if err == nil {
		return devices, nil
	}
	if !fallbackWorthy(err) {
		return nil, err
	}
	return c.fallback.SearchDevices(ctx, query)
}

// UploadDeviceImage uploads one photo side as multipart form data. The
// uri names a local image file; on fallback only the reference is kept.
func (c *Client) UploadDeviceImage(ctx context.Context, deviceID, side, uri string) (*model.Device, error) {
	device, err := c.uploadImage(ctx, deviceID, side, uri)
	if err == nil {
		return device, nil
	}
	if !fallbackWorthy(err) {
		return nil, err
	}
	log.Printf("Remote photo upload failed, using mock store: %v", err)
	return c.fallback.UploadDeviceImage(ctx, deviceID, side, uri)
}

func (c *Client) uploadImage(ctx context.Context, deviceID, side, uri string) (*model.Device, error) {
	f, err := os.Open(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", uri, err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("photo", fmt.Sprintf("%s_%s.jpg", deviceID, side))
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", uri, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	path := fmt.Sprintf("/api/devices/%s/photos/%s", url.PathEscape(deviceID), url.PathEscape(side))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w: %w", path, ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("POST %s: status %d: %w", path, resp.StatusCode, ErrRemoteUnavailable)
	}

	var device model.Device
	if err := json.NewDecoder(resp.Body).Decode(&device); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return &device, nil
}

// LookupIMEI starts an IMEI lookup. Inherently backend-dependent: no
// mock fallback, failures surface to the caller.
func (c *Client) LookupIMEI(ctx context.Context, imei string) (int64, error) {
	var receipt struct {
		HistoryID int64  `json:"history_id"`
		Message   string `json:"message"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/lookup-imei/"+url.PathEscape(imei), nil, &receipt); err != nil {
		return 0, err
	}
	return receipt.HistoryID, nil
}

// IMEIResult fetches the outcome of an earlier lookup. No mock fallback.
func (c *Client) IMEIResult(ctx context.Context, historyID int64) (*workflow.DeviceIdentity, error) {
	var identity workflow.DeviceIdentity
	path := "/api/get-imei-result/" + strconv.FormatInt(historyID, 10)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}
