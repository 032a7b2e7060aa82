package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HeaderPassengerID — заголовок, которым API определяет пассажира.
const HeaderPassengerID = "X-Passenger-ID"

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// BookingResponse — бронирование из API.
type BookingResponse struct {
	BookingID string `json:"booking_id"`
	RideID    string `json:"ride_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// BookingPageResponse — страница бронирований из API.
type BookingPageResponse struct {
	Items      []BookingResponse `json:"items"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalCount int               `json:"total_count"`
}

// QueueStats — глубина очереди из API.
type QueueStats struct {
	Queue     string `json:"queue"`
	Messages  int    `json:"messages"`
	Consumers int    `json:"consumers"`
}

// DeadLetter — сообщение из DLQ.
type DeadLetter struct {
	MessageID  string         `json:"message_id"`
	RetryCount int            `json:"retry_count"`
	Reason     string         `json:"reason,omitempty"`
	Timestamp  string         `json:"timestamp"`
	Event      map[string]any `json:"event,omitempty"`
	Body       string         `json:"body"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Carpooling API.
type Client struct {
	baseURL     string
	passengerID string
	httpClient  *http.Client
}

// NewClient создаёт клиент для API.
// passengerID передаётся в X-Passenger-ID; для команд dlq он не нужен.
func NewClient(baseURL, passengerID string) *Client {
	return &Client{
		baseURL:     baseURL,
		passengerID: passengerID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Bookings ---

// CreateBooking бронирует место в поездке.
func (c *Client) CreateBooking(rideID string) (*BookingResponse, error) {
	body := map[string]string{"ride_id": rideID}
	var b BookingResponse
	err := c.post("/api/v1/bookings", body, &b)
	return &b, err
}

// ListMyBookings возвращает страницу бронирований пассажира.
func (c *Client) ListMyBookings(page, pageSize int) (*BookingPageResponse, error) {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		params.Set("page_size", strconv.Itoa(pageSize))
	}

	path := "/api/v1/bookings/my"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var p BookingPageResponse
	err := c.get(path, &p)
	return &p, err
}

// CancelBooking отменяет бронирование.
func (c *Client) CancelBooking(id string) error {
	return c.delete("/api/v1/bookings/" + id)
}

// --- DLQ ---

// DLQStats возвращает глубины очередей.
func (c *Client) DLQStats() ([]QueueStats, error) {
	var resp struct {
		Queues []QueueStats `json:"queues"`
	}
	err := c.get("/api/v1/admin/dlq", &resp)
	return resp.Queues, err
}

// PeekDLQ возвращает до limit сообщений из DLQ, не забирая их.
func (c *Client) PeekDLQ(limit int) ([]DeadLetter, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var letters []DeadLetter
	err := c.list("/api/v1/admin/dlq/messages", params, &letters)
	return letters, err
}

// ReplayDLQ переносит до limit сообщений из DLQ в booking_queue.
func (c *Client) ReplayDLQ(limit int) (int, error) {
	body := map[string]int{"limit": limit}
	var resp struct {
		Replayed int `json:"replayed"`
	}
	err := c.post("/api/v1/admin/dlq/replay", body, &resp)
	return resp.Replayed, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.passengerID != "" {
		req.Header.Set(HeaderPassengerID, c.passengerID)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
