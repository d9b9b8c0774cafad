// Package cryptopay предоставляет клиент Crypto Pay API (@CryptoBot):
// выставление, опрос и удаление инвойсов, получение курсов валют.
package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Адреса основной и тестовой сети.
const (
	MainnetURL = "https://pay.crypt.bot/api"
	TestnetURL = "https://testnet-pay.crypt.bot/api"
)

const tokenHeader = "Crypto-Pay-API-Token"

// Client инкапсулирует HTTP-взаимодействие с Crypto Pay API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New создает клиент Crypto Pay. При testnet = true запросы идут
// в тестовую сеть.
func New(token string, testnet bool) *Client {
	baseURL := MainnetURL
	if testnet {
		baseURL = TestnetURL
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewWithBaseURL создает клиент с произвольным адресом API.
func NewWithBaseURL(token, baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CreateInvoice выставляет инвойс на указанную сумму в указанной валюте.
func (c *Client) CreateInvoice(ctx context.Context, asset, amount, description string, expiresIn int) (*Invoice, error) {
	const op = "cryptopay.CreateInvoice"
	reqBody := createInvoiceRequest{
		Asset:       asset,
		Amount:      amount,
		Description: description,
		ExpiresIn:   expiresIn,
	}
	var invoice Invoice
	if err := c.call(ctx, "createInvoice", reqBody, &invoice); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &invoice, nil
}

// GetInvoices возвращает инвойсы по их идентификаторам.
func (c *Client) GetInvoices(ctx context.Context, invoiceIDs []string) ([]Invoice, error) {
	const op = "cryptopay.GetInvoices"
	reqBody := map[string]string{
		"invoice_ids": strings.Join(invoiceIDs, ","),
	}
	var result invoicesResult
	if err := c.call(ctx, "getInvoices", reqBody, &result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result.Items, nil
}

// DeleteInvoice удаляет инвойс.
func (c *Client) DeleteInvoice(ctx context.Context, invoiceID int64) error {
	const op = "cryptopay.DeleteInvoice"
	reqBody := map[string]string{
		"invoice_id": strconv.FormatInt(invoiceID, 10),
	}
	var deleted bool
	if err := c.call(ctx, "deleteInvoice", reqBody, &deleted); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetExchangeRates возвращает текущие курсы валют.
func (c *Client) GetExchangeRates(ctx context.Context) ([]ExchangeRate, error) {
	const op = "cryptopay.GetExchangeRates"
	var rates []ExchangeRate
	if err := c.call(ctx, "getExchangeRates", nil, &rates); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rates, nil
}

// GetMe возвращает данные приложения, проверяя валидность токена.
func (c *Client) GetMe(ctx context.Context) (*App, error) {
	const op = "cryptopay.GetMe"
	var app App
	if err := c.call(ctx, "getMe", nil, &app); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &app, nil
}

func (c *Client) call(ctx context.Context, method string, reqBody, result any) error {
	url := c.baseURL + "/" + method

	var body *bytes.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var envelope apiResponse[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !envelope.Ok {
		if envelope.Error != nil {
			return fmt.Errorf("api error %d: %s", envelope.Error.Code, envelope.Error.Name)
		}
		return fmt.Errorf("api error: response not ok")
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
