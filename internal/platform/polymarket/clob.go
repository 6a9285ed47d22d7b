package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/arbscan/internal/crypto"
	"github.com/alanyoungcy/arbscan/internal/domain"
)

// amountScale is the fixed-point scale for CLOB maker/taker amounts
// (USDC has 6 decimals; outcome shares use the same scale).
const amountScale = 1_000_000

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API. It implements domain.QuoteSource and domain.OrderGateway.
// The signer and HMAC credentials are only needed for order endpoints;
// a read-only client may pass nil for both.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string, signer *crypto.Signer, hmac *crypto.HMACAuth) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:   signer,
		hmacAuth: hmac,
	}
}

// BestPrices returns the top-of-book quote for a token. A (nil, nil) return
// means the instrument has no live book; callers skip it for the pass.
func (c *ClobClient) BestPrices(ctx context.Context, tokenID string) (*domain.Quote, error) {
	book, err := c.OrderBook(ctx, tokenID)
	if err != nil || book == nil {
		return nil, err
	}

	quote := &domain.Quote{Bid: book.BestBid(), Ask: book.BestAsk()}
	if quote.Bid == 0 && quote.Ask == 0 {
		return nil, nil
	}
	return quote, nil
}

// OrderBook fetches the full book for a token. A (nil, nil) return means the
// CLOB has no book for the instrument.
func (c *ClobClient) OrderBook(ctx context.Context, tokenID string) (*domain.OrderBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doRequest(ctx, http.MethodGet, "/book?"+params.Encode(), nil)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	var apiBook APIBook
	if err := json.Unmarshal(body, &apiBook); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	if len(apiBook.Bids) == 0 && len(apiBook.Asks) == 0 {
		return nil, nil
	}

	book := apiBook.ToDomainBook()
	book.TokenID = tokenID
	return book, nil
}

// CreateOrder builds and signs an order for one trade leg at the given limit
// price. The signed payload is carried opaquely in the handle until PostOrder.
func (c *ClobClient) CreateOrder(_ context.Context, leg domain.Trade, limitPrice float64) (*domain.OrderHandle, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("polymarket/clob: %w: no signer configured", domain.ErrUnauthorized)
	}
	if leg.Size <= 0 || limitPrice <= 0 || limitPrice >= 1 {
		return nil, fmt.Errorf("polymarket/clob: %w: size=%.4f price=%.4f",
			domain.ErrInvalidOrder, leg.Size, limitPrice)
	}

	// Maker gives, taker receives. For a BUY the maker amount is quote
	// currency and the taker amount is shares; a SELL is the inverse.
	shares := big.NewInt(int64(leg.Size * amountScale))
	quote := big.NewInt(int64(leg.Size * limitPrice * amountScale))

	var side int
	makerAmount, takerAmount := quote, shares
	if leg.Side == domain.OrderSideSell {
		side = 1
		makerAmount, takerAmount = shares, quote
	}

	address := c.signer.Address().Hex()
	payload := crypto.OrderPayload{
		Salt:        fmt.Sprintf("%d", rand.Int63()),
		Maker:       address,
		Signer:      address,
		Taker:       "0x0000000000000000000000000000000000000000",
		TokenID:     leg.TokenID,
		MakerAmount: makerAmount.String(),
		TakerAmount: takerAmount.String(),
		Expiration:  "0",
		Nonce:       "0",
		FeeRateBps:  "0",
		Side:        side,
	}

	sig, err := c.signer.SignOrder(payload)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: sign order: %w", err)
	}

	wire, err := json.Marshal(map[string]any{
		"order": map[string]any{
			"salt":        payload.Salt,
			"tokenID":     payload.TokenID,
			"makerAmount": payload.MakerAmount,
			"takerAmount": payload.TakerAmount,
			"side":        string(leg.Side),
			"feeRateBps":  payload.FeeRateBps,
			"nonce":       payload.Nonce,
			"expiration":  payload.Expiration,
			"signature":   sig,
			"maker":       payload.Maker,
			"signer":      payload.Signer,
			"taker":       payload.Taker,
		},
		"owner":     address,
		"orderType": "GTC",
	})
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: encode order: %w", err)
	}

	return &domain.OrderHandle{
		TokenID: leg.TokenID,
		Side:    leg.Side,
		Price:   limitPrice,
		Size:    leg.Size,
		Payload: string(wire),
	}, nil
}

// PostOrder submits a previously created order to the CLOB.
func (c *ClobClient) PostOrder(ctx context.Context, handle domain.OrderHandle) (domain.OrderResult, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/order", []byte(handle.Payload))
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(body, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}

	return apiResult.ToDomainResult(handle.Size, handle.Price), nil
}

// CancelOrder cancels a single order by its ID.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	payload, err := json.Marshal(map[string]any{"orderID": orderID})
	if err != nil {
		return fmt.Errorf("polymarket/clob: encode cancel: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodDelete, "/order", payload)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}

	var result struct {
		Success  bool   `json:"success"`
		ErrorMsg string `json:"errorMsg"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("polymarket/clob: cancel failed: %s", result.ErrorMsg)
	}

	return nil
}

// DeriveAPIKey performs the CLOB auth flow to obtain HMAC credentials. It
// signs a ClobAuth EIP-712 message and sends it with L1 headers to the
// derive-api-key endpoint. On success it populates the client's hmacAuth.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	if c.signer == nil {
		return fmt.Errorf("polymarket/clob: %w: no signer configured", domain.ErrUnauthorized)
	}

	address := c.signer.Address().Hex()
	timestamp := time.Now().Unix()
	nonce := int64(0)

	sig, err := c.signer.SignAuthMessage(address, timestamp, nonce)
	if err != nil {
		return fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", fmt.Sprintf("%d", timestamp))
	req.Header.Set("POLY_NONCE", fmt.Sprintf("%d", nonce))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket/clob: auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: read auth response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polymarket/clob: auth failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}

	c.hmacAuth = &crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, signs (HMAC, when credentials are present), sends, and
// reads an HTTP request against the CLOB API. It returns the raw response
// body.
func (c *ClobClient) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.hmacAuth != nil && c.signer != nil {
		headers := c.hmacAuth.L2Headers(c.signer.Address().Hex(), method, path, string(body))
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
