package polymarket

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
// Outcomes, prices, and token ids arrive as JSON-encoded string arrays.
type APIMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Category      string   `json:"category"`
	EndDate       string   `json:"endDate"`
	Active        flexBool `json:"active"`
	Closed        flexBool `json:"closed"`
	Outcomes      string   `json:"outcomes"`      // e.g. "[\"Yes\",\"No\"]"
	OutcomePrices string   `json:"outcomePrices"` // e.g. "[\"0.52\",\"0.48\"]"
	ClobTokenIDs  string   `json:"clobTokenIds"`  // e.g. "[\"123\",\"456\"]"
	Liquidity     string   `json:"liquidity"`
	Volume        string   `json:"volume"`
}

// ToDomainMarket converts a Gamma APIMarket to a domain.Market. Malformed
// outcome or price arrays fall back to a default Yes/No market at 50/50
// rather than failing the listing.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ID:       m.ID,
		Question: m.Question,
		Category: m.Category,
		Active:   bool(m.Active),
		Closed:   bool(m.Closed),
	}
	if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
		dm.EndDate = t
	}

	outcomes := decodeStringArray(m.Outcomes)
	if len(outcomes) == 0 {
		outcomes = []string{"Yes", "No"}
	}

	prices := make([]float64, len(outcomes))
	for i, raw := range decodeStringArray(m.OutcomePrices) {
		if i >= len(prices) {
			break
		}
		if p, err := strconv.ParseFloat(raw, 64); err == nil {
			prices[i] = p
		}
	}
	for i := range prices {
		if prices[i] <= 0 || prices[i] >= 1 {
			prices[i] = 0.5
		}
	}

	liquidity, _ := strconv.ParseFloat(m.Liquidity, 64)
	tokenIDs := decodeStringArray(m.ClobTokenIDs)

	for i, outcome := range outcomes {
		tok := domain.Token{
			Outcome:   outcome,
			Price:     prices[i],
			Liquidity: liquidity,
		}
		// A missing token id marks an outcome without a tradable instrument.
		if i < len(tokenIDs) {
			tok.ID = tokenIDs[i]
		}
		dm.Tokens = append(dm.Tokens, tok)
	}

	return dm
}

// decodeStringArray parses a JSON-encoded string array like "[\"a\",\"b\"]".
// Malformed input yields nil.
func decodeStringArray(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIPriceLevel is a single bid/ask level in the CLOB book response.
type APIPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the order book snapshot returned by the CLOB /book endpoint.
type APIBook struct {
	Market    string          `json:"market"`
	AssetID   string          `json:"asset_id"`
	Bids      []APIPriceLevel `json:"bids"`
	Asks      []APIPriceLevel `json:"asks"`
	Timestamp string          `json:"timestamp"`
}

// ToDomainBook converts an APIBook to a domain.OrderBook. Bids are sorted
// best (highest) first, asks best (lowest) first.
func (b *APIBook) ToDomainBook() *domain.OrderBook {
	book := &domain.OrderBook{TokenID: b.AssetID}

	for _, lvl := range b.Bids {
		p, errP := strconv.ParseFloat(lvl.Price, 64)
		s, errS := strconv.ParseFloat(lvl.Size, 64)
		if errP != nil || errS != nil {
			continue
		}
		book.Bids = append(book.Bids, domain.BookLevel{Price: p, Size: s})
	}
	for _, lvl := range b.Asks {
		p, errP := strconv.ParseFloat(lvl.Price, 64)
		s, errS := strconv.ParseFloat(lvl.Size, 64)
		if errP != nil || errS != nil {
			continue
		}
		book.Asks = append(book.Asks, domain.BookLevel{Price: p, Size: s})
	}

	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })

	if ts, err := strconv.ParseInt(b.Timestamp, 10, 64); err == nil {
		book.Timestamp = time.UnixMilli(ts)
	} else {
		book.Timestamp = time.Now()
	}

	return book
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	OrderID  string `json:"orderID,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ToDomainResult maps the CLOB response onto a domain.OrderResult. size and
// price come from the submitted handle because the CLOB response does not
// echo fill details.
func (r *APIOrderResult) ToDomainResult(size, price float64) domain.OrderResult {
	res := domain.OrderResult{OrderID: r.OrderID, Err: r.ErrorMsg}

	switch {
	case !r.Success:
		res.Status = domain.OrderStatusFailed
	case r.Status == "matched":
		res.Status = domain.OrderStatusFilled
		res.FilledSize = size
		res.AvgPrice = price
	default: // "live", "delayed", or missing
		res.Status = domain.OrderStatusPending
	}

	return res
}
