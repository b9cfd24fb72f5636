package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const miraklPageSize = 100

type MiraklConfig struct {
	ChannelID   string
	BaseURL     string
	APIKey      string
	ShopID      string
	HTTPTimeout time.Duration
}

// MiraklAdapter talks to a Mirakl-operated marketplace over its REST API.
type MiraklAdapter struct {
	cfg    MiraklConfig
	client *http.Client
}

func NewMiraklAdapter(cfg MiraklConfig) *MiraklAdapter {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &MiraklAdapter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (a *MiraklAdapter) ChannelID() string {
	return a.cfg.ChannelID
}

func (a *MiraklAdapter) PublishCatalogEntry(ctx context.Context, product *Product) (string, error) {
	// Mirakl upserts offers by shop SKU, which makes this call idempotent:
	// re-publishing an already listed product updates the existing offer.
	payload := map[string]interface{}{
		"shop_sku":          product.SKU,
		"product_title":     product.Name,
		"price":             centsToDecimal(product.PriceCents),
		"currency_iso_code": strings.ToUpper(product.Currency),
		"quantity":          product.Stock,
		"state_code":        "11",
		"update_delete":     "update",
	}

	body, err := a.doJSON(ctx, http.MethodPost, "/api/offers", nil, payload)
	if err != nil {
		return "", err
	}

	var resp struct {
		OfferID int64 `json:"offer_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", Permanent("publish_catalog_entry", err)
	}
	if resp.OfferID == 0 {
		return "", Permanent("publish_catalog_entry", errors.New("mirakl offer id missing"))
	}

	return strconv.FormatInt(resp.OfferID, 10), nil
}

func (a *MiraklAdapter) UpdateStock(ctx context.Context, externalRef string, quantity int32) error {
	payload := map[string]interface{}{"quantity": quantity}
	_, err := a.doJSON(ctx, http.MethodPut, "/api/offers/"+url.PathEscape(externalRef)+"/stock", nil, payload)
	return err
}

func (a *MiraklAdapter) UpdatePrice(ctx context.Context, externalRef string, amountCents int64) error {
	payload := map[string]interface{}{"price": centsToDecimal(amountCents)}
	_, err := a.doJSON(ctx, http.MethodPut, "/api/offers/"+url.PathEscape(externalRef)+"/price", nil, payload)
	return err
}

func (a *MiraklAdapter) EndListing(ctx context.Context, externalRef, reason string) error {
	query := url.Values{}
	if strings.TrimSpace(reason) != "" {
		query.Set("reason", strings.TrimSpace(reason))
	}
	_, err := a.doJSON(ctx, http.MethodDelete, "/api/offers/"+url.PathEscape(externalRef), query, nil)
	return err
}

// FetchOrdersSince pages through the order list until the marketplace
// reports no more rows and returns the full set to the caller.
func (a *MiraklAdapter) FetchOrdersSince(ctx context.Context, since time.Time) ([]*ExternalOrder, error) {
	orders := make([]*ExternalOrder, 0)
	offset := 0

	for {
		query := url.Values{}
		query.Set("start_update_date", since.UTC().Format(time.RFC3339))
		query.Set("max", strconv.Itoa(miraklPageSize))
		query.Set("offset", strconv.Itoa(offset))

		body, err := a.doJSON(ctx, http.MethodGet, "/api/orders", query, nil)
		if err != nil {
			return nil, err
		}

		var page struct {
			Orders []struct {
				OrderID     string `json:"order_id"`
				State       string `json:"order_state"`
				CustomerID  string `json:"customer_id"`
				TotalPrice  string `json:"total_price"`
				Currency    string `json:"currency_iso_code"`
				CreatedDate string `json:"created_date"`
				OrderLines  []struct {
					OrderLineID string `json:"order_line_id"`
					OfferSKU    string `json:"offer_sku"`
					Quantity    int32  `json:"quantity"`
					PriceUnit   string `json:"price_unit"`
				} `json:"order_lines"`
			} `json:"orders"`
			TotalCount int `json:"total_count"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, Permanent("fetch_orders", err)
		}

		for _, raw := range page.Orders {
			order := &ExternalOrder{
				ExternalID:  raw.OrderID,
				Status:      raw.State,
				CustomerRef: raw.CustomerID,
				TotalCents:  decimalToCents(raw.TotalPrice),
				Currency:    strings.ToUpper(raw.Currency),
			}
			if created, err := time.Parse(time.RFC3339, raw.CreatedDate); err == nil {
				order.CreatedAt = created
			}
			for _, line := range raw.OrderLines {
				order.Lines = append(order.Lines, ExternalOrderLine{
					LineRef:        line.OrderLineID,
					ExternalSKU:    line.OfferSKU,
					Quantity:       line.Quantity,
					UnitPriceCents: decimalToCents(line.PriceUnit),
				})
			}
			orders = append(orders, order)
		}

		offset += len(page.Orders)
		if len(page.Orders) < miraklPageSize || offset >= page.TotalCount {
			return orders, nil
		}
	}
}

func (a *MiraklAdapter) FulfillOrder(ctx context.Context, externalRef string, tracking TrackingInfo) error {
	payload := map[string]interface{}{
		"carrier_code":    tracking.Carrier,
		"tracking_number": tracking.TrackingNumber,
	}
	if _, err := a.doJSON(ctx, http.MethodPut, "/api/orders/"+url.PathEscape(externalRef)+"/tracking", nil, payload); err != nil {
		return err
	}

	_, err := a.doJSON(ctx, http.MethodPut, "/api/orders/"+url.PathEscape(externalRef)+"/ship", nil, nil)
	return err
}

func (a *MiraklAdapter) IssueRefund(ctx context.Context, externalRef, lineRef string, amountCents int64, reason string) error {
	payload := map[string]interface{}{
		"refunds": []map[string]interface{}{
			{
				"order_line_id": lineRef,
				"amount":        centsToDecimal(amountCents),
				"reason_code":   reason,
			},
		},
	}
	_, err := a.doJSON(ctx, http.MethodPut, "/api/orders/"+url.PathEscape(externalRef)+"/refund", nil, payload)
	return err
}

func (a *MiraklAdapter) doJSON(ctx context.Context, method, path string, query url.Values, payload interface{}) ([]byte, error) {
	op := method + " " + path

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, Permanent(op, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	endpoint := a.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, Permanent(op, err)
	}
	req.Header.Set("Authorization", a.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if a.cfg.ShopID != "" {
		req.Header.Set("X-Shop-Id", a.cfg.ShopID)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, Transient(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient(op, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, Transient(op, fmt.Errorf("mirakl request failed: status=%d body=%s", resp.StatusCode, truncateBody(body)))
	}
	if resp.StatusCode >= 400 {
		return nil, Permanent(op, fmt.Errorf("mirakl request failed: status=%d body=%s", resp.StatusCode, truncateBody(body)))
	}

	return body, nil
}

func centsToDecimal(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}

func decimalToCents(value string) int64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(parsed * 100))
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max])
}
