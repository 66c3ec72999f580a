// Package catalog предоставляет клиент внешнего сервиса каталога товаров.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rgshop/shop-system/internal/service"
)

// Client инкапсулирует HTTP-взаимодействие с сервисом каталога.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент каталога по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type itemResponse struct {
	Title          string `json:"title"`
	VariantLabel   string `json:"variant_label"`
	UnitPricePaise int64  `json:"unit_price_paise"`
	InStock        bool   `json:"in_stock"`
}

// ResolveItem запрашивает снимок позиции каталога. Неизвестный товар или
// вариант возвращается как nil без ошибки.
func (c *Client) ResolveItem(ctx context.Context, productID, variantID string) (*service.CatalogItem, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("catalog client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	reqURL := fmt.Sprintf("%s/api/catalog/items/%s", base, url.PathEscape(productID))
	if variantID != "" {
		reqURL += "?variant=" + url.QueryEscape(variantID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var item itemResponse
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &service.CatalogItem{
		Title:          item.Title,
		VariantLabel:   item.VariantLabel,
		UnitPricePaise: item.UnitPricePaise,
		InStock:        item.InStock,
	}, nil
}
