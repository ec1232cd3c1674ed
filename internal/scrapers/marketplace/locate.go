package marketplace

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"posheet/internal/sku"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_resolve_fetch_page = "resolve.fetch-page"
	report_resolve_parse_page = "resolve.parse-page"
	report_resolve_outcome    = "resolve.outcome"
)

// PageURL builds `<base>/<shop_id>/<base_code>/`, it returns an empty string
// when either the shop id or the base code of `itemSku` is empty.
func PageURL(baseURL, shopID, itemSku string) string {
	shopID = strings.TrimSpace(shopID)
	code := sku.BaseCode(itemSku)
	if shopID == "" || code == "" {
		return ""
	}
	return fmt.Sprintf(
		"%s/%s/%s/",
		strings.TrimSuffix(baseURL, "/"),
		url.PathEscape(shopID),
		url.PathEscape(code),
	)
}

// Resolve finds the product image of `itemSku` in the shop `shopID`. It never
// returns an error, every failure is expressed through the outcome.
func (c *Client) Resolve(ctx context.Context, itemSku, shopID string) Resolution {
	result := Resolution{SKU: itemSku}

	pageURL := PageURL(c.baseURL, shopID, itemSku)
	if pageURL == "" {
		result.Outcome = OutcomeSkipped
		return result
	}
	result.PageURL = pageURL

	if cached, ok := c.cache.get(pageURL); ok {
		c.tel.ReportDebug(report_resolve_outcome, itemSku, "cached", cached.Outcome.String())
		cached.SKU = itemSku
		return cached
	}

	ctx, span := tracer.Start(ctx, "resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("sku", itemSku),
		attribute.String("page_url", pageURL),
	)

	res, err := c.http.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		c.tel.ReportWarning(report_resolve_fetch_page, fmt.Errorf("fetch: %w", err), pageURL)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch page")
		result.Outcome = OutcomeFetchFailed
		return result
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		c.tel.ReportWarning(report_resolve_fetch_page, fmt.Errorf("fetch: unexpected status %s", res.Status()), pageURL)
		span.SetStatus(codes.Error, res.Status())
		result.Outcome = OutcomeFetchFailed
		return result
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(report_resolve_parse_page, fmt.Errorf("parse: %w", err), pageURL)
		result.Outcome = OutcomeNoImage
		return result
	}

	result.ImageURL = ExtractImage(doc)
	if result.ImageURL == "" {
		result.Outcome = OutcomeNoImage
	} else {
		result.Outcome = OutcomeFound
	}
	span.SetAttributes(attribute.String("outcome", result.Outcome.String()))
	c.tel.ReportDebug(report_resolve_outcome, itemSku, result.Outcome.String(), result.ImageURL)

	c.cache.put(pageURL, result)
	return result
}
