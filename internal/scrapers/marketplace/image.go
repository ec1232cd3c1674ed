package marketplace

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const report_fetch_image = "fetch-image"

var imageContentTokens = []string{"webp", "jpeg", "png", "jpg"}

func isImageContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	if strings.HasPrefix(contentType, "image/") {
		return true
	}
	for _, token := range imageContentTokens {
		if strings.Contains(contentType, token) {
			return true
		}
	}
	return false
}

func validImageURL(imageURL string) bool {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// FetchImage downloads the raw bytes of `imageURL`, sending `referer` (the
// product page) since some storefronts reject hot-linked images.
func (c *Client) FetchImage(ctx context.Context, imageURL, referer string) ([]byte, error) {
	if !validImageURL(imageURL) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidImageURL, imageURL)
	}

	ctx, span := tracer.Start(ctx, "fetch_image")
	defer span.End()
	span.SetAttributes(attribute.String("image_url", imageURL))

	req := c.http.R().SetContext(ctx)
	if referer != "" {
		req.SetHeader("referer", referer)
	}
	res, err := req.Get(imageURL)
	if err != nil {
		c.tel.ReportWarning(report_fetch_image, err, imageURL)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("%w: %w", ErrImageFetch, err)
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		span.SetStatus(codes.Error, res.Status())
		return nil, fmt.Errorf("%w: status %s", ErrImageFetch, res.Status())
	}

	contentType := res.Header().Get("content-type")
	if !isImageContentType(contentType) {
		c.tel.ReportDebug(report_fetch_image, "rejected content type", contentType, imageURL)
		return nil, fmt.Errorf("%w: content type %q", ErrNotAnImage, contentType)
	}

	return res.Body(), nil
}
