package export

import (
	"errors"

	"posheet/internal/orders"
	"posheet/internal/scrapers/marketplace"
	"posheet/internal/thumbnail"
)

const (
	SheetOrders   = "発注書"
	SheetFailures = "画像取得失敗"
)

// Headers is the caption row of the order sheet. Column B holds the photo.
var Headers = []any{
	"", "写真", "sku", "購入数", "単価",
	"特記事項", "商品名称", "商品URL", "変更後URL",
	"サイズ", "色", "中国内送料",
	"単価", "合計", "発注日",
	"",
}

var FailureHeaders = []any{"sku", "商品URL", "画像URL", "理由"}

// Reason explains why a row does not carry a directly embedded image.
type Reason string

const (
	ReasonNoURL           Reason = "no-url"
	ReasonNoImage         Reason = "no-image"
	ReasonPageFetchFailed Reason = "page-fetch-failed"
	ReasonFetchFailed     Reason = "fetch-failed"
	ReasonNotAnImage      Reason = "not-an-image"
	ReasonDecodeFailed    Reason = "decode-failed"
	ReasonEmbedFailed     Reason = "embed-failed"
	ReasonImageFormula    Reason = "image-formula"
)

// Row is a merged order row together with the resolution of its image.
type Row struct {
	orders.MergedRow
	Image marketplace.Resolution
}

func (r Row) ProductURL() string {
	if r.Master == nil {
		return ""
	}
	return r.Master.ProductURL
}

type Failure struct {
	SKU        string
	ProductURL string
	ImageURL   string
	Reason     Reason
}

type Summary struct {
	Embedded int
	Fallback int
	Failed   int
}

type Result struct {
	Workbook []byte
	Summary  Summary
	Failures []Failure
}

// unresolvedReason maps a resolution that did not find an image to a reason.
func unresolvedReason(res marketplace.Resolution) Reason {
	switch res.Outcome {
	case marketplace.OutcomeSkipped:
		return ReasonNoURL
	case marketplace.OutcomeFetchFailed:
		return ReasonPageFetchFailed
	}
	return ReasonNoImage
}

// ReasonOf maps an error returned by an ImageSource to a reason.
func ReasonOf(err error) Reason {
	switch {
	case errors.Is(err, marketplace.ErrNotAnImage):
		return ReasonNotAnImage
	case errors.Is(err, thumbnail.ErrDecode), errors.Is(err, thumbnail.ErrEncode):
		return ReasonDecodeFailed
	}
	return ReasonFetchFailed
}
