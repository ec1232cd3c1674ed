package marketplace

import "errors"

type Outcome int

const (
	// OutcomeFound means an image URL was extracted from the product page.
	OutcomeFound Outcome = iota
	// OutcomeNoImage means the page loaded but no image signal was found.
	OutcomeNoImage
	// OutcomeFetchFailed means the page request failed or returned non-2xx.
	OutcomeFetchFailed
	// OutcomeSkipped means no page URL could be built, no request was made.
	OutcomeSkipped
)

const (
	SentinelNoImage     = "no-image"
	SentinelFetchFailed = "fetch-failed"
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeNoImage:
		return "no-image"
	case OutcomeFetchFailed:
		return "fetch-failed"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// Resolution is the result of looking up the image of one sku.
type Resolution struct {
	// Index is the position of the row this resolution belongs to, it is
	// assigned by the caller.
	Index    int
	SKU      string
	PageURL  string
	ImageURL string
	Outcome  Outcome
}

// Sentinel returns the image url when one was found, otherwise the
// "no-image" or "fetch-failed" marker.
func (r Resolution) Sentinel() string {
	switch r.Outcome {
	case OutcomeFound:
		return r.ImageURL
	case OutcomeFetchFailed:
		return SentinelFetchFailed
	}
	return SentinelNoImage
}

var (
	ErrInvalidImageURL = errors.New("invalid image url")
	ErrImageFetch      = errors.New("image fetch failed")
	ErrNotAnImage      = errors.New("response is not an image")
)
