package marketplace

import (
	"encoding/json"
	"strings"

	"posheet/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

type metaProbe struct {
	attr  string
	value string
}

var metaProbes = []metaProbe{
	{attr: "property", value: "og:image"},
	{attr: "name", value: "og:image"},
	{attr: "property", value: "twitter:image"},
	{attr: "name", value: "twitter:image"},
	{attr: "property", value: "og:image:url"},
}

var imageSelectors = []string{
	"#rakutenLimitedId_ImageMain img",
	"#productMainImage img",
	"#page-body img",
	"img",
}

// ExtractImage returns the most likely product image url in `doc` or an
// empty string. Meta tags take precedence over structured data which takes
// precedence over <img> elements.
func ExtractImage(doc *goquery.Document) string {
	link := fromMeta(doc)
	if link == "" {
		link = fromStructuredData(doc)
	}
	if link == "" {
		link = fromSelectors(doc)
	}
	return htmlutil.ResolveProtocolRelative(link)
}

func fromMeta(doc *goquery.Document) string {
	for _, probe := range metaProbes {
		probe := probe // per-iteration copy (Go 1.21 loop semantics)
		var found string
		doc.Find("meta").EachWithBreak(func(_ int, meta *goquery.Selection) bool {
			if meta.AttrOr(probe.attr, "") != probe.value {
				return true
			}
			found = strings.TrimSpace(meta.AttrOr("content", ""))
			// only the first matching tag is considered, like a find()
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func fromStructuredData(doc *goquery.Document) string {
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, script *goquery.Selection) bool {
		if len(script.Nodes) == 0 {
			return true
		}
		var data any
		err := json.Unmarshal([]byte(htmlutil.GetText(script.Nodes[0])), &data)
		if err != nil {
			return true
		}
		found = productImage(data)
		return found == ""
	})
	return found
}

// productImage walks a decoded JSON-LD value (an object, a list of objects or
// an object with an @graph) and returns the image of the first Product.
func productImage(data any) string {
	switch value := data.(type) {
	case []any:
		for _, node := range value {
			link := productImage(node)
			if link != "" {
				return link
			}
		}
	case map[string]any:
		if isProduct(value["@type"]) {
			link := imageField(value["image"])
			if link != "" {
				return link
			}
		}
		if graph, ok := value["@graph"]; ok {
			return productImage(graph)
		}
	}
	return ""
}

func isProduct(kind any) bool {
	switch value := kind.(type) {
	case string:
		return value == "Product"
	case []any:
		for _, entry := range value {
			if entry == "Product" {
				return true
			}
		}
	}
	return false
}

func imageField(image any) string {
	switch value := image.(type) {
	case string:
		return strings.TrimSpace(value)
	case []any:
		if len(value) > 0 {
			return imageField(value[0])
		}
	case map[string]any:
		link, _ := value["url"].(string)
		return strings.TrimSpace(link)
	}
	return ""
}

func fromSelectors(doc *goquery.Document) string {
	for _, selector := range imageSelectors {
		img := doc.Find(selector).First()
		if img.Length() == 0 {
			continue
		}
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" {
			src = strings.TrimSpace(img.AttrOr("data-src", ""))
		}
		if src != "" {
			return src
		}
	}
	return ""
}
