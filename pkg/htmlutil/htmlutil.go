package htmlutil

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// GetText concatenates every text node under `node`.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// ResolveProtocolRelative trims `link` and turns a protocol-relative
// reference (`//host/path`) into an https one.
func ResolveProtocolRelative(link string) string {
	link = strings.TrimSpace(link)
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}
	return link
}
