package dimension

import (
	"strings"

	"golang.org/x/net/html"
)

// AutoSizeAttr flags the image whose natural size overrides the poster size.
const AutoSizeAttr = "data-auto-size"

// FindAutoSizeImage returns the src of the first image flagged for automatic
// sizing in markup.
func FindAutoSizeImage(markup string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", false
	}

	var src string
	var found bool
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if found {
			return
		}
		if n.Type == html.ElementNode && n.Data == "img" {
			flagged := false
			var s string
			for _, a := range n.Attr {
				switch a.Key {
				case AutoSizeAttr:
					flagged = a.Val != "false"
				case "src":
					s = a.Val
				}
			}
			if flagged {
				src, found = s, true
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return src, found
}
