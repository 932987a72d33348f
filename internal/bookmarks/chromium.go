package bookmarks

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Chromium's Bookmarks file is JSON with fixed roots and timestamps in
// microseconds since 1601-01-01 UTC (the Windows FILETIME epoch).

var chromeEpoch = time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)

func fromChromeTime(s string) time.Time {
	micros, err := strconv.ParseInt(s, 10, 64)
	if err != nil || micros == 0 {
		return time.Time{}
	}
	return chromeEpoch.Add(time.Duration(micros) * time.Microsecond)
}

func toChromeTime(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.Sub(chromeEpoch).Microseconds(), 10)
}

type chromiumNode struct {
	Children  []*chromiumNode `json:"children,omitempty"`
	DateAdded string          `json:"date_added,omitempty"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	URL       string          `json:"url,omitempty"`
}

type chromiumFile struct {
	Version int                      `json:"version"`
	Roots   map[string]*chromiumNode `json:"roots"`
}

// ParseChromium reads a Chromium Bookmarks JSON file into a Tree.
func ParseChromium(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bookmarks file: %w", err)
	}
	var file chromiumFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing bookmarks file: %w", err)
	}

	tree := &Tree{}
	if bar := file.Roots["bookmark_bar"]; bar != nil {
		tree.Toolbar = fromChromiumNodes(bar.Children)
	}
	if other := file.Roots["other"]; other != nil {
		tree.Other = fromChromiumNodes(other.Children)
	}
	// "synced" bookmarks belong to no visible folder; fold them into
	// Other so nothing is dropped.
	if synced := file.Roots["synced"]; synced != nil {
		tree.Other = append(tree.Other, fromChromiumNodes(synced.Children)...)
	}
	return tree, nil
}

func fromChromiumNodes(nodes []*chromiumNode) []*Node {
	var out []*Node
	for _, cn := range nodes {
		switch cn.Type {
		case "folder":
			out = append(out, &Node{
				Title:    cn.Name,
				Added:    fromChromeTime(cn.DateAdded),
				Children: fromChromiumNodes(cn.Children),
			})
		case "url":
			out = append(out, &Node{
				Title: cn.Name,
				URL:   cn.URL,
				Added: fromChromeTime(cn.DateAdded),
			})
		}
	}
	return out
}

// WriteChromium serializes a Tree back to the Chromium Bookmarks JSON
// layout. Used when restoring a Firefox backup into a Chromium profile.
func WriteChromium(tree *Tree, path string) error {
	file := chromiumFile{
		Version: 1,
		Roots: map[string]*chromiumNode{
			"bookmark_bar": {
				Name:     "Bookmarks bar",
				Type:     "folder",
				Children: toChromiumNodes(tree.Toolbar),
			},
			"other": {
				Name:     "Other bookmarks",
				Type:     "folder",
				Children: toChromiumNodes(tree.Other),
			},
			"synced": {
				Name:     "Mobile bookmarks",
				Type:     "folder",
				Children: []*chromiumNode{},
			},
		},
	}
	data, err := json.MarshalIndent(&file, "", "   ")
	if err != nil {
		return fmt.Errorf("marshaling bookmarks: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing bookmarks file: %w", err)
	}
	return nil
}

func toChromiumNodes(nodes []*Node) []*chromiumNode {
	out := make([]*chromiumNode, 0, len(nodes))
	for _, n := range nodes {
		cn := &chromiumNode{
			Name:      n.Title,
			DateAdded: toChromeTime(n.Added),
		}
		if n.IsFolder() {
			cn.Type = "folder"
			cn.Children = toChromiumNodes(n.Children)
		} else {
			cn.Type = "url"
			cn.URL = n.URL
		}
		out = append(out, cn)
	}
	return out
}
