// Package bookmarks parses, converts and serializes browser bookmark
// stores. The neutral tree here is the pivot for cross-browser restore:
// Chromium's Bookmarks JSON and Firefox's places.sqlite both convert to
// and from it without losing folder structure, order, or add dates.
package bookmarks

import "time"

// Node is one bookmark or folder. Folders have an empty URL and may
// have children; links never do.
type Node struct {
	Title    string
	URL      string
	Added    time.Time // zero when the source format carried none
	Children []*Node
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool { return n.URL == "" }

// Tree is a profile's full bookmark store: the toolbar ("bookmarks
// bar") and everything else. Both browser families distinguish the two.
type Tree struct {
	Toolbar []*Node
	Other   []*Node
}

// CountLinks returns the number of bookmarks (not folders) in the tree.
func (t *Tree) CountLinks() int {
	return countLinks(t.Toolbar) + countLinks(t.Other)
}

func countLinks(nodes []*Node) int {
	n := 0
	for _, node := range nodes {
		if node.IsFolder() {
			n += countLinks(node.Children)
		} else {
			n++
		}
	}
	return n
}
