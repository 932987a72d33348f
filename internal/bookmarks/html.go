package bookmarks

import (
	"fmt"
	"html"
	"strings"
)

// ExportHTML renders a tree in the Netscape bookmark file format, the
// interchange grammar every browser's import dialog accepts. Folder
// nesting and ordering are preserved; ADD_DATE is emitted only when the
// source carried a timestamp.
func ExportHTML(tree *Tree, title string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	b.WriteString("<!-- This is an automatically generated file.\n")
	b.WriteString("     It will be read and overwritten.\n")
	b.WriteString("     DO NOT EDIT! -->\n")
	b.WriteString(`<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">` + "\n")
	fmt.Fprintf(&b, "<TITLE>%s</TITLE>\n", html.EscapeString(title))
	b.WriteString("<H1>Bookmarks</H1>\n")
	b.WriteString("<DL><p>\n")

	writeNodes(&b, tree.Toolbar, 1)

	if len(tree.Other) > 0 {
		indent := strings.Repeat("    ", 1)
		b.WriteString(indent + "<DT><H3>Other Bookmarks</H3>\n")
		b.WriteString(indent + "<DL><p>\n")
		writeNodes(&b, tree.Other, 2)
		b.WriteString(indent + "</DL><p>\n")
	}

	b.WriteString("</DL><p>\n")
	return b.String()
}

func writeNodes(b *strings.Builder, nodes []*Node, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, n := range nodes {
		if n.IsFolder() {
			if n.Added.IsZero() {
				fmt.Fprintf(b, "%s<DT><H3>%s</H3>\n", indent, html.EscapeString(n.Title))
			} else {
				fmt.Fprintf(b, "%s<DT><H3 ADD_DATE=\"%d\">%s</H3>\n",
					indent, n.Added.Unix(), html.EscapeString(n.Title))
			}
			b.WriteString(indent + "<DL><p>\n")
			writeNodes(b, n.Children, depth+1)
			b.WriteString(indent + "</DL><p>\n")
			continue
		}

		if n.Added.IsZero() {
			fmt.Fprintf(b, "%s<DT><A HREF=\"%s\">%s</A>\n",
				indent, html.EscapeString(n.URL), html.EscapeString(n.Title))
		} else {
			fmt.Fprintf(b, "%s<DT><A HREF=\"%s\" ADD_DATE=\"%d\">%s</A>\n",
				indent, html.EscapeString(n.URL), n.Added.Unix(), html.EscapeString(n.Title))
		}
	}
}
