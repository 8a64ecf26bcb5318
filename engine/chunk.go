package engine

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxChunkSize is the hard ceiling the translation backends accept per
// request.
const maxChunkSize = 5000

// ChunkHTML splits an HTML fragment into pieces no longer than maxLen,
// cutting only between sibling blocks so no tag is ever split mid-element.
// An oversize block is subdivided along its nested blocks; a block with
// nothing left to subdivide passes through whole, oversize or not.
func ChunkHTML(fragment string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = maxChunkSize
	}
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	if len(fragment) <= maxLen {
		return []string{fragment}
	}

	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return []string{fragment}
	}

	var pieces []string
	for _, n := range nodes {
		pieces = append(pieces, renderPieces(n, maxLen)...)
	}

	// Pack consecutive pieces back together up to the limit.
	var chunks []string
	var current strings.Builder
	for _, piece := range pieces {
		if current.Len() > 0 && current.Len()+len(piece) > maxLen {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(piece)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// renderPieces renders a node whole when it fits, or splits it along its
// children when it does not. Oversize text runs split on blank lines, the
// block boundary plain-text chapters have.
func renderPieces(n *html.Node, maxLen int) []string {
	s := renderNode(n)
	if len(s) <= maxLen {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return []string{s}
	}
	if n.Type == html.TextNode {
		return splitTextBlocks(n.Data)
	}
	if n.Type != html.ElementNode || n.FirstChild == nil {
		return []string{s}
	}

	var pieces []string
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		pieces = append(pieces, renderPieces(child, maxLen)...)
	}
	return pieces
}

// splitTextBlocks cuts plain text into paragraph pieces. A single
// paragraph beyond the limit passes through whole; it has no boundary to
// cut at.
func splitTextBlocks(text string) []string {
	paragraphs := strings.Split(text, "\n\n")
	var pieces []string
	for i, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if i < len(paragraphs)-1 {
			p += "\n\n"
		}
		pieces = append(pieces, p)
	}
	return pieces
}

func renderNode(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}
