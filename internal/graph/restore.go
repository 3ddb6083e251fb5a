package graph

// Restore adds a Link read back from storage, keeping everything that was
// learned about it. The Link receives a fresh ID and its depth is reset so
// a new depth pass can run; requested anchors must be restored separately
// with AddRequestedAnchor once their parents exist.
//
// When the URL is already present the existing Link is returned unchanged.
func (g *Graph) Restore(stored Link) *Link {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.index[stored.URL]; ok {
		return g.links[id]
	}
	link := &Link{
		ID:            LinkID(len(g.links)),
		URL:           stored.URL,
		Scheme:        stored.Scheme,
		Host:          stored.Host,
		Path:          stored.Path,
		Query:         stored.Query,
		IsInternal:    stored.IsInternal,
		Yanked:        stored.Yanked,
		IsFetched:     stored.IsFetched,
		Status:        stored.Status,
		MimeType:      stored.MimeType,
		Encoding:      stored.Encoding,
		Size:          stored.Size,
		Mtime:         stored.Mtime,
		Title:         stored.Title,
		Author:        stored.Author,
		RedirectDepth: stored.RedirectDepth,
		Depth:         NoDepth,
		IsPage:        stored.IsPage,
		LinkProblems:  append([]string(nil), stored.LinkProblems...),
		PageProblems:  append([]string(nil), stored.PageProblems...),
		Anchors:       append([]string(nil), stored.Anchors...),
	}
	g.links = append(g.links, link)
	g.index[link.URL] = link.ID
	return link
}

// RestoreChild re-creates the navigational edge parent→target.
func (g *Graph) RestoreChild(parent, target *Link) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.link(parent, target, g.childEdges, &parent.children)
}

// RestoreEmbed re-creates the embed edge parent→target.
func (g *Graph) RestoreEmbed(parent, target *Link) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.link(parent, target, g.embedEdges, &parent.embedded)
}
