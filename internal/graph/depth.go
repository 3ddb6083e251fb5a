package graph

import "fmt"

// ComputeDepths assigns every reachable Link its shortest hop count from the
// base URLs and returns the roots of the page hierarchy.
//
// The first base URL always roots the hierarchy, even when pages link back
// to it; further base URLs only do so when nothing else refers to them.
// Base URLs are resolved through their redirect chains first, dropping hops
// nothing else refers to.
//
// It must only run once discovery has finished.
func (g *Graph) ComputeDepths(bases []string) []*Link {
	g.mu.Lock()
	defer g.mu.Unlock()

	var roots []*Link
	seen := make(map[LinkID]struct{})
	for i, base := range bases {
		key, err := Key(base)
		if err != nil {
			continue
		}
		id, ok := g.index[key]
		if !ok {
			continue
		}
		link := g.resolveAndPrune(g.links[id])
		if link == nil {
			continue
		}
		if _, dup := seen[link.ID]; dup {
			continue
		}
		if i == 0 || len(link.parents) == 0 {
			seen[link.ID] = struct{}{}
			roots = append(roots, link)
		}
	}

	queue := make([]*Link, 0, len(roots))
	queued := make(map[LinkID]struct{}, len(roots))
	for _, root := range roots {
		root.Depth = 0
		queue = append(queue, root)
		queued[root.ID] = struct{}{}
	}
	for len(queue) > 0 {
		link := queue[0]
		queue = queue[1:]
		for _, child := range g.pageChildren(link) {
			if _, ok := queued[child.ID]; ok || child.Depth != link.Depth+1 {
				continue
			}
			queued[child.ID] = struct{}{}
			queue = append(queue, child)
		}
	}
	return roots
}

// PageChildren returns the pages directly below l in the page hierarchy.
func (g *Graph) PageChildren(l *Link) []*Link {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pageChildren(l)
}

// pageChildren computes and memoizes the redirect-resolved, embed-merged
// page children of l. The caller holds g.mu.
func (g *Graph) pageChildren(l *Link) []*Link {
	if l.pageDone {
		return g.resolveIDs(l.pageChildren)
	}
	// Memoized before recursing so embed cycles terminate.
	l.pageDone = true
	l.pageChildren = nil

	var ids []LinkID
	seen := make(map[LinkID]struct{})
	for _, id := range l.children {
		child := g.get(id)
		if child == nil {
			continue
		}
		child = g.resolve(child)
		if child == nil {
			continue
		}
		if _, dup := seen[child.ID]; dup {
			continue
		}
		seen[child.ID] = struct{}{}
		if child.Depth == NoDepth && l.Depth != NoDepth {
			child.Depth = l.Depth + 1
		}
		if child.IsPage {
			ids = append(ids, child.ID)
		}
	}
	for _, id := range l.embedded {
		embed := g.get(id)
		if embed == nil {
			continue
		}
		if embed.Depth == NoDepth {
			embed.Depth = l.Depth
		}
		for _, pc := range g.pageChildren(embed) {
			ids, _ = appendID(ids, pc.ID)
		}
	}
	l.pageChildren = ids
	return g.resolveIDs(ids)
}

// CheckAnchors reports every reference to an anchor that a fetched page
// does not define. The problem is recorded on the referring page.
func (g *Graph) CheckAnchors() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	var count int
	for _, l := range g.links {
		if l.pruned || !l.IsFetched || !l.IsPage {
			continue
		}
		for _, ra := range l.RequestedAnchors {
			if l.HasAnchor(ra.Anchor) {
				continue
			}
			parent := g.get(ra.Parent)
			if parent == nil {
				continue
			}
			g.addPageProblem(parent, fmt.Sprintf("bad link: %s#%s: unknown anchor", l.URL, ra.Anchor))
			count++
		}
	}
	return count
}
