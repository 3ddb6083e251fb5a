package graph

import (
	"context"
	"fmt"
)

// AddRedirect records that fetching l answered with a redirect to raw.
//
// A redirect whose target already resolves back to l is reported on both
// ends and not recorded. Otherwise the redirect depth of l becomes one more
// than the deepest of l and its parents; a chain longer than the configured
// maximum is reported on l and not followed. In every other case the target
// becomes the only child of l.
//
// Redirect edges are recorded for external links too, since following the
// redirect is part of checking the link.
func (g *Graph) AddRedirect(ctx context.Context, l *Link, raw string) error {
	u, _, err := Normalize(raw)
	if err != nil {
		return err
	}
	key := u.String()

	g.mu.Lock()
	if id, ok := g.index[key]; ok {
		target := g.links[id]
		if g.resolve(target) == l {
			g.addLinkProblem(l, "redirects back to source: "+target.URL)
			g.addLinkProblem(target, "redirects back to source: "+l.URL)
			g.mu.Unlock()
			return nil
		}
	}

	depth := l.RedirectDepth
	for _, pid := range l.parents {
		if p := g.get(pid); p != nil && p.RedirectDepth > depth {
			depth = p.RedirectDepth
		}
	}
	l.RedirectDepth = depth + 1
	if g.maxRedirects >= 0 && l.RedirectDepth > g.maxRedirects {
		g.addLinkProblem(l, fmt.Sprintf("too many redirects (%d)", l.RedirectDepth))
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	target, _, err := g.getOrCreate(ctx, key)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	// The target may have been created concurrently and already lead back.
	if target == l || g.resolve(target) == l {
		g.addLinkProblem(l, "redirects back to source: "+target.URL)
		g.addLinkProblem(target, "redirects back to source: "+l.URL)
		return nil
	}
	g.link(l, target, g.childEdges, &l.children)
	return nil
}

// ResolveRedirect follows the redirect chain starting at l and returns the
// final Link. It returns l itself for links that do not redirect, and nil
// when the chain is broken or loops.
func (g *Graph) ResolveRedirect(l *Link) *Link {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolve(l)
}

// resolve implements ResolveRedirect. The caller holds g.mu.
func (g *Graph) resolve(l *Link) *Link {
	chain := g.chain(l)
	if chain == nil {
		return nil
	}
	return chain[len(chain)-1]
}

// chain returns every hop from l to the end of its redirect chain, l first.
// It returns nil when the chain is broken or loops. The caller holds g.mu.
func (g *Graph) chain(l *Link) []*Link {
	visited := make(map[LinkID]struct{})
	hops := []*Link{l}
	for cur := l; cur.RedirectDepth != 0; {
		if len(cur.children) == 0 {
			return nil
		}
		visited[cur.ID] = struct{}{}
		next := g.get(cur.children[0])
		if next == nil {
			return nil
		}
		if _, seen := visited[next.ID]; seen {
			return nil
		}
		hops = append(hops, next)
		cur = next
	}
	return hops
}

// resolveAndPrune resolves l like ResolveRedirect and afterwards drops the
// intermediate hops nothing else refers to. Pruning happens in chain order
// once the walk is complete, so removing one hop can orphan the next.
// The caller holds g.mu.
func (g *Graph) resolveAndPrune(l *Link) *Link {
	hops := g.chain(l)
	if hops == nil {
		return nil
	}
	final := hops[len(hops)-1]
	for i, hop := range hops[:len(hops)-1] {
		if len(hop.parents) != 0 {
			continue
		}
		g.prune(hop, hops[i+1])
	}
	return final
}

// prune removes a redirect hop from the URL index together with the back
// reference its target holds. The caller holds g.mu.
func (g *Graph) prune(hop, target *Link) {
	g.unlinkChild(hop, target)
	delete(g.index, hop.URL)
	hop.pruned = true
	g.logger.Debug("pruned redirect hop", "url", hop.URL, "target", target.URL)
}
