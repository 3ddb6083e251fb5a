// Package pipeline runs a webcheck session as a sequence of steps.
//
// The default pipeline crawls the site, assigns page depths, checks
// anchors, stores the graph in the database and writes the reports. Each
// step is a Step working on the shared Session.
//
// An interrupted crawl still produces output: steps implementing
// CancelSafe run after the context was cancelled, so the partial graph is
// persisted and reported.
package pipeline
