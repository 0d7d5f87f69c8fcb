package search

import (
	"log/slog"

	"github.com/poiesic/finrag/core"
)

// SearchMonitor provides hooks to observe the search process.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(dimensions int)
	AfterVectorQuery(hits []*core.SearchResult)
	BelowThreshold(hit *core.SearchResult)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                          {}
func (n *noopMonitor) AfterEmbedding(_ int)                    {}
func (n *noopMonitor) AfterVectorQuery(_ []*core.SearchResult) {}
func (n *noopMonitor) BelowThreshold(_ *core.SearchResult)     {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)           {}

// LogMonitor writes every search stage to a logger at debug level.
type LogMonitor struct {
	Logger *slog.Logger
}

var _ SearchMonitor = (*LogMonitor)(nil)

func (m *LogMonitor) Start(query string) {
	m.Logger.Debug("search started", "query", query)
}

func (m *LogMonitor) AfterEmbedding(dimensions int) {
	m.Logger.Debug("query embedded", "dimensions", dimensions)
}

func (m *LogMonitor) AfterVectorQuery(hits []*core.SearchResult) {
	m.Logger.Debug("vector store returned hits", "hits", len(hits))
}

func (m *LogMonitor) BelowThreshold(hit *core.SearchResult) {
	m.Logger.Debug("dropping hit", "id", hit.Entry.ID, "score", hit.Score)
}

func (m *LogMonitor) Finish(results []*core.SearchResult) {
	m.Logger.Debug("search finished", "results", len(results))
}
