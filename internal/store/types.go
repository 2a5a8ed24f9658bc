package store

import "time"

// Document is one row of the documents table.
type Document struct {
	ID         int64
	Collection string
	Path       string
	Title      string
	Hash       string
	Active     bool
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Docid returns the short user-facing identifier for this document.
func (d *Document) Docid() string {
	return Docid(d.ID)
}

// VirtualPath returns the canonical qmd:// reference for this document.
func (d *Document) VirtualPath() string {
	return BuildVirtualPath(d.Collection, d.Path)
}

// SearchResult is a single ranked hit returned by the FTS, vector, and
// hybrid engines.
type SearchResult struct {
	Docid          string  `json:"docid"`
	Filepath       string  `json:"filepath"` // virtual path (qmd://collection/path)
	Title          string  `json:"title"`
	DisplayPath    string  `json:"displayPath"` // collection/path for humans
	Score          float64 `json:"score"`       // [0,1], higher is better
	Body           string  `json:"body"`
	CollectionName string  `json:"collectionName"`
	Hash           string  `json:"hash"`
	Source         string  `json:"source"` // "fts" or "vec"
}

// CollectionStatus summarizes one collection inside Status.
type CollectionStatus struct {
	Name            string
	ActiveDocuments int
}

// Status is the store-wide summary returned by Store.Status.
type Status struct {
	Collections     []CollectionStatus
	ActiveDocuments int
	TotalDocuments  int
	ContentRows     int
	EmbeddedHashes  int
	PendingHashes   int // active content hashes with no embedding row
	CacheEntries    int
	DBSizeBytes     int64
}

// IndexHealth reports consistency counters used by `qmd status --health`.
type IndexHealth struct {
	OrphanedContent    int // content rows with no document and no embedding reference
	InactiveDocuments  int
	FTSOutOfSync       int // active documents missing an FTS row, plus stale FTS rows
	DanglingEmbeddings int // embedding rows whose content hash is gone
}

// Healthy reports whether all consistency counters that indicate damage
// are zero. Inactive documents are history, not damage.
func (h IndexHealth) Healthy() bool {
	return h.OrphanedContent == 0 && h.FTSOutOfSync == 0 && h.DanglingEmbeddings == 0
}
