// Package resolver turns user-supplied document references into stored
// documents. A reference can be a docid, a qmd:// virtual path, a
// collection-qualified path, a filesystem path under a collection root,
// or a bare filename suffix. Strategies run in that priority order and
// the first hit wins; a reference in docid syntax resolves by id or not
// at all.
package resolver

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quickmd/qmd/internal/config"
	qmderrors "github.com/quickmd/qmd/internal/errors"
	"github.com/quickmd/qmd/internal/store"
)

// maxSimilar caps the "did you mean" suggestions attached to a
// not-found error.
const maxSimilar = 5

// Resolver resolves references against one store and its collection
// configuration.
type Resolver struct {
	store *store.Store
	cfg   *config.Config
}

// Document is a fully fetched document: the resolved row plus its body
// and the context string configured for its location.
type Document struct {
	Docid          string `json:"docid"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	VirtualPath    string `json:"filepath"`
	DisplayPath    string `json:"displayPath"`
	CollectionName string `json:"collectionName"`
	Context        string `json:"context,omitempty"`
}

func New(s *store.Store, cfg *config.Config) *Resolver {
	return &Resolver{store: s, cfg: cfg}
}

// Resolve maps a reference to a document row. Docids resolve even when
// the document is inactive, so history stays reachable by id; every
// other strategy sees only active documents.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*store.Document, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, qmderrors.New(qmderrors.ErrCodeInvalidInput, "empty document reference", nil)
	}

	strategies := []func(context.Context, string) (*store.Document, error){
		r.byDocid,
		r.byVirtualPath,
		r.byCollectionPath,
		r.byFilesystemPath,
		r.bySuffix,
	}
	for _, try := range strategies {
		doc, err := try(ctx, ref)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			return doc, nil
		}
	}

	return nil, r.notFound(ctx, ref)
}

// FetchDocument resolves ref and loads its body and context.
func (r *Resolver) FetchDocument(ctx context.Context, ref string) (*Document, error) {
	doc, err := r.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	body, ok, err := r.store.GetContentBody(ctx, doc.Hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, qmderrors.New(qmderrors.ErrCodeCorruptStore,
			"document content missing for hash "+doc.Hash, nil)
	}

	return &Document{
		Docid:          doc.Docid(),
		Title:          doc.Title,
		Content:        body,
		VirtualPath:    doc.VirtualPath(),
		DisplayPath:    doc.Collection + "/" + doc.Path,
		CollectionName: doc.Collection,
		Context:        r.cfg.FindContextForPath(doc.Collection, doc.Path),
	}, nil
}

// byDocid tries the reference as a short id. Docid syntax short-circuits
// the chain: a reference that parses as a docid but names no document is
// an error, never a path lookup.
func (r *Resolver) byDocid(ctx context.Context, ref string) (*store.Document, error) {
	if !store.IsDocid(ref) {
		return nil, nil
	}
	doc, err := r.store.FindDocumentByDocid(ctx, ref)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, r.notFound(ctx, ref)
	}
	return doc, nil
}

// byVirtualPath handles qmd://collection/path references, exact first,
// then as a path suffix within the named collection.
func (r *Resolver) byVirtualPath(ctx context.Context, ref string) (*store.Document, error) {
	collection, docPath, ok := store.ParseVirtualPath(ref)
	if !ok {
		return nil, nil
	}
	return r.findInCollection(ctx, collection, docPath)
}

// byCollectionPath handles "collection/relative/path" references where
// the first segment names a configured collection.
func (r *Resolver) byCollectionPath(ctx context.Context, ref string) (*store.Document, error) {
	collection, rest, found := strings.Cut(filepath.ToSlash(ref), "/")
	if !found || rest == "" {
		return nil, nil
	}
	if _, ok := r.cfg.GetCollection(collection); !ok {
		return nil, nil
	}
	return r.findInCollection(ctx, collection, rest)
}

// byFilesystemPath maps an on-disk path to the collection whose root
// contains it. When several roots nest, the longest match wins.
func (r *Resolver) byFilesystemPath(ctx context.Context, ref string) (*store.Document, error) {
	abs, err := filepath.Abs(ref)
	if err != nil {
		return nil, nil
	}

	cols := r.cfg.ListCollections()
	sort.Slice(cols, func(i, j int) bool { return len(cols[i].Path) > len(cols[j].Path) })

	for _, col := range cols {
		rel, err := filepath.Rel(col.Path, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		doc, err := r.findInCollection(ctx, col.Name, filepath.ToSlash(rel))
		if err != nil || doc != nil {
			return doc, err
		}
	}
	return nil, nil
}

// bySuffix is the last resort: a bare filename matched against path
// endings across every collection. Ties resolve to the oldest document.
func (r *Resolver) bySuffix(ctx context.Context, ref string) (*store.Document, error) {
	suffix := store.NormalizePath(filepath.ToSlash(ref))
	if suffix == "" {
		return nil, nil
	}
	return r.store.FindBySuffix(ctx, "", suffix)
}

// findInCollection looks for docPath inside one collection, exact match
// first, then as a path suffix.
func (r *Resolver) findInCollection(ctx context.Context, collection, docPath string) (*store.Document, error) {
	norm := store.NormalizePath(docPath)
	doc, err := r.store.FindActiveDocument(ctx, collection, norm)
	if err != nil || doc != nil {
		return doc, err
	}
	return r.store.FindBySuffix(ctx, collection, norm)
}

// notFound builds the final error, with nearby paths attached when the
// store has anything resembling the reference.
func (r *Resolver) notFound(ctx context.Context, ref string) error {
	nf := qmderrors.DocumentNotFound(ref)

	base := store.NormalizePath(filepath.ToSlash(ref))
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if base == "" {
		return nf
	}

	similar, err := r.store.FindSimilarFiles(ctx, strings.TrimSuffix(base, ".md"), maxSimilar)
	if err != nil {
		slog.Debug("similar_files_lookup_failed", slog.String("error", err.Error()))
		return nf
	}
	if len(similar) > 0 {
		paths := make([]string, len(similar))
		for i, d := range similar {
			paths[i] = d.Collection + "/" + d.Path
		}
		nf = nf.WithDetail("similar", strings.Join(paths, ", ")).
			WithSuggestion("did you mean one of: " + strings.Join(paths, ", "))
	}
	return nf
}
