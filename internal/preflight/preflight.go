// Package preflight runs environment checks before heavy operations:
// is the database directory writable, is there disk space for the
// index, are enough file descriptors available, is the embedding
// backend reachable. `qmd doctor` surfaces the results.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/quickmd/qmd/internal/embed"
)

// Status of a single check.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "PASS"
	case Warn:
		return "WARN"
	case Fail:
		return "FAIL"
	default:
		return "????"
	}
}

// Result is the outcome of one check.
type Result struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
}

// Critical reports whether this result should block the operation.
func (r Result) Critical() bool {
	return r.Required && r.Status == Fail
}

// minDiskSpace is the free space below which indexing is refused. The
// database plus WAL rarely needs more for document corpora.
const minDiskSpace = 100 * 1024 * 1024

// minFileDescriptors is the soft-limit floor below which large scans
// start failing with EMFILE.
const minFileDescriptors = 256

// Run executes every check. dbPath locates the index database; embedder
// may be nil to skip the backend check.
func Run(ctx context.Context, dbPath string, embedder embed.Embedder) []Result {
	results := []Result{
		CheckWritable(filepath.Dir(dbPath)),
		CheckDiskSpace(filepath.Dir(dbPath)),
		CheckFileDescriptors(),
	}
	if embedder != nil {
		results = append(results, CheckEmbedder(ctx, embedder))
	}
	return results
}

// Critical reports whether any result blocks the operation.
func Critical(results []Result) bool {
	for _, r := range results {
		if r.Critical() {
			return true
		}
	}
	return false
}

// CheckWritable verifies the directory exists (creating it if needed)
// and accepts writes.
func CheckWritable(dir string) Result {
	res := Result{Name: "database directory", Required: true}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		res.Status = Fail
		res.Message = err.Error()
		return res
	}
	probe := filepath.Join(dir, ".qmd-preflight")
	f, err := os.Create(probe)
	if err != nil {
		res.Status = Fail
		res.Message = fmt.Sprintf("not writable: %v", err)
		return res
	}
	f.Close()
	os.Remove(probe)

	res.Status = Pass
	res.Message = dir
	return res
}

// CheckDiskSpace verifies free space at the database location.
func CheckDiskSpace(dir string) Result {
	res := Result{Name: "disk space", Required: true}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		res.Status = Warn
		res.Message = fmt.Sprintf("cannot stat filesystem: %v", err)
		res.Required = false
		return res
	}

	free := uint64(stat.Bavail) * uint64(stat.Bsize)
	if free < minDiskSpace {
		res.Status = Fail
		res.Message = fmt.Sprintf("%d MB free, need at least %d MB", free/(1024*1024), minDiskSpace/(1024*1024))
		return res
	}
	res.Status = Pass
	res.Message = fmt.Sprintf("%d MB free", free/(1024*1024))
	return res
}

// CheckFileDescriptors verifies the soft open-file limit leaves room
// for a large scan.
func CheckFileDescriptors() Result {
	res := Result{Name: "file descriptors", Required: false}

	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		res.Status = Warn
		res.Message = fmt.Sprintf("cannot read limit: %v", err)
		return res
	}
	if lim.Cur < minFileDescriptors {
		res.Status = Warn
		res.Message = fmt.Sprintf("soft limit %d is low; raise with ulimit -n", lim.Cur)
		return res
	}
	res.Status = Pass
	res.Message = fmt.Sprintf("soft limit %d", lim.Cur)
	return res
}

// CheckEmbedder probes the embedding backend. Not required: search and
// indexing work without vectors.
func CheckEmbedder(ctx context.Context, e embed.Embedder) Result {
	res := Result{Name: "embedder", Required: false}

	if e.Available(ctx) {
		res.Status = Pass
		res.Message = fmt.Sprintf("%s ready", e.ModelName())
		return res
	}
	res.Status = Warn
	res.Message = fmt.Sprintf("%s unreachable; vsearch and embed need it", e.ModelName())
	return res
}
