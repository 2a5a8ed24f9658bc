//go:build ignore

// Generates a synthetic markdown corpus for manual testing and
// benchmarking of indexing and search.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/corpus
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of markdown files to generate")
	outputDir = flag.String("output", "testdata/corpus", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var topics = []string{
	"deployment", "backup", "monitoring", "authentication", "caching",
	"migration", "networking", "storage", "scheduling", "logging",
	"testing", "release", "incident", "onboarding", "architecture",
}

var verbs = []string{
	"configure", "restart", "verify", "rotate", "provision",
	"inspect", "escalate", "archive", "replicate", "tune",
}

var nouns = []string{
	"cluster", "pipeline", "database", "queue", "certificate",
	"gateway", "replica", "snapshot", "dashboard", "runbook",
}

var sections = []string{
	"Overview", "Prerequisites", "Procedure", "Verification",
	"Rollback", "Troubleshooting", "References",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	for i := 0; i < *numFiles; i++ {
		topic := topics[rng.Intn(len(topics))]
		rel := filepath.Join(topic, fmt.Sprintf("%s-%03d.md", topic, i))
		path := filepath.Join(*outputDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := os.WriteFile(path, []byte(document(rng, topic, i)), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	fmt.Printf("wrote %d files under %s\n", *numFiles, *outputDir)
}

func document(rng *rand.Rand, topic string, n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s guide %d\n\n", capitalize(topic), n)

	count := 2 + rng.Intn(4)
	for i := 0; i < count; i++ {
		fmt.Fprintf(&sb, "## %s\n\n", sections[rng.Intn(len(sections))])
		for p := 0; p < 1+rng.Intn(3); p++ {
			sb.WriteString(paragraph(rng, topic))
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

func paragraph(rng *rand.Rand, topic string) string {
	var words []string
	for s := 0; s < 3+rng.Intn(4); s++ {
		words = append(words, fmt.Sprintf("%s the %s %s for %s.",
			capitalize(verbs[rng.Intn(len(verbs))]),
			topic,
			nouns[rng.Intn(len(nouns))],
			topics[rng.Intn(len(topics))]))
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
