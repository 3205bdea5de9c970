package pipeline

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/theirongolddev/burnclock/internal/source"
)

// Transcript is one parsed transcript file.
type Transcript struct {
	File    source.DiscoveredFile
	Summary source.FileSummary
	Err     error
}

// LoadResult holds the output of a transcript scan.
type LoadResult struct {
	Transcripts []Transcript
	TotalFiles  int
	ParsedFiles int
	BadLines    int
	FileErrors  int
}

// ProgressFunc is called during loading to report progress.
// current is the number of files processed so far, total is the total count.
type ProgressFunc func(current, total int)

// LoadTranscripts discovers and summarizes every transcript under claudeDir.
func LoadTranscripts(claudeDir string, includeSubagents bool, progressFn ProgressFunc) (*LoadResult, error) {
	files, err := source.ScanDir(claudeDir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", claudeDir, err)
	}
	if !includeSubagents {
		files = lo.Reject(files, func(f source.DiscoveredFile, _ int) bool { return f.IsSubagent })
	}

	result := &LoadResult{TotalFiles: len(files)}
	for _, t := range summarizeAll(files, progressFn) {
		if t.Err != nil {
			result.FileErrors++
			continue
		}
		result.ParsedFiles++
		result.BadLines += t.Summary.BadLines
		result.Transcripts = append(result.Transcripts, t)
	}
	return result, nil
}

// summarizeAll parses files on a bounded worker pool. Results keep the input
// order.
func summarizeAll(files []source.DiscoveredFile, progressFn ProgressFunc) []Transcript {
	if len(files) == 0 {
		return nil
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers < 1 {
		numWorkers = 4
	}
	numWorkers = min(numWorkers, len(files))

	work := make(chan int, len(files))
	results := make([]Transcript, len(files))
	var wg sync.WaitGroup
	var processed atomic.Int64

	for i := range files {
		work <- i
	}
	close(work)

	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				s, err := source.SummarizeFile(files[idx].Path)
				results[idx] = Transcript{File: files[idx], Summary: s, Err: err}
				n := processed.Add(1)
				if progressFn != nil {
					progressFn(int(n), len(files))
				}
			}
		}()
	}

	wg.Wait()
	return results
}
