package pipeline

import (
	"fmt"
	"log"
	"os"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/burnclock/internal/meter"
	"github.com/theirongolddev/burnclock/internal/model"
	"github.com/theirongolddev/burnclock/internal/source"
	"github.com/theirongolddev/burnclock/internal/store"
)

// ImportStore is the part of the archive the importer writes to.
type ImportStore interface {
	SaveSession(model.SessionRecord) error
	GetOffset(path string) (store.FileOffset, error)
	SaveOffset(path string, fo store.FileOffset) error
}

// ImportResult reports what an import pass did.
type ImportResult struct {
	TotalFiles int
	Unchanged  int
	Imported   int
	Empty      int
	FileErrors int
	BadLines   int
	Unpriced   int
}

// Importer turns Claude Code transcripts into archived session records,
// one record per transcript file. Files whose size and mtime match the
// stored offset are skipped.
type Importer struct {
	Store            ImportStore
	Rates            meter.RateTable
	Billing          meter.Billing
	IncludeSubagents bool
}

// Import scans claudeDir and archives new or changed transcripts.
func (im *Importer) Import(claudeDir string, progressFn ProgressFunc) (*ImportResult, error) {
	files, err := source.ScanDir(claudeDir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", claudeDir, err)
	}
	if !im.IncludeSubagents {
		files = lo.Reject(files, func(f source.DiscoveredFile, _ int) bool { return f.IsSubagent })
	}

	result := &ImportResult{TotalFiles: len(files)}

	var changed []source.DiscoveredFile
	seen := make(map[string]store.FileOffset, len(files))
	for _, f := range files {
		stored, err := im.Store.GetOffset(f.Path)
		if err != nil {
			return nil, fmt.Errorf("reading offset for %s: %w", f.Path, err)
		}
		info, err := os.Stat(f.Path)
		if err != nil {
			result.FileErrors++
			continue
		}
		cur := store.FileOffset{Offset: info.Size(), MtimeNs: info.ModTime().UnixNano()}
		if stored == cur {
			result.Unchanged++
			continue
		}
		seen[f.Path] = cur
		changed = append(changed, f)
	}

	for _, t := range summarizeAll(changed, progressFn) {
		if t.Err != nil {
			result.FileErrors++
			log.Printf("import level=warn event=parse path=%s err=%v", t.File.Path, t.Err)
			continue
		}
		result.BadLines += t.Summary.BadLines

		if t.Summary.Usage.IsZero() && t.Summary.Prompts == 0 {
			result.Empty++
		} else {
			rec, priced := im.record(t)
			if !priced {
				result.Unpriced++
			}
			if err := im.Store.SaveSession(rec); err != nil {
				return result, err
			}
			result.Imported++
		}

		if err := im.Store.SaveOffset(t.File.Path, seen[t.File.Path]); err != nil {
			return result, fmt.Errorf("saving offset for %s: %w", t.File.Path, err)
		}
	}
	return result, nil
}

// record builds the archived form of a transcript. Usage under models that
// the rate table does not know contributes tokens but no cost.
func (im *Importer) record(t Transcript) (model.SessionRecord, bool) {
	s := t.Summary
	cost := decimal.Zero
	priced := true
	for name, usage := range s.ByModel {
		rate, _, ok := im.Rates.Lookup(name)
		if !ok {
			priced = false
			continue
		}
		cost = cost.Add(im.Billing.Cost(rate, usage).Total)
	}

	modelName := s.Model
	if _, key, ok := im.Rates.Lookup(modelName); ok {
		modelName = key
	}

	id := t.File.SessionID
	if t.File.Project != "" {
		id = t.File.Project + "/" + id
	}

	return model.SessionRecord{
		Session: model.Session{
			ID:        "import:" + id,
			Model:     modelName,
			Project:   t.File.Project,
			StartTime: s.Start,
			EndTime:   s.End,
			Duration:  s.End.Sub(s.Start),
			Status:    model.StatusCompleted,
			EndReason: model.EndImported,
		},
		Elapsed:             s.End.Sub(s.Start),
		InputTokens:         s.Usage.InputTokens,
		OutputTokens:        s.Usage.OutputTokens,
		CacheCreationTokens: s.Usage.CacheCreationTokens,
		CacheReadTokens:     s.Usage.CacheReadTokens,
		EstimatedCost:       cost,
		ToolCalls:           s.ToolCalls,
		Messages:            int64(s.Messages),
	}, priced
}
