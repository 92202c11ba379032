package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mholt/archives"

	"github.com/khaledhikmat/nsfw-go/model"
	"github.com/khaledhikmat/nsfw-go/service/lgr"
)

// archiveEntry is one extracted member, held in memory until classified.
type archiveEntry struct {
	name string
	data []byte
}

// extractArchive expands an archive into units by re-identifying and
// re-extracting every member. Nested archives recurse while depth lasts;
// an exhausted depth truncates that branch. The entry budget is shared
// across the whole recursion so a zip bomb cannot multiply work; it is
// applied after the priority sort, so when the cap bites it is the
// expensive members that fall off, not whatever listed last.
func extractArchive(ctx context.Context, label, name string, data []byte, cfg model.DetectionConfig, depth int, budget *int) (extraction, error) {
	entries, err := listEntries(ctx, name, data, cfg)
	if err != nil {
		return extraction{}, &model.DecodeError{Source: label, Inner: err}
	}

	var ex extraction

	// Cheap kinds first (images, then pdf, then video), smaller files first
	// within a kind, so obvious hits surface before expensive members.
	sortEntriesByPriority(entries)

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ex, ctx.Err()
		default:
		}

		kind := Identify(entry.name, head(entry.data))
		if kind == model.FormatUnsupported {
			// skipped members are free, only classifiable work is budgeted
			continue
		}

		if *budget <= 0 {
			ex.truncated = true
			break
		}
		*budget--

		entryLabel := "entry:" + entry.name

		switch kind {
		case model.FormatImage:
			sub, err := extractImage(entryLabel, entry.data)
			mergeEntry(&ex, entryLabel, sub, err)

		case model.FormatPdf:
			sub, err := extractPdf(entryLabel, entry.data, cfg)
			mergeEntry(&ex, entryLabel, sub, err)

		case model.FormatVideo:
			sub, err := extractEntryVideo(ctx, entryLabel, entry, cfg)
			mergeEntry(&ex, entryLabel, sub, err)

		case model.FormatArchive:
			if depth <= 0 {
				ex.truncated = true
				continue
			}
			sub, err := extractArchive(ctx, entryLabel, entry.name, entry.data, cfg, depth-1, budget)
			mergeEntry(&ex, entryLabel, sub, err)
		}
	}

	return ex, nil
}

// listEntries materializes archive members in listing order. The entry
// budget is deliberately not applied here; the caller sorts first so the
// cap falls on the right members. Pure compression wrappers (e.g. a lone
// .gz) unwrap to a single member named after the inner file.
func listEntries(ctx context.Context, name string, data []byte, cfg model.DetectionConfig) ([]archiveEntry, error) {
	format, input, err := archives.Identify(ctx, name, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var entries []archiveEntry

	if extractor, ok := format.(archives.Extractor); ok {
		err = extractor.Extract(ctx, input, func(ctx context.Context, f archives.FileInfo) error {
			if f.IsDir() {
				return nil
			}

			rc, err := f.Open()
			if err != nil {
				lgr.Logger.Warn("archive member unreadable",
					slog.String("archive", name),
					slog.String("member", f.NameInArchive),
					slog.Any("error", err),
				)
				return nil
			}
			defer rc.Close()

			member, err := readBounded(rc, cfg.MaxFileSize)
			if err != nil {
				lgr.Logger.Warn("archive member skipped",
					slog.String("archive", name),
					slog.String("member", f.NameInArchive),
					slog.Any("error", err),
				)
				return nil
			}

			entries = append(entries, archiveEntry{name: f.NameInArchive, data: member})
			return nil
		})
		if err != nil && len(entries) == 0 {
			return nil, err
		}
		return entries, nil
	}

	if compression, ok := format.(archives.Compression); ok {
		rc, err := compression.OpenReader(input)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		inner, err := readBounded(rc, cfg.MaxFileSize)
		if err != nil {
			return nil, err
		}

		return []archiveEntry{{name: innerName(name), data: inner}}, nil
	}

	return nil, &model.DecodeError{Source: name}
}

// extractEntryVideo spills the member to a temp file so the frame sampler
// can seek it, and removes the file when done.
func extractEntryVideo(ctx context.Context, label string, entry archiveEntry, cfg model.DetectionConfig) (extraction, error) {
	tmp := filepath.Join(os.TempDir(), uuid.NewString()+filepath.Ext(entry.name))
	if err := os.WriteFile(tmp, entry.data, 0600); err != nil {
		return extraction{}, err
	}
	defer os.Remove(tmp)

	return extractVideo(ctx, label, tmp, cfg)
}

// mergeEntry folds a member's sub-extraction into the archive's extraction,
// namespacing multi-unit labels under the member. A failed member becomes
// one failed attempt; it never aborts the archive.
func mergeEntry(ex *extraction, entryLabel string, sub extraction, err error) {
	if err != nil {
		ex.addFailed(entryLabel, err)
		return
	}

	ex.truncated = ex.truncated || sub.truncated

	for _, a := range sub.attempts {
		label := a.SourceLabel
		if label != entryLabel {
			label = entryLabel + "!" + a.SourceLabel
		}
		if a.Err != nil {
			ex.addFailed(label, a.Err)
			continue
		}
		ex.add(label, a.Data)
	}
}

var kindPriority = map[model.FormatKind]int{
	model.FormatImage:       0,
	model.FormatPdf:         1,
	model.FormatVideo:       2,
	model.FormatArchive:     3,
	model.FormatUnsupported: 4,
}

func sortEntriesByPriority(entries []archiveEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		pi := kindPriority[Identify(entries[i].name, head(entries[i].data))]
		pj := kindPriority[Identify(entries[j].name, head(entries[j].data))]
		if pi != pj {
			return pi < pj
		}
		return len(entries[i].data) < len(entries[j].data)
	})
}

func innerName(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	inner := strings.TrimSuffix(base, ext)
	if inner == "" || inner == base {
		return "content"
	}
	return inner
}

func readBounded(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, &model.DecodeError{Source: "member exceeds size limit"}
	}
	return data, nil
}

func head(data []byte) []byte {
	const sniffLen = 512
	if len(data) > sniffLen {
		return data[:sniffLen]
	}
	return data
}
