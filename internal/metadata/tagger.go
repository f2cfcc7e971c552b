package metadata

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"go.senan.xyz/taglib"
)

// TagWriter embeds merged metadata into audio files. Writes are atomic at
// the file level: all tagging happens on a temporary copy which is renamed
// over the original only on full success, so a crash mid-write cannot
// leave a corrupted file.
type TagWriter struct{}

// NewTagWriter creates a TagWriter.
func NewTagWriter() *TagWriter { return &TagWriter{} }

// Write embeds the merged fields (and optional artwork) into the item's
// file. Only fields present in merged are written; existing frames not
// covered by the merge are preserved. The returned result enumerates
// exactly which fields changed; when nothing would change and no artwork
// is supplied, the file is not touched at all.
//
// Cancellation is honored only before work starts: once the temporary
// copy is being prepared the write completes or fails cleanly.
func (w *TagWriter) Write(ctx context.Context, item *AudioItem, merged *MergedMetadata, artwork []byte) (*TagWriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := taglib.ReadTags(item.Path)
	if err != nil {
		return nil, &TagWriteError{Path: item.Path, Err: fmt.Errorf("read tags: %w", err)}
	}

	desired := make(map[string][]string)
	var changed []string
	for name, fv := range merged.Fields() {
		if firstValue(current, name) == fv.Value {
			continue
		}
		desired[name] = []string{fv.Value}
		changed = append(changed, name)
	}
	sort.Strings(changed)

	result := &TagWriteResult{Path: item.Path, ChangedFields: changed}
	if len(changed) == 0 && artwork == nil {
		return result, nil
	}

	tmp, err := stageCopy(item.Path)
	if err != nil {
		return nil, &TagWriteError{Path: item.Path, Err: err}
	}
	defer os.Remove(tmp) // no-op after a successful rename

	if len(desired) > 0 {
		if err := taglib.WriteTags(tmp, desired, 0); err != nil {
			return nil, &TagWriteError{Path: item.Path, Err: fmt.Errorf("write tags: %w", err)}
		}
	}
	if len(artwork) > 0 {
		if err := taglib.WriteImage(tmp, artwork); err != nil {
			return nil, &TagWriteError{Path: item.Path, Err: fmt.Errorf("write artwork: %w", err)}
		}
		result.ArtworkEmbedded = true
	}

	if err := syncFile(tmp); err != nil {
		return nil, &TagWriteError{Path: item.Path, Err: err}
	}
	if err := os.Rename(tmp, item.Path); err != nil {
		return nil, &TagWriteError{Path: item.Path, Err: fmt.Errorf("rename: %w", err)}
	}

	return result, nil
}

// stageCopy clones the file into a temporary sibling so the rename at the
// end stays within one filesystem.
func stageCopy(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tunetag-*"+filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("copy to temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("chmod temp: %w", err)
	}

	return tmp.Name(), nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open for sync: %w", err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func firstValue(tags map[string][]string, key string) string {
	if vals, ok := tags[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}
