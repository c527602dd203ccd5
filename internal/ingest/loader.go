package ingest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/storage"
)

// ObjectLoader pulls ledger sheets from object storage and ingests them in
// key order. Objects are downloaded to a scratch directory first because
// workbooks need random access.
type ObjectLoader struct {
	store    storage.ObjectStorage
	ingestor *Ingestor
	tmpDir   string
}

func NewObjectLoader(store storage.ObjectStorage, ingestor *Ingestor, tmpDir string) *ObjectLoader {
	return &ObjectLoader{store: store, ingestor: ingestor, tmpDir: tmpDir}
}

// Load ingests every CSV or XLSX object under prefix. It stops at the
// first file that fails so a half-read sheet is never partially applied
// alongside later ones.
func (l *ObjectLoader) Load(ctx context.Context, prefix string) ([]Result, error) {
	objects, err := l.store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	dir, err := os.MkdirTemp(l.tmpDir, "intellistock-ingest-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var results []Result
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if !Supported(obj.Key) {
			continue
		}

		local := filepath.Join(dir, path.Base(obj.Key))
		if err := l.store.DownloadObject(ctx, obj.Key, local); err != nil {
			return results, fmt.Errorf("download %s: %w", obj.Key, err)
		}

		res, err := l.ingestor.IngestFile(ctx, local)
		os.Remove(local)
		res.Source = obj.Key
		if err != nil {
			return results, fmt.Errorf("ingest %s: %w", obj.Key, err)
		}
		results = append(results, res)
	}

	log.Info().Str("prefix", prefix).Int("files", len(results)).Msg("object import finished")
	return results, nil
}
