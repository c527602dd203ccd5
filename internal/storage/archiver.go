package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

// Archiver writes expired rows as JSON documents before they are deleted.
type Archiver struct {
	store  ObjectStorage
	prefix string
	now    func() time.Time
}

func NewArchiver(store ObjectStorage, prefix string) *Archiver {
	return &Archiver{store: store, prefix: prefix, now: time.Now}
}

type archiveDocument struct {
	Kind       string    `json:"kind"`
	Day        string    `json:"day"`
	ArchivedAt time.Time `json:"archived_at"`
	Rows       any       `json:"rows"`
}

// Archive stores rows under <prefix>/archive/<kind>/<day>/<unix-nanos>.json
// so repeated runs on one day never overwrite each other.
func (a *Archiver) Archive(ctx context.Context, kind string, day time.Time, rows any) (string, error) {
	at := a.now().UTC()
	doc := archiveDocument{Kind: kind, Day: day.Format(domain.DateLayout), ArchivedAt: at, Rows: rows}
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode %s archive: %w", kind, err)
	}

	key := path.Join(a.prefix, "archive", kind, doc.Day, fmt.Sprintf("%d.json", at.UnixNano()))
	if err := a.store.UploadObject(ctx, key, payload, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}
