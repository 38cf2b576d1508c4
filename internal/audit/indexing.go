package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// IndexingRecorder mirrors every durable entry into an Elasticsearch index for
// audit-log search. The durable Recorder stays the source of truth: an index
// failure is logged and never fails the append.
type IndexingRecorder struct {
	Recorder
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexingRecorder(inner Recorder, es *elasticsearch.Client, index string, log logger.Logger) *IndexingRecorder {
	return &IndexingRecorder{
		Recorder: inner,
		es:       es,
		index:    index,
		logger:   log.WithFields(map[string]interface{}{"component": "audit-index"}),
	}
}

func (r *IndexingRecorder) Append(ctx context.Context, entry models.AuditEntry) (models.AuditEntry, error) {
	stored, err := r.Recorder.Append(ctx, entry)
	if err != nil {
		return stored, err
	}
	if err := r.indexEntry(ctx, stored); err != nil {
		r.logger.Warn("audit entry not indexed", map[string]interface{}{
			"auditId":  stored.ID,
			"targetId": stored.TargetID,
			"error":    err.Error(),
		})
	}
	return stored, nil
}

func (r *IndexingRecorder) indexEntry(ctx context.Context, e models.AuditEntry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	res, err := r.es.Index(
		r.index,
		bytes.NewReader(body),
		r.es.Index.WithContext(ctx),
		r.es.Index.WithDocumentID(e.ID),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index response: %s", res.Status())
	}
	return nil
}

// Search runs a full-text query over entry details, newest first.
func (r *IndexingRecorder) Search(ctx context.Context, text string, size int) ([]models.AuditEntry, error) {
	if size <= 0 {
		size = 50
	}
	query := map[string]interface{}{
		"size": size,
		"sort": []interface{}{map[string]interface{}{"timestamp": "desc"}},
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"detail", "action", "targetId", "actorId"},
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := r.es.Search(
		r.es.Search.WithContext(ctx),
		r.es.Search.WithIndex(r.index),
		r.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("audit search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("audit search error: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.AuditEntry `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("audit search decode: %w", err)
	}
	out := make([]models.AuditEntry, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
