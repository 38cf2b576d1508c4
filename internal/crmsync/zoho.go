package crmsync

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	apphttp "admissions-lifecycle/internal/common/http"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/models"

	"github.com/redis/go-redis/v9"
)

// ExternalKeyField is the Zoho field holding the application id; upserts
// deduplicate on it.
const ExternalKeyField = "External_Key"

// RecordWriter is the subset of the Zoho client the adapter needs.
type RecordWriter interface {
	UpsertRecord(ctx context.Context, module string, record map[string]interface{}, duplicateCheckFields []string) (string, bool, error)
	UpdateRecord(ctx context.Context, module, id string, record map[string]interface{}) error
}

// ZohoAdapter upserts projections into a Zoho CRM module. The Zoho record id
// is cached in Redis so repeat pushes go straight to an update.
type ZohoAdapter struct {
	client   RecordWriter
	module   string
	cache    redis.Cmdable
	cacheTTL time.Duration
	logger   logger.Logger
}

// NewZohoAdapter builds the adapter. cache may be nil.
func NewZohoAdapter(client RecordWriter, module string, cache redis.Cmdable, cacheTTL time.Duration, log logger.Logger) *ZohoAdapter {
	return &ZohoAdapter{
		client:   client,
		module:   module,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "zoho-sync", "module": module}),
	}
}

func CacheKey(applicationID string) string {
	return "crm:sync:" + applicationID
}

func (z *ZohoAdapter) Push(ctx context.Context, applicationID string, projection map[string]interface{}) models.SyncResult {
	record := ToZohoRecord(projection)
	record[ExternalKeyField] = applicationID

	if id := z.cachedID(ctx, applicationID); id != "" {
		err := z.client.UpdateRecord(ctx, z.module, id, record)
		if err == nil {
			return models.SyncResult{Success: true, ExternalRecordID: id}
		}
		if !apphttp.IsStatus(err, http.StatusNotFound) {
			return z.fail(applicationID, err)
		}
		// record removed on the CRM side; fall through to upsert
		z.forget(ctx, applicationID)
	}

	id, created, err := z.client.UpsertRecord(ctx, z.module, record, []string{ExternalKeyField})
	if err != nil {
		return z.fail(applicationID, err)
	}
	z.remember(ctx, applicationID, id)

	z.logger.Debug("crm record upserted", map[string]interface{}{
		"applicationId": applicationID,
		"recordId":      id,
		"created":       created,
	})
	return models.SyncResult{Success: true, ExternalRecordID: id}
}

func (z *ZohoAdapter) fail(applicationID string, err error) models.SyncResult {
	kind := "permanent"
	if apphttp.IsTransient(err) {
		kind = "transient"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = "transient"
	}
	z.logger.Warn("crm push failed", map[string]interface{}{
		"applicationId": applicationID,
		"kind":          kind,
		"error":         err.Error(),
	})
	return failure("%s: %v", kind, err)
}

func (z *ZohoAdapter) cachedID(ctx context.Context, applicationID string) string {
	if z.cache == nil {
		return ""
	}
	id, err := z.cache.Get(ctx, CacheKey(applicationID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			z.logger.Warn("crm id cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return ""
	}
	return id
}

func (z *ZohoAdapter) remember(ctx context.Context, applicationID, id string) {
	if z.cache == nil || id == "" {
		return
	}
	if err := z.cache.Set(ctx, CacheKey(applicationID), id, z.cacheTTL).Err(); err != nil {
		z.logger.Warn("crm id cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

func (z *ZohoAdapter) forget(ctx context.Context, applicationID string) {
	if z.cache != nil {
		_ = z.cache.Del(ctx, CacheKey(applicationID)).Err()
	}
}

// ToZohoRecord flattens a nested projection into Zoho API field names:
// Patient.Address.Street becomes Patient_Address_Street. Lists of strings are
// joined with "; ".
func ToZohoRecord(projection map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(projection))
	flattenRecord(out, "", projection)
	return out
}

func flattenRecord(out map[string]interface{}, prefix string, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			name := k
			if prefix != "" {
				name = prefix + "_" + k
			}
			flattenRecord(out, name, val[k])
		}
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		if len(parts) == len(val) {
			out[prefix] = strings.Join(parts, "; ")
		} else {
			out[prefix] = val
		}
	case []string:
		out[prefix] = strings.Join(val, "; ")
	default:
		out[prefix] = val
	}
}
