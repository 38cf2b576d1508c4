// Package zoho talks to the Zoho CRM v3 records API.
package zoho

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	apphttp "admissions-lifecycle/internal/common/http"
)

const DefaultBaseURL = "https://www.zohoapis.com/crm/v3"

type CRMClient struct {
	oauthToken string
	baseURL    string
	http       *apphttp.Client
}

// NewCRMClient builds a client; an empty baseURL selects DefaultBaseURL.
func NewCRMClient(baseURL, oauthToken string, timeout time.Duration) *CRMClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CRMClient{
		oauthToken: oauthToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       apphttp.NewClient(timeout),
	}
}

type recordResult struct {
	Code    string `json:"code"`
	Action  string `json:"action"`
	Details struct {
		ID string `json:"id"`
	} `json:"details"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type writeResponse struct {
	Data []recordResult `json:"data"`
}

func (c *CRMClient) headers() map[string]string {
	return map[string]string{"Authorization": "Zoho-oauthtoken " + c.oauthToken}
}

// RecordError is a record-level rejection inside a 2xx response.
type RecordError struct {
	Code    string
	Message string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record write failed: %s (%s)", e.Message, e.Code)
}

// transientRecordCodes are rejections Zoho lifts on its own.
var transientRecordCodes = map[string]bool{
	"RECORD_LOCKED":  true,
	"LIMIT_EXCEEDED": true,
	"INTERNAL_ERROR": true,
}

// Transient reports whether resending the same record can succeed. Field and
// validation rejections such as INVALID_DATA or MANDATORY_NOT_FOUND cannot.
func (e *RecordError) Transient() bool {
	return transientRecordCodes[e.Code]
}

func firstResult(resp writeResponse) (recordResult, error) {
	if len(resp.Data) == 0 {
		return recordResult{}, fmt.Errorf("no data in response")
	}
	r := resp.Data[0]
	if r.Status != "success" {
		return recordResult{}, &RecordError{Code: r.Code, Message: r.Message}
	}
	return r, nil
}

// UpsertRecord inserts or updates one record in module, matching existing
// records on duplicateCheckFields. It returns the record id and whether Zoho
// created a new record.
func (c *CRMClient) UpsertRecord(ctx context.Context, module string, record map[string]interface{}, duplicateCheckFields []string) (string, bool, error) {
	payload := map[string]interface{}{
		"data":                   []map[string]interface{}{record},
		"duplicate_check_fields": duplicateCheckFields,
	}
	var resp writeResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, fmt.Sprintf("%s/%s/upsert", c.baseURL, module), c.headers(), payload, &resp); err != nil {
		return "", false, err
	}
	r, err := firstResult(resp)
	if err != nil {
		return "", false, err
	}
	return r.Details.ID, r.Action == "insert", nil
}

// UpdateRecord overwrites the given fields of an existing record.
func (c *CRMClient) UpdateRecord(ctx context.Context, module, id string, record map[string]interface{}) error {
	payload := map[string]interface{}{
		"data": []map[string]interface{}{record},
	}
	var resp writeResponse
	if err := c.http.DoJSON(ctx, http.MethodPut, fmt.Sprintf("%s/%s/%s", c.baseURL, module, id), c.headers(), payload, &resp); err != nil {
		return err
	}
	_, err := firstResult(resp)
	return err
}

// GetRecord fetches one record by id.
func (c *CRMClient) GetRecord(ctx context.Context, module, id string) (map[string]interface{}, error) {
	var result struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s", c.baseURL, module, id), c.headers(), nil, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("record not found")
	}
	return result.Data[0], nil
}
