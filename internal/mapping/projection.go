package mapping

import (
	"strconv"
	"strings"

	"admissions-lifecycle/internal/models"
)

// fieldLabels names the extracted keys as the dashboard shows them.
var fieldLabels = map[string]string{
	"Patient Name":        "patient_name",
	"Date of Birth":       "dob",
	"Phone":               "phone",
	"Address":             "address",
	"Insurance Provider":  "insurance",
	"Policy Number":       "policy_number",
	"Diagnosis":           "diagnosis",
	"Medications":         "medications",
	"Allergies":           "allergies",
	"Referring Physician": "physician",
	"Requested Facility":  "facility",
	"Services":            "services",
	"AI Summary":          "ai_summary",
}

// Flatten returns the source field set of app: every extracted field, nested
// objects reachable as Parent.Child, the dashboard labels of known fields,
// and the decision fields.
func Flatten(app models.Application) map[string]interface{} {
	flat := make(map[string]interface{}, len(app.ExtractedFields)+8)
	for k, v := range app.ExtractedFields {
		flattenInto(flat, k, v)
	}
	for label, key := range fieldLabels {
		if v, ok := flat[key]; ok {
			if _, taken := flat[label]; !taken {
				flat[label] = v
			}
		}
	}

	flat["Application ID"] = app.ID
	flat["Decision Status"] = string(app.Status)
	if app.DecisionNotes != "" {
		flat["Decision Notes"] = app.DecisionNotes
	}
	if app.Priority != "" {
		flat["Priority"] = string(app.Priority)
	}
	flat["Confidence Score"] = app.ConfidenceScore
	if app.DecidedAt != nil {
		flat["Decided At"] = app.DecidedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return flat
}

func flattenInto(flat map[string]interface{}, key string, v interface{}) {
	if v == nil {
		return
	}
	flat[key] = v
	if nested, ok := v.(map[string]interface{}); ok {
		for k, child := range nested {
			flattenInto(flat, key+"."+k, child)
		}
	}
}

// Project applies mappings to app in order. Values are copied, so writes
// into the projection never reach app.
func Project(mappings []models.FieldMapping, app models.Application) map[string]interface{} {
	flat := Flatten(app)
	out := make(map[string]interface{})
	for _, m := range mappings {
		v, ok := flat[m.SourceField]
		if !ok || isEmpty(v) {
			continue
		}
		setNestedValue(out, m.DestinationField, models.CopyValue(v))
	}
	return out
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case []string:
		return len(val) == 0
	}
	return false
}

// setNestedValue writes value at a dot path, creating intermediate objects.
// A scalar sitting on an intermediate segment is replaced by an object.
func setNestedValue(data map[string]interface{}, path string, value interface{}) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// GetNestedValue reads a dot path from a projection. Numeric segments index
// into lists.
func GetNestedValue(data map[string]interface{}, path string) interface{} {
	var current interface{} = data
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]interface{}:
			current = v[part]
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil
			}
			current = v[idx]
		default:
			return nil
		}
		if current == nil {
			return nil
		}
	}
	return current
}
