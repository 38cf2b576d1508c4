// Package mapping projects an application's fields onto an external CRM schema.
package mapping

import (
	"strings"
	"sync"

	apperrors "admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/models"
)

// DefaultMappings is the editable starting configuration for the EHR target.
func DefaultMappings() []models.FieldMapping {
	return []models.FieldMapping{
		{SourceField: "Patient Name", DestinationField: "Patient.FullName"},
		{SourceField: "Date of Birth", DestinationField: "Patient.DateOfBirth"},
		{SourceField: "Phone", DestinationField: "Patient.PrimaryPhone"},
		{SourceField: "Insurance Provider", DestinationField: "Patient.InsurancePlan"},
		{SourceField: "Policy Number", DestinationField: "Patient.MemberID"},
		{SourceField: "Diagnosis", DestinationField: "Referral.PrimaryDiagnosis"},
		{SourceField: "Requested Facility", DestinationField: "Referral.FacilityCode"},
		{SourceField: "Referring Physician", DestinationField: "Referral.ReferringProvider"},
		{SourceField: "Decision Status", DestinationField: "Referral.AdmissionStatus"},
		{SourceField: "Decision Notes", DestinationField: "Referral.ClinicalNotes"},
	}
}

// Table is an ordered list of mappings, unique by source field. Order is
// display order only. Safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	entries []models.FieldMapping
}

// NewTable builds a table from initial, collapsing duplicate sources with the
// last one winning.
func NewTable(initial []models.FieldMapping) *Table {
	t := &Table{}
	for _, m := range initial {
		_ = t.Add(m.SourceField, m.DestinationField)
	}
	return t
}

func validate(source, dest string) error {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(dest) == "" {
		return apperrors.NewValidationFailedError("source and destination field are required")
	}
	for _, part := range strings.Split(dest, ".") {
		if part == "" {
			return apperrors.NewValidationFailedError("destination field has an empty path segment: " + dest)
		}
	}
	return nil
}

func (t *Table) indexOf(source string) int {
	for i, m := range t.entries {
		if m.SourceField == source {
			return i
		}
	}
	return -1
}

// Add appends a mapping. If source is already mapped its destination is
// replaced in place.
func (t *Table) Add(source, dest string) error {
	source, dest = strings.TrimSpace(source), strings.TrimSpace(dest)
	if err := validate(source, dest); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.indexOf(source); i >= 0 {
		t.entries[i].DestinationField = dest
		return nil
	}
	t.entries = append(t.entries, models.FieldMapping{SourceField: source, DestinationField: dest})
	return nil
}

// Edit rewrites the entry at index. If the new source collides with another
// entry, that other entry is dropped.
func (t *Table) Edit(index int, source, dest string) error {
	source, dest = strings.TrimSpace(source), strings.TrimSpace(dest)
	if err := validate(source, dest); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.entries) {
		return apperrors.NewValidationFailedError("mapping index out of range")
	}
	t.entries[index] = models.FieldMapping{SourceField: source, DestinationField: dest}
	for i := len(t.entries) - 1; i >= 0; i-- {
		if i != index && t.entries[i].SourceField == source {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
		}
	}
	return nil
}

func (t *Table) Remove(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.entries) {
		return apperrors.NewValidationFailedError("mapping index out of range")
	}
	t.entries = append(t.entries[:index], t.entries[index+1:]...)
	return nil
}

// RemoveSource drops the mapping for source, reporting whether one existed.
func (t *Table) RemoveSource(source string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOf(source)
	if i < 0 {
		return false
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	return true
}

// Replace swaps the whole table, with the same dedup rule as NewTable.
func (t *Table) Replace(ms []models.FieldMapping) {
	fresh := NewTable(ms)
	t.mu.Lock()
	t.entries = fresh.entries
	t.mu.Unlock()
}

// Mappings returns a snapshot copy.
func (t *Table) Mappings() []models.FieldMapping {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.FieldMapping, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Projection builds the destination record for app from the current snapshot.
// Sources with no value are omitted.
func (t *Table) Projection(app models.Application) map[string]interface{} {
	return Project(t.Mappings(), app)
}
