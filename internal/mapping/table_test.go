package mapping

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"admissions-lifecycle/internal/audit"
	"admissions-lifecycle/internal/authz"
	apperrors "admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/common/logger"
	"admissions-lifecycle/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleApp() models.Application {
	return models.Application{
		ID:              "app-1",
		Status:          models.StatusApproved,
		Priority:        models.PriorityHigh,
		ConfidenceScore: 92,
		DecisionNotes:   "Bed available",
		ExtractedFields: map[string]interface{}{
			"patient_name":  "Jane Roe",
			"dob":           "1950-02-03",
			"insurance":     "Medicare",
			"policy_number": "",
			"diagnosis":     []interface{}{"CHF", "COPD"},
			"Address": map[string]interface{}{
				"Street": "1 Main St",
				"City":   "Detroit",
			},
		},
	}
}

// ==========================
// Table edits
// ==========================

func TestTable_AddDuplicateSourceReplacesInPlace(t *testing.T) {
	tbl := NewTable(nil)
	require.NoError(t, tbl.Add("Phone", "Patient.PrimaryPhone"))
	require.NoError(t, tbl.Add("Diagnosis", "Referral.PrimaryDiagnosis"))
	require.NoError(t, tbl.Add("Phone", "Patient.MobilePhone"))

	got := tbl.Mappings()
	require.Len(t, got, 2)
	assert.Equal(t, models.FieldMapping{SourceField: "Phone", DestinationField: "Patient.MobilePhone"}, got[0])
}

func TestTable_EditCollisionDropsOtherEntry(t *testing.T) {
	tbl := NewTable([]models.FieldMapping{
		{SourceField: "A", DestinationField: "X.A"},
		{SourceField: "B", DestinationField: "X.B"},
		{SourceField: "C", DestinationField: "X.C"},
	})

	require.NoError(t, tbl.Edit(2, "A", "Y.A"))
	assert.Equal(t, []models.FieldMapping{
		{SourceField: "B", DestinationField: "X.B"},
		{SourceField: "A", DestinationField: "Y.A"},
	}, tbl.Mappings())
}

func TestTable_Validation(t *testing.T) {
	tbl := NewTable(nil)
	assert.Error(t, tbl.Add("", "X"))
	assert.Error(t, tbl.Add("A", "Patient..Name"))
	assert.Error(t, tbl.Edit(0, "A", "X"))
	assert.Error(t, tbl.Remove(3))
}

func TestTable_RemoveAndRemoveSource(t *testing.T) {
	tbl := NewTable(DefaultMappings())
	require.Equal(t, 10, tbl.Len())

	require.NoError(t, tbl.Remove(0))
	assert.Equal(t, "Date of Birth", tbl.Mappings()[0].SourceField)

	assert.True(t, tbl.RemoveSource("Phone"))
	assert.False(t, tbl.RemoveSource("Phone"))
	assert.Equal(t, 8, tbl.Len())
}

func TestTable_MappingsIsSnapshot(t *testing.T) {
	tbl := NewTable(DefaultMappings())
	snap := tbl.Mappings()
	require.NoError(t, tbl.Add("Allergies", "Patient.Allergies"))
	assert.Len(t, snap, 10)
}

// ==========================
// Projection
// ==========================

func TestProjection_DefaultMappings(t *testing.T) {
	tbl := NewTable(DefaultMappings())
	p := tbl.Projection(sampleApp())

	assert.Equal(t, "Jane Roe", GetNestedValue(p, "Patient.FullName"))
	assert.Equal(t, "1950-02-03", GetNestedValue(p, "Patient.DateOfBirth"))
	assert.Equal(t, "Medicare", GetNestedValue(p, "Patient.InsurancePlan"))
	assert.Equal(t, "CHF", GetNestedValue(p, "Referral.PrimaryDiagnosis.0"))
	assert.Equal(t, "approved", GetNestedValue(p, "Referral.AdmissionStatus"))
	assert.Equal(t, "Bed available", GetNestedValue(p, "Referral.ClinicalNotes"))

	// missing or empty sources are omitted, not defaulted
	assert.Nil(t, GetNestedValue(p, "Patient.PrimaryPhone"))
	assert.Nil(t, GetNestedValue(p, "Patient.MemberID"))
	assert.Nil(t, GetNestedValue(p, "Referral.FacilityCode"))
}

func TestProjection_NestedSourceAndDestination(t *testing.T) {
	tbl := NewTable([]models.FieldMapping{
		{SourceField: "Address.Street", DestinationField: "Patient.Address.Street"},
		{SourceField: "Address.City", DestinationField: "Patient.Address.City"},
		{SourceField: "Application ID", DestinationField: "ExternalKey"},
		{SourceField: "Unknown Field", DestinationField: "Patient.Nothing"},
	})
	p := tbl.Projection(sampleApp())

	assert.Equal(t, map[string]interface{}{
		"Patient": map[string]interface{}{
			"Address": map[string]interface{}{
				"Street": "1 Main St",
				"City":   "Detroit",
			},
		},
		"ExternalKey": "app-1",
	}, p)
}

func TestProjection_DoesNotWriteIntoExtractedFields(t *testing.T) {
	app := sampleApp()
	app.ExtractedFields["phone"] = "555-0100"
	p := Project([]models.FieldMapping{
		{SourceField: "Address", DestinationField: "Patient.Address"},
		{SourceField: "phone", DestinationField: "Patient.Address.Phone"},
		{SourceField: "diagnosis", DestinationField: "Referral.Diagnosis"},
	}, app)

	assert.Equal(t, "555-0100", GetNestedValue(p, "Patient.Address.Phone"))
	assert.Equal(t, map[string]interface{}{"Street": "1 Main St", "City": "Detroit"}, app.ExtractedFields["Address"])

	GetNestedValue(p, "Referral").(map[string]interface{})["Diagnosis"].([]interface{})[0] = "changed"
	assert.Equal(t, []interface{}{"CHF", "COPD"}, app.ExtractedFields["diagnosis"])
}

func TestProjection_ScalarOverwrittenByNestedPath(t *testing.T) {
	out := map[string]interface{}{}
	setNestedValue(out, "Patient", "flat")
	setNestedValue(out, "Patient.Name", "Jane")
	assert.Equal(t, "Jane", GetNestedValue(out, "Patient.Name"))
}

// ==========================
// Postgres repository
// ==========================

func TestPostgresRepository_LoadAndSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT source_field, destination_field").
		WillReturnRows(sqlmock.NewRows([]string{"source_field", "destination_field"}).
			AddRow("Phone", "Patient.PrimaryPhone"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM field_mappings")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO field_mappings").WithArgs(0, "Phone", "Patient.MobilePhone").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	repo := NewPostgresRepository(db)
	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.FieldMapping{{SourceField: "Phone", DestinationField: "Patient.PrimaryPhone"}}, got)

	require.NoError(t, repo.Save(context.Background(), []models.FieldMapping{{SourceField: "Phone", DestinationField: "Patient.MobilePhone"}}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Service
// ==========================

func TestService_AuthorizedEditIsAudited(t *testing.T) {
	rec := audit.NewMemoryRecorder(nil)
	svc := NewService(NewTable(DefaultMappings()), nil, authz.NewGate(nil), rec, logger.NewTestLogger(t))
	admin := models.Actor{ID: "u-admin", Role: models.RoleAdmin}

	require.NoError(t, svc.Add(context.Background(), admin, "Allergies", "Patient.Allergies"))

	entries, _ := rec.List(context.Background(), models.AuditFilter{Action: models.ActionFieldMappingUpdated})
	require.Len(t, entries, 1)
	assert.Equal(t, "u-admin", entries[0].ActorID)
	assert.Equal(t, 11, svc.Table().Len())
}

func TestService_ForbiddenForNonIntegrationRoles(t *testing.T) {
	rec := audit.NewMemoryRecorder(nil)
	svc := NewService(NewTable(DefaultMappings()), nil, authz.NewGate(nil), rec, logger.NewNoOpLogger())

	for _, role := range []models.Role{models.RoleManager, models.RoleReviewer, models.RoleViewer} {
		err := svc.Remove(context.Background(), models.Actor{ID: "u", Role: role}, 0)
		assert.True(t, errors.Is(err, apperrors.ErrForbidden), role)
		_, err = svc.List(models.Actor{Role: role})
		assert.True(t, errors.Is(err, apperrors.ErrForbidden), role)
	}
	assert.Equal(t, 10, svc.Table().Len())
	assert.Equal(t, 0, rec.Len())
}

func TestService_AuditFailureRestoresTable(t *testing.T) {
	rec := audit.NewMemoryRecorder(nil)
	rec.SetFailing(errors.New("audit store down"))
	svc := NewService(NewTable(DefaultMappings()), nil, authz.NewGate(nil), rec, logger.NewNoOpLogger())

	err := svc.Edit(context.Background(), models.Actor{ID: "u", Role: models.RoleAdmin}, 0, "Patient Name", "Patient.Name")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAuditFailure))
	assert.Equal(t, DefaultMappings(), svc.Table().Mappings())
}

type memRepo struct {
	stored  []models.FieldMapping
	saveErr error
}

func (r *memRepo) Load(context.Context) ([]models.FieldMapping, error) { return r.stored, nil }
func (r *memRepo) Save(_ context.Context, ms []models.FieldMapping) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.stored = ms
	return nil
}

func TestService_LoadSeedsEmptyStore(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(NewTable(DefaultMappings()), repo, authz.NewGate(nil), audit.NewMemoryRecorder(nil), logger.NewNoOpLogger())
	require.NoError(t, svc.Load(context.Background()))
	assert.Len(t, repo.stored, 10)

	repo.stored = []models.FieldMapping{{SourceField: "Phone", DestinationField: "Patient.Phone"}}
	require.NoError(t, svc.Load(context.Background()))
	assert.Equal(t, 1, svc.Table().Len())
}

func TestService_SaveFailureRestoresTable(t *testing.T) {
	repo := &memRepo{saveErr: errors.New("db down")}
	rec := audit.NewMemoryRecorder(nil)
	svc := NewService(NewTable(DefaultMappings()), repo, authz.NewGate(nil), rec, logger.NewNoOpLogger())

	err := svc.Add(context.Background(), models.Actor{ID: "u", Role: models.RoleAdmin}, "Allergies", "Patient.Allergies")
	require.Error(t, err)
	assert.Equal(t, 10, svc.Table().Len())
	assert.Equal(t, 0, rec.Len())
}
