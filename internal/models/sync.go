package models

// FieldMapping projects one source field onto a destination path such as
// Patient.Address.Street.
type FieldMapping struct {
	SourceField      string `json:"sourceField"`
	DestinationField string `json:"destinationField"`
}

// SyncResult is the outcome of pushing a projection to the external system.
type SyncResult struct {
	Success          bool   `json:"success"`
	ExternalRecordID string `json:"externalRecordId,omitempty"`
	Error            string `json:"error,omitempty"`
}
