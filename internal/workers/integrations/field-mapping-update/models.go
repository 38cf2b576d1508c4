package fieldmappingupdate

import "admissions-lifecycle/internal/models"

const (
	OperationList   = "list"
	OperationAdd    = "add"
	OperationEdit   = "edit"
	OperationRemove = "remove"
)

type Input struct {
	ActorID          string `json:"actorId"`
	Operation        string `json:"operation"`
	Index            *int   `json:"index,omitempty"`
	SourceField      string `json:"sourceField,omitempty"`
	DestinationField string `json:"destinationField,omitempty"`
}

type Output struct {
	Operation string                `json:"operation"`
	Mappings  []models.FieldMapping `json:"mappings"`
}

const inputSchema = `{
	"type": "object",
	"required": ["actorId", "operation"],
	"properties": {
		"actorId": {"type": "string", "minLength": 1},
		"operation": {"type": "string", "enum": ["list", "add", "edit", "remove"]},
		"index": {"type": "integer", "minimum": 0},
		"sourceField": {"type": "string"},
		"destinationField": {"type": "string"}
	},
	"allOf": [
		{"if": {"properties": {"operation": {"const": "add"}}},
		 "then": {"required": ["sourceField", "destinationField"]}},
		{"if": {"properties": {"operation": {"const": "edit"}}},
		 "then": {"required": ["index", "sourceField", "destinationField"]}},
		{"if": {"properties": {"operation": {"const": "remove"}}},
		 "then": {"required": ["index"]}}
	]
}`
