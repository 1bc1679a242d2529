package domain

import "fmt"

// Field names one of the seven metadata values collected during the workflow.
type Field uint8

const (
	FieldNone Field = iota
	FieldProtocolName
	FieldDate
	FieldProjectNumber
	FieldContractYear
	FieldProjectType
	FieldObjectName
	FieldClientName
)

var fieldNames = [...]string{
	FieldNone:          "",
	FieldProtocolName:  "protocol_name",
	FieldDate:          "date",
	FieldProjectNumber: "project_number",
	FieldContractYear:  "contract_year",
	FieldProjectType:   "project_type",
	FieldObjectName:    "object_name",
	FieldClientName:    "client_name",
}

// Fields lists the metadata fields in collection order.
func Fields() []Field {
	return []Field{
		FieldProtocolName,
		FieldDate,
		FieldProjectNumber,
		FieldContractYear,
		FieldProjectType,
		FieldObjectName,
		FieldClientName,
	}
}

func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// Metadata holds the free-form values collected in the collecting_* states.
// Every key is always serialized so unpopulated fields survive a round trip.
type Metadata struct {
	ProtocolName  string `json:"protocol_name" yaml:"protocol_name"`
	Date          string `json:"date" yaml:"date"`
	ProjectNumber string `json:"project_number" yaml:"project_number"`
	ContractYear  string `json:"contract_year" yaml:"contract_year"`
	ProjectType   string `json:"project_type" yaml:"project_type"`
	ObjectName    string `json:"object_name" yaml:"object_name"`
	ClientName    string `json:"client_name" yaml:"client_name"`
}

func (m *Metadata) ref(f Field) *string {
	switch f {
	case FieldProtocolName:
		return &m.ProtocolName
	case FieldDate:
		return &m.Date
	case FieldProjectNumber:
		return &m.ProjectNumber
	case FieldContractYear:
		return &m.ContractYear
	case FieldProjectType:
		return &m.ProjectType
	case FieldObjectName:
		return &m.ObjectName
	case FieldClientName:
		return &m.ClientName
	}
	return nil
}

// Get returns the value stored for f ("" for unknown fields).
func (m Metadata) Get(f Field) string {
	if p := m.ref(f); p != nil {
		return *p
	}
	return ""
}

// Set overwrites a single field. Unknown fields are ignored.
func (m *Metadata) Set(f Field, value string) {
	if p := m.ref(f); p != nil {
		*p = value
	}
}

// Merge copies every non-empty field of update into m, leaving the rest intact.
func (m *Metadata) Merge(update Metadata) {
	for _, f := range Fields() {
		if v := update.Get(f); v != "" {
			m.Set(f, v)
		}
	}
}

// Complete reports whether every field has been populated.
func (m Metadata) Complete() bool {
	for _, f := range Fields() {
		if m.Get(f) == "" {
			return false
		}
	}
	return true
}
