package catalyst

import "strings"

// DeploymentFields selects which optional parts of a deployment the server
// returns.
type DeploymentFields uint8

const (
	FieldPointers DeploymentFields = 1 << iota
	FieldContent
	FieldMetadata
	FieldAuditInfo
)

const (
	// DefaultFields is what a listing returns when no fields are requested.
	DefaultFields = FieldPointers | FieldContent | FieldMetadata
	AllFields     = DefaultFields | FieldAuditInfo
)

var fieldNames = []struct {
	field DeploymentFields
	name  string
}{
	{FieldPointers, "pointers"},
	{FieldContent, "content"},
	{FieldMetadata, "metadata"},
	{FieldAuditInfo, "auditInfo"},
}

// Has reports whether every field of other is set in f.
func (f DeploymentFields) Has(other DeploymentFields) bool { return f&other == other }

// String renders f as the comma-separated value of the "fields" query param.
func (f DeploymentFields) String() string {
	var parts []string
	for _, fn := range fieldNames {
		if f.Has(fn.field) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseDeploymentFields parses a comma-separated field list. Unknown names
// are reported in the second return value.
func ParseDeploymentFields(s string) (DeploymentFields, []string) {
	var f DeploymentFields
	var unknown []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		found := false
		for _, fn := range fieldNames {
			if strings.EqualFold(part, fn.name) {
				f |= fn.field
				found = true
			}
		}
		if !found {
			unknown = append(unknown, part)
		}
	}
	return f, unknown
}
