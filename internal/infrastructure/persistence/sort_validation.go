package persistence

import "strings"

// Sort parameters arrive from query strings and end up interpolated into
// ORDER BY clauses, so both the direction and the column name are checked
// against a fixed set before any SQL is built.

// ValidateSortOrder normalizes a direction to ASC or DESC, defaulting to
// DESC for anything unrecognized.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField accepts a column only when the whitelist knows it,
// falling back to defaultField otherwise.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed != "" && allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// TenantSortFields lists the tenant columns the admin listing may sort by.
var TenantSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"name":       true,
	"status":     true,
	"plan_tier":  true,
}
