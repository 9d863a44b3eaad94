package postgres

// visibilityClause hides tombstoned rows unless the repository is unscoped.
func visibilityClause(alias string, unscoped bool) string {
	if unscoped {
		return ""
	}
	if alias != "" {
		alias += "."
	}
	return " AND " + alias + "is_deleted = FALSE"
}
