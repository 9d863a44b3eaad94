package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

// ActivityLogStore is append-only: there is no update or delete path.
type ActivityLogStore struct {
	db *sql.DB
}

func NewActivityLogStore(db *sql.DB) *ActivityLogStore {
	return &ActivityLogStore{db: db}
}

func (s *ActivityLogStore) Append(ctx context.Context, entry *domain.ActivityLog) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO activity_logs (
	id, tenant_id, project_id, actor_id, actor_name, actor_email, activity_type, entity_type, entity_id,
	entity_name, metadata, description, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		entry.ID, entry.TenantID, entry.ProjectID, entry.ActorID, entry.ActorName, entry.ActorEmail,
		string(entry.ActivityType), entry.EntityType, entry.EntityID, entry.EntityName,
		nullableJSON(entry.Metadata), entry.Description, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

func (s *ActivityLogStore) Query(ctx context.Context, filter domain.ActivityFilter) (domain.ActivityPage, error) {
	filter = filter.Normalize()
	where, args := activityWhere(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs WHERE `+where, args...).Scan(&total); err != nil {
		return domain.ActivityPage{}, fmt.Errorf("count activity logs: %w", err)
	}

	pageArgs := append(append([]interface{}(nil), args...), filter.Limit, filter.Offset)
	rows, err := s.db.QueryContext(ctx, `
SELECT id, tenant_id, project_id, actor_id, actor_name, actor_email, activity_type, entity_type, entity_id,
	entity_name, metadata, description, created_at
FROM activity_logs
WHERE `+where+`
ORDER BY created_at DESC, id DESC
LIMIT $`+strconv.Itoa(len(args)+1)+` OFFSET $`+strconv.Itoa(len(args)+2), pageArgs...)
	if err != nil {
		return domain.ActivityPage{}, fmt.Errorf("query activity logs: %w", err)
	}
	defer rows.Close()

	page := domain.ActivityPage{Total: total, Items: make([]domain.ActivityLog, 0)}
	for rows.Next() {
		var entry domain.ActivityLog
		var activityType string
		var metadata []byte
		err := rows.Scan(
			&entry.ID, &entry.TenantID, &entry.ProjectID, &entry.ActorID, &entry.ActorName, &entry.ActorEmail,
			&activityType, &entry.EntityType, &entry.EntityID, &entry.EntityName, &metadata, &entry.Description,
			&entry.CreatedAt,
		)
		if err != nil {
			return domain.ActivityPage{}, fmt.Errorf("scan activity log: %w", err)
		}
		entry.ActivityType = domain.ActivityType(activityType)
		if len(metadata) > 0 {
			entry.Metadata = append([]byte(nil), metadata...)
		}
		page.Items = append(page.Items, entry)
	}
	if err := rows.Err(); err != nil {
		return domain.ActivityPage{}, fmt.Errorf("iterate activity logs: %w", err)
	}
	return page, nil
}

func activityWhere(filter domain.ActivityFilter) (string, []interface{}) {
	args := []interface{}{filter.TenantID}
	clauses := []string{"tenant_id = $1"}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.ProjectID != "" {
		add("project_id = ?", filter.ProjectID)
	}
	if filter.ActivityType != "" {
		add("activity_type = ?", string(filter.ActivityType))
	}
	if filter.ActorID != "" {
		add("actor_id = ?", filter.ActorID)
	}
	if filter.EntityType != "" {
		add("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		add("entity_id = ?", filter.EntityID)
	}
	if filter.From != nil {
		add("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= ?", *filter.To)
	}
	if filter.Search != "" {
		add("(description ILIKE ? OR entity_name ILIKE ? OR actor_name ILIKE ?)", "%"+escapeLike(filter.Search)+"%")
	}
	return strings.Join(clauses, " AND "), args
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
