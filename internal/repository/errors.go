package repository

import (
	"errors"

	"nxfs_api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// uniqueFields maps unique constraint/index names to the JSON field they guard.
var uniqueFields = map[string]string{
	"users_email_key":                        "email",
	"projects_user_name_key":                 "name",
	"categories_name_key":                    "name",
	"categories_slug_key":                    "slug",
	"tags_name_key":                          "name",
	"tags_slug_key":                          "slug",
	"blog_posts_author_slug_key":             "slug",
	"suppliers_name_key":                     "name",
	"electrical_categories_block_number_key": "block_number",
	"electrical_categories_slug_key":         "slug",
	"materials_el_nr_key":                    "el_nr",
	"jobs_pkey":                              "order_no",
	"jobs_title_key":                         "title",
	"usage_projects_name_key":                "name",
	"docker_hosts_name_key":                  "name",
	"chat_rooms_direct_pair_key":             "user_id",
}

var foreignKeyFields = map[string]string{
	"materials_supplier_id_fkey":          "supplier_id",
	"materials_category_id_fkey":          "category_id",
	"job_materials_material_id_fkey":      "material_id",
	"job_materials_job_id_fkey":           "job_id",
	"time_entries_job_id_fkey":            "job_id",
	"tasks_project_id_fkey":               "project_id",
	"task_categories_category_id_fkey":    "category",
	"blog_post_tags_tag_id_fkey":          "tag_ids",
	"llm_provider_tags_tag_id_fkey":       "tag_ids",
	"chat_room_participants_user_id_fkey": "participant_ids",
	"chat_messages_reply_to_fkey":         "reply_to",
}

// mapError translates pgx errors into domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		field, ok := uniqueFields[pgErr.ConstraintName]
		if !ok {
			field = "non_field_errors"
		}
		return &domain.ConflictError{Field: field, Message: "A record with this " + field + " already exists."}
	case pgForeignKeyViolation:
		field, ok := foreignKeyFields[pgErr.ConstraintName]
		if !ok {
			field = "non_field_errors"
		}
		return domain.NewValidationError(field, "Invalid pk - object does not exist.")
	}
	return err
}
