package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/material"
)

const materialColumns = "id, course_id, title, description, type, url, uploaded_by, uploaded_at"

type materialRow struct {
	ID          int64      `db:"id"`
	CourseID    int64      `db:"course_id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	Type        string     `db:"type"`
	URL         string     `db:"url"`
	UploadedBy  null.Int64 `db:"uploaded_by"`
	UploadedAt  time.Time  `db:"uploaded_at"`
}

func (r materialRow) toMaterial() material.Material {
	return material.Material{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		Type:        material.Type(r.Type),
		URL:         r.URL,
		UploadedBy:  r.UploadedBy.Ptr(),
		UploadedAt:  r.UploadedAt.UTC(),
	}
}

type materialRepository struct {
	repository
}

var _ material.Repository = (*materialRepository)(nil) // interface compliance check

func NewMaterialRepository(db *sqlx.DB) *materialRepository {
	return &materialRepository{repository{db: db}}
}

func (repo *materialRepository) CreateMaterial(
	ctx context.Context,
	m material.Material,
	svcExec ...core.DBExecutor,
) (material.Material, error) {
	q := `INSERT INTO course_materials (course_id, title, description, type, url, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := sqlx.GetContext(
		ctx, repo.getExec(svcExec), &m.ID, q,
		m.CourseID, m.Title, m.Description, string(m.Type), m.URL, null.Int64FromPtr(m.UploadedBy), m.UploadedAt,
	)
	if err != nil {
		return material.Material{}, errors.Wrap(err, "inserting material")
	}
	return m, nil
}

func (repo *materialRepository) GetMaterial(ctx context.Context, id int64, svcExec ...core.DBExecutor) (material.Material, error) {
	var row materialRow
	q := "SELECT " + materialColumns + " FROM course_materials WHERE id = $1"
	if err := sqlx.GetContext(ctx, repo.getExec(svcExec), &row, q, id); err != nil {
		return material.Material{}, trapNoRowsErr(err, material.ErrNotFound, "selecting material")
	}
	return row.toMaterial(), nil
}

func (repo *materialRepository) QueryMaterials(
	ctx context.Context,
	filter material.Filter,
	svcExec ...core.DBExecutor,
) ([]material.Material, error) {
	w := &where{}
	if filter.CourseID != 0 {
		w.add("course_id = ?", filter.CourseID)
	}
	if filter.UploadedBy != 0 {
		w.add("uploaded_by = ?", filter.UploadedBy)
	}

	exec := repo.getExec(svcExec)
	var rows []materialRow
	q := exec.Rebind("SELECT " + materialColumns + " FROM course_materials" + w.String() + " ORDER BY uploaded_at DESC, id DESC")
	if err := sqlx.SelectContext(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting materials")
	}
	materials := make([]material.Material, len(rows))
	for i, r := range rows {
		materials[i] = r.toMaterial()
	}
	return materials, nil
}

func (repo *materialRepository) UpdateMaterial(
	ctx context.Context,
	m material.Material,
	svcExec ...core.DBExecutor,
) (material.Material, error) {
	q := "UPDATE course_materials SET title = $1, description = $2, type = $3, url = $4 WHERE id = $5"
	res, err := repo.getExec(svcExec).ExecContext(ctx, q, m.Title, m.Description, string(m.Type), m.URL, m.ID)
	if err != nil {
		return material.Material{}, errors.Wrap(err, "updating material")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return material.Material{}, material.ErrNotFound
	}
	return m, nil
}

func (repo *materialRepository) DeleteMaterial(ctx context.Context, id int64, svcExec ...core.DBExecutor) error {
	res, err := repo.getExec(svcExec).ExecContext(ctx, "DELETE FROM course_materials WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting material")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return material.ErrNotFound
	}
	return nil
}
