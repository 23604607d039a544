package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/edunex/core"
	"github.com/trezcool/edunex/core/material"
)

type materialRepository struct {
	db *DB
}

var _ material.Repository = (*materialRepository)(nil) // interface compliance check

func NewMaterialRepository(db *DB) *materialRepository {
	return &materialRepository{db: db}
}

func (repo *materialRepository) CreateMaterial(ctx context.Context, m material.Material, _ ...core.DBExecutor) (material.Material, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	m.ID = repo.db.nextID("materials")
	repo.db.materials[m.ID] = m
	return m, nil
}

func (repo *materialRepository) GetMaterial(ctx context.Context, id int64, _ ...core.DBExecutor) (material.Material, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if m, ok := repo.db.materials[id]; ok {
		return m, nil
	}
	return material.Material{}, material.ErrNotFound
}

func (repo *materialRepository) QueryMaterials(
	ctx context.Context,
	filter material.Filter,
	_ ...core.DBExecutor,
) ([]material.Material, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	materials := make([]material.Material, 0)
	for _, m := range repo.db.materials {
		if filter.CourseID != 0 && m.CourseID != filter.CourseID {
			continue
		}
		if filter.UploadedBy != 0 && (m.UploadedBy == nil || *m.UploadedBy != filter.UploadedBy) {
			continue
		}
		materials = append(materials, m)
	}
	sort.Slice(materials, func(i, j int) bool {
		if !materials[i].UploadedAt.Equal(materials[j].UploadedAt) {
			return materials[i].UploadedAt.After(materials[j].UploadedAt)
		}
		return materials[i].ID > materials[j].ID
	})
	return materials, nil
}

func (repo *materialRepository) UpdateMaterial(ctx context.Context, m material.Material, _ ...core.DBExecutor) (material.Material, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.materials[m.ID]; !ok {
		return material.Material{}, material.ErrNotFound
	}
	repo.db.materials[m.ID] = m
	return m, nil
}

func (repo *materialRepository) DeleteMaterial(ctx context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.materials[id]; !ok {
		return material.ErrNotFound
	}
	delete(repo.db.materials, id)
	return nil
}
