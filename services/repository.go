package services

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/shunt-cd/shunt/db"
	"github.com/shunt-cd/shunt/domain"
)

type runRepository struct {
	db     *gorm.DB
	mapper *RunMapper
}

func NewRunRepository(gormDB *gorm.DB, encryption *EncryptionService) RunStore {
	return &runRepository{
		db:     gormDB,
		mapper: NewRunMapper(encryption),
	}
}

func (r *runRepository) Create(run *domain.Run) error {
	model, err := r.mapper.ToModel(run)
	if err != nil {
		return err
	}

	if err := r.db.Create(model).Error; err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "create_run",
			"run_id", run.ID,
			"error", err)
		return err // Pass through as-is
	}

	// Keep the domain object in sync with the timestamps GORM populated
	run.CreatedAt = model.CreatedAt
	return nil
}

// Update rewrites the run row and replaces its results. Results carry no
// identity of their own, so delete-and-recreate keeps them consistent with
// the run object. Variable rows cascade with their results (the foreign_keys
// pragma is on).
func (r *runRepository) Update(run *domain.Run) error {
	model, err := r.mapper.ToModel(run)
	if err != nil {
		return err
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		// Select("*") so cleared fields update too; CreatedAt never changes
		if err := tx.Model(&db.RunModel{}).
			Where("id = ?", model.ID).
			Select("*").
			Omit("created_at", "Results").
			Updates(model).
			Error; err != nil {
			return err
		}

		if err := tx.Where("run_id = ?", model.ID).
			Delete(&db.DeploymentResultModel{}).
			Error; err != nil {
			return err
		}

		for i := range model.Results {
			if err := tx.Create(&model.Results[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "update_run",
			"run_id", run.ID,
			"error", err)
	}
	return err // Pass through as-is
}

func (r *runRepository) GetLatest(environment domain.EnvironmentName) (*domain.Run, error) {
	var model db.RunModel
	err := r.db.Preload("Results").
		Preload("Results.Variables").
		Where("environment = ?", environment.String()).
		Order("created_at DESC").
		First(&model).
		Error
	if err != nil {
		return nil, err // Pass through as-is; callers check gorm.ErrRecordNotFound
	}
	return r.mapper.ToDomain(&model)
}

func (r *runRepository) List(environment domain.EnvironmentName, limit int) ([]*domain.Run, error) {
	query := r.db.Preload("Results").Preload("Results.Variables").Order("created_at DESC")
	if environment != "" {
		query = query.Where("environment = ?", environment.String())
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []db.RunModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	runs := make([]*domain.Run, 0, len(models))
	for i := range models {
		run, err := r.mapper.ToDomain(&models[i])
		if err != nil {
			return nil, fmt.Errorf("loading run %s: %w", models[i].ID, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// LatestResult returns the newest successfully deployed result for a role in
// an environment, regardless of how the rest of that run went. It powers
// re-deploying a single service against outputs of earlier runs.
func (r *runRepository) LatestResult(environment domain.EnvironmentName, role domain.ServiceRole) (*domain.DeploymentResult, error) {
	var model db.DeploymentResultModel
	err := r.db.
		Preload("Variables").
		Joins("JOIN runs ON runs.id = deployment_results.run_id").
		Where("runs.environment = ?", environment.String()).
		Where("deployment_results.role = ?", role.String()).
		Where("deployment_results.status = ?", domain.DeployStatusDeployed.String()).
		Order("runs.created_at DESC").
		First(&model).
		Error
	if err != nil {
		return nil, err // Pass through as-is; callers check gorm.ErrRecordNotFound
	}
	return r.mapper.resultToDomain(&model)
}
