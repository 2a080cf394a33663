package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shunt-cd/shunt/db"
	"github.com/shunt-cd/shunt/domain"
)

// RunMapper converts between domain runs and their database models.
// Connection URLs carry database credentials, so they are encrypted on the
// way into the database and decrypted on the way out.
type RunMapper struct {
	encryption *EncryptionService
}

func NewRunMapper(encryption *EncryptionService) *RunMapper {
	return &RunMapper{encryption: encryption}
}

func (m *RunMapper) ToDomain(model *db.RunModel) (*domain.Run, error) {
	status, err := domain.ParseRunStatus(model.Status)
	if err != nil {
		status = domain.RunStatusUnknown
	}

	run := &domain.Run{
		ID:          model.ID,
		Environment: domain.EnvironmentName(model.Environment),
		AppName:     model.AppName,
		CommitHash:  model.CommitHash,
		Branch:      model.Branch,
		Status:      status,
		Warnings:    parseWarnings(model.Warnings),
		CreatedAt:   model.CreatedAt,
	}
	if model.FinishedAt != nil {
		run.FinishedAt = *model.FinishedAt
	}

	for i := range model.Results {
		result, err := m.resultToDomain(&model.Results[i])
		if err != nil {
			return nil, err
		}
		run.Results = append(run.Results, result)
	}
	return run, nil
}

func (m *RunMapper) ToModel(run *domain.Run) (*db.RunModel, error) {
	model := &db.RunModel{
		BaseModel: db.BaseModel{
			ID:        run.ID,
			CreatedAt: run.CreatedAt,
		},
		Environment: run.Environment.String(),
		AppName:     run.AppName,
		CommitHash:  run.CommitHash,
		Branch:      run.Branch,
		Status:      run.Status.String(),
		Warnings:    serializeWarnings(run.Warnings),
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		model.FinishedAt = &finished
	}

	for _, result := range run.Results {
		resultModel, err := m.resultToModel(run.ID, result)
		if err != nil {
			return nil, err
		}
		model.Results = append(model.Results, *resultModel)
	}
	return model, nil
}

func (m *RunMapper) resultToDomain(model *db.DeploymentResultModel) (*domain.DeploymentResult, error) {
	status, err := domain.ParseDeployStatus(model.Status)
	if err != nil {
		status = domain.DeployStatusPending
	}

	result := &domain.DeploymentResult{
		ServiceName: model.ServiceName,
		Role:        domain.ServiceRole(model.Role),
		Status:      status,
		URL:         model.URL,
		Detail:      model.Detail,
		StartedAt:   model.StartedAt,
		FinishedAt:  model.FinishedAt,
	}

	if model.ConnectionURL != nil && *model.ConnectionURL != "" {
		connectionURL, err := m.encryption.Decrypt(*model.ConnectionURL)
		if err != nil {
			return nil, fmt.Errorf("decrypting connection URL for %s: %w", model.ServiceName, err)
		}
		result.ConnectionURL = connectionURL
	}

	for i := range model.Variables {
		v := &model.Variables[i]
		value := v.Value
		if v.Secret && value != "" {
			decrypted, err := m.encryption.Decrypt(value)
			if err != nil {
				return nil, fmt.Errorf("decrypting variable %s for %s: %w", v.Name, model.ServiceName, err)
			}
			value = decrypted
		}
		result.Variables = append(result.Variables, domain.RecordedVariable{
			Name:   v.Name,
			Value:  value,
			Secret: v.Secret,
		})
	}
	return result, nil
}

func (m *RunMapper) resultToModel(runID uuid.UUID, result *domain.DeploymentResult) (*db.DeploymentResultModel, error) {
	model := &db.DeploymentResultModel{
		BaseModel: db.BaseModel{
			ID: uuid.New(),
		},
		RunID:       runID,
		ServiceName: result.ServiceName,
		Role:        result.Role.String(),
		Status:      result.Status.String(),
		URL:         result.URL,
		Detail:      result.Detail,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
	}

	if result.ConnectionURL != "" {
		encrypted, err := m.encryption.Encrypt(result.ConnectionURL)
		if err != nil {
			return nil, fmt.Errorf("encrypting connection URL for %s: %w", result.ServiceName, err)
		}
		model.ConnectionURL = &encrypted
	}

	for _, v := range result.Variables {
		value := v.Value
		if v.Secret {
			encrypted, err := m.encryption.Encrypt(value)
			if err != nil {
				return nil, fmt.Errorf("encrypting variable %s for %s: %w", v.Name, result.ServiceName, err)
			}
			value = encrypted
		}
		model.Variables = append(model.Variables, db.RunVariableModel{
			BaseModel: db.BaseModel{ID: uuid.New()},
			ResultID:  model.ID,
			Name:      v.Name,
			Value:     value,
			Secret:    v.Secret,
		})
	}
	return model, nil
}

// Helper functions
func parseWarnings(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x00") // null-separated for better handling
}

func serializeWarnings(warnings []string) string {
	return strings.Join(warnings, "\x00")
}
