// Package db provides database models and utilities for Shunt.
package db

import (
	"time"

	"github.com/google/uuid"
)

type BaseModel struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MigrationModel records applied manual migrations.
type MigrationModel struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null;unique"`
	AppliedAt time.Time
}

func (MigrationModel) TableName() string {
	return "migrations"
}

type RunModel struct {
	BaseModel
	Environment string `gorm:"not null;index;check:environment <> ''"` // staging, production
	AppName     string `gorm:"not null;check:app_name <> ''"`
	CommitHash  string
	Branch      string
	Status      string `gorm:"not null;check:status <> ''"` // succeeded, warning, failed
	Warnings    string `gorm:"type:text"`                   // warnings separated by null character (\0)
	FinishedAt  *time.Time

	Results []DeploymentResultModel `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

func (RunModel) TableName() string {
	return "runs"
}

type DeploymentResultModel struct {
	BaseModel
	RunID       uuid.UUID `gorm:"not null;index"`
	ServiceName string    `gorm:"not null;check:service_name <> ''"`
	Role        string    `gorm:"not null;check:role <> ''"` // database, backend, frontend
	Status      string    `gorm:"not null;check:status <> ''"`
	URL         string
	// ConnectionURL carries database credentials and is stored encrypted.
	ConnectionURL *string `gorm:"type:text"`
	Detail        string  `gorm:"type:text"`
	StartedAt     time.Time
	FinishedAt    time.Time

	Run       RunModel           `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
	Variables []RunVariableModel `gorm:"foreignKey:ResultID;constraint:OnDelete:CASCADE"`
}

func (DeploymentResultModel) TableName() string {
	return "deployment_results"
}

// RunVariableModel records one configuration variable a deployment set on
// its service. Secret values are stored encrypted, the rest plaintext.
type RunVariableModel struct {
	BaseModel
	ResultID uuid.UUID `gorm:"not null;index"`
	Name     string    `gorm:"not null;check:name <> ''"`
	Value    string    `gorm:"type:text"`
	Secret   bool
}

func (RunVariableModel) TableName() string {
	return "run_variables"
}
