package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/locker-service/internal/service"
	apperrors "github.com/spec-kit/locker-service/pkg/util/errorutil"
)

type seedFile struct {
	Lockers []string    `yaml:"lockers"`
	Admins  []seedAdmin `yaml:"admins"`
}

type seedAdmin struct {
	StaffID  string `yaml:"staff_id"`
	Password string `yaml:"password"`
	FullName string `yaml:"fullname"`
	Email    string `yaml:"email"`
	Phone    string `yaml:"phone"`
}

type seedReport struct {
	LockersCreated int
	LockersSkipped int
	AdminsCreated  int
	AdminsSkipped  int
}

func loadSeedFile(path string) (*seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// applySeed is idempotent: lockers and admins that already exist are skipped.
func applySeed(ctx context.Context, lockers *service.LockerService, auth *service.AuthService, seed *seedFile) (seedReport, error) {
	var report seedReport

	created, skipped, err := lockers.BulkCreate(ctx, seed.Lockers)
	if err != nil {
		return report, fmt.Errorf("seed lockers: %w", err)
	}
	report.LockersCreated, report.LockersSkipped = created, skipped

	for _, admin := range seed.Admins {
		_, err := auth.CreateAdmin(ctx, service.AdminInput{
			StaffID:  admin.StaffID,
			Password: admin.Password,
			FullName: admin.FullName,
			Email:    admin.Email,
			Phone:    admin.Phone,
		})
		switch {
		case err == nil:
			report.AdminsCreated++
		case apperrors.HasCode(err, apperrors.CodeConflict):
			report.AdminsSkipped++
		default:
			return report, fmt.Errorf("seed admin %s: %w", admin.StaffID, err)
		}
	}
	return report, nil
}
