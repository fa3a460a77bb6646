// Package directory resolves reporting lines from the users table. It stands
// in for an external HR system; the engine treats its errors as a closed door.
package directory

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/expenseflow/expenseflow/internal/application/port"
	"github.com/expenseflow/expenseflow/internal/domain/apperr"
)

// UserDirectory implements port.Directory over the user repository.
type UserDirectory struct {
	users  port.UserRepository
	logger *zap.Logger
}

// NewUserDirectory creates a directory backed by the user store.
func NewUserDirectory(users port.UserRepository, logger *zap.Logger) *UserDirectory {
	return &UserDirectory{
		users:  users,
		logger: logger,
	}
}

// ResolveManager returns the employee's direct manager id, or "" when the
// employee has no manager or is inactive. An unknown employee is not an
// error; a storage failure is, and the caller fails closed on it.
func (d *UserDirectory) ResolveManager(ctx context.Context, employeeID string) (string, error) {
	user, err := d.users.GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil
		}
		d.logger.Error("Failed to resolve manager", zap.String("employee_id", employeeID), zap.Error(err))
		return "", err
	}

	if !user.IsActive {
		return "", nil
	}
	return user.ManagerID, nil
}

// Verify interface compliance
var _ port.Directory = (*UserDirectory)(nil)
