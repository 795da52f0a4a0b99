package service

import (
	"github.com/google/uuid"

	"github.com/noah-isme/institute-compass-api/pkg/database"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

// storeError translates a repository failure into the API error taxonomy.
// Callers handle sql.ErrNoRows themselves since its meaning depends on the operation.
func storeError(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case database.IsUnavailable(err):
		return appErrors.WithCause(appErrors.ErrStoreUnavailable, err, "database unavailable")
	case database.IsUniqueViolation(err):
		return appErrors.WithCause(appErrors.ErrConflict, err, "record already exists")
	case database.IsForeignKeyViolation(err):
		return appErrors.WithCause(appErrors.ErrValidation, err, "referenced record does not exist")
	case database.PQCode(err) == database.CodeCheckViolation:
		return appErrors.WithCause(appErrors.ErrValidation, err, "value violates a constraint")
	case database.PQCode(err) == database.CodeInvalidTextRepresentation:
		return appErrors.WithCause(appErrors.ErrValidation, err, "malformed value")
	}
	if appErr, ok := err.(*appErrors.Error); ok {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// validationError wraps a validator failure.
func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
