package services

import (
	"errors"
	"log/slog"
	"net/http"
	"workforce_platform/workforce/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

// dbCreateError maps unique constraint violations to 409, everything else to
// an internal error. Relies on gorm error translation being enabled so races
// that slip past the in-transaction duplicate checks still fail cleanly.
func dbCreateError(err error, action string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return CodedError(err, http.StatusConflict)
	}
	slog.Error("sql error "+action, "error", err)
	return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
}

func checkUserExists(txn *gorm.DB, userId, companyId uuid.UUID) error {
	if _, err := schema.GetUser(userId, companyId, txn); err != nil {
		if errors.Is(err, schema.ErrUserNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkTeamExists(txn *gorm.DB, teamId, companyId uuid.UUID) error {
	if _, err := schema.GetTeam(teamId, companyId, txn); err != nil {
		if errors.Is(err, schema.ErrTeamNotFound) {
			return CodedError(err, http.StatusNotFound)
		}
		return CodedError(err, http.StatusInternalServerError)
	}
	return nil
}

func checkFeatureExists(txn *gorm.DB, featureId uuid.UUID) error {
	var feature schema.Feature
	result := txn.First(&feature, "id = ?", featureId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return CodedError(schema.ErrFeatureNotFound, http.StatusNotFound)
		}
		slog.Error("sql error checking feature", "feature_id", featureId, "error", result.Error)
		return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return nil
}
