package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/scoopworks/creamery-backend/api/middleware"
	"github.com/scoopworks/creamery-backend/pkg/enums"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
)

// actorFromRequest extracts the authenticated user and role seeded by
// the auth middleware.
func actorFromRequest(r *http.Request) (uuid.UUID, enums.UserRole, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}

	role := enums.UserRole(middleware.RoleFromContext(r.Context()))
	if !role.IsValid() {
		role = enums.UserRoleCustomer
	}
	return userID, role, nil
}

// pathUUID parses a uuid url parameter.
func pathUUID(r *http.Request, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid id in path")
	}
	return id, nil
}
