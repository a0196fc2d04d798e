package users

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"patrimony/internal/repository"
	"patrimony/pkg/apperrors"
	"patrimony/pkg/models"
)

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Fullname string `json:"fullname"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type UpdateUserRequest struct {
	Fullname *string `json:"fullname"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

type UserRepository interface {
	PersistUser(req CreateUserRequest, hashedPassword []byte) error
	GetUser(id int) (*models.User, error)
	GetUsers() ([]models.User, error)
	UpdateUser(id int, fields goqu.Record) error
	GetRoleByUsername(username string) (string, error)
}

type userRepositoryImpl struct {
	repository *repository.Repository
}

func NewRepository(r *repository.Repository) UserRepository {
	return &userRepositoryImpl{repository: r}
}

func (r *userRepositoryImpl) PersistUser(req CreateUserRequest, hashedPassword []byte) error {
	_, err := r.repository.GoquDBWrapper.Insert("users").
		Rows(goqu.Record{
			"password_hash": string(hashedPassword),
			"username":      req.Username,
			"fullname":      req.Fullname,
			"role":          req.Role,
		}).
		Executor().Exec()
	if err != nil {
		return apperrors.WrapDBError(fmt.Errorf("failed to insert user: %w", err))
	}
	return nil
}

func (r *userRepositoryImpl) GetUser(id int) (*models.User, error) {
	var user models.User
	found, err := r.repository.GoquDBWrapper.Select("id", "username", "fullname", "password_hash", "role").
		From("users").
		Where(goqu.Ex{"id": id}).
		Executor().ScanStruct(&user)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !found {
		return nil, &apperrors.NotFoundError{Entity: "user", ID: fmt.Sprint(id)}
	}
	return &user, nil
}

func (r *userRepositoryImpl) GetUsers() ([]models.User, error) {
	var users []models.User
	err := r.repository.GoquDBWrapper.Select("id", "username", "fullname", "role").
		From("users").
		Order(goqu.I("username").Asc()).
		Executor().ScanStructs(&users)
	if err != nil {
		return nil, fmt.Errorf("failed to select users: %w", err)
	}
	return users, nil
}

func (r *userRepositoryImpl) UpdateUser(id int, fields goqu.Record) error {
	_, err := r.repository.GoquDBWrapper.Update("users").
		Set(fields).
		Where(goqu.Ex{"id": id}).
		Executor().Exec()
	if err != nil {
		return apperrors.WrapDBError(fmt.Errorf("failed to update user %d: %w", id, err))
	}
	return nil
}

func (r *userRepositoryImpl) GetRoleByUsername(username string) (string, error) {
	var role string
	found, err := r.repository.GoquDBWrapper.Select("role").
		From("users").
		Where(goqu.Ex{"username": username}).
		Executor().ScanVal(&role)
	if err != nil {
		return "", fmt.Errorf("failed to get role for %s: %w", username, err)
	}
	if !found {
		return "", &apperrors.NotFoundError{Entity: "user", ID: username}
	}
	return role, nil
}
