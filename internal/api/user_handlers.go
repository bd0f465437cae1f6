package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/imrysn/kmti-data-management/internal/auth"
	"github.com/imrysn/kmti-data-management/internal/database"
	"github.com/imrysn/kmti-data-management/internal/models"
)

type UserListResponse struct {
	Users       []models.User `json:"users"`
	TotalPages  int64         `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Total       int64         `json:"total"`
}

// @Summary      List users
// @Description  Admin only. Paginated, with case-insensitive substring search over username and email.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Page size (default 10)"
// @Param        search  query     string  false  "Substring search"
// @Success      200     {object}  UserListResponse
// @Failure      403     {object}  map[string]string
// @Router       /users [get]
func (s *Server) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePagination(r, 10)
	search := r.URL.Query().Get("search")

	users, err := s.store.ListUsers(r.Context(), database.ListUsersParams{
		Search: search,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	total, err := s.store.CountUsers(r.Context(), search)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, UserListResponse{
		Users:       users,
		TotalPages:  totalPages(total, limit),
		CurrentPage: page,
		Total:       total,
	})
}

func (s *Server) getUserByPathID(w http.ResponseWriter, r *http.Request) *models.User {
	id, ok := parseIDParam(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return nil
	}

	user, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err)
		return nil
	}
	if user == nil {
		respondError(w, http.StatusNotFound, "User not found")
		return nil
	}
	return user
}

// @Summary      Get user by ID
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /users/{id} [get]
func (s *Server) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	user := s.getUserByPathID(w, r)
	if user == nil {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

type UpdateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive *bool  `json:"isActive"`
}

// @Summary      Update a user
// @Description  Admin only. Changes username, email, role or active flag; supplied credentials are checked for collisions with other users first.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                true  "User ID"
// @Param        request  body      UpdateUserRequest  true  "Fields to change"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  map[string]string "Duplicate username or email"
// @Failure      404      {object}  map[string]string
// @Router       /users/{id} [put]
func (s *Server) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	admin := GetUserFromContext(r.Context())

	target := s.getUserByPathID(w, r)
	if target == nil {
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = target.Username
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = target.Email
	}
	role := req.Role
	if role == "" {
		role = target.Role
	}
	if role != models.RoleAdmin && role != models.RoleUser {
		respondError(w, http.StatusBadRequest, "Invalid role")
		return
	}
	isActive := target.IsActive
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	if username != target.Username || email != target.Email {
		taken, err := s.store.OtherUserWithCredentialsExists(r.Context(), target.ID, username, email)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		if taken {
			respondError(w, http.StatusBadRequest, "Username or email already exists")
			return
		}
	}

	updated, err := s.store.UpdateUser(r.Context(), database.UpdateUserParams{
		ID:       target.ID,
		Username: username,
		Email:    email,
		Role:     role,
		IsActive: isActive,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateUser) {
			respondError(w, http.StatusBadRequest, "Username or email already exists")
			return
		}
		s.internalError(w, r, err)
		return
	}
	if updated == nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	// A deactivated account must not keep refreshing tokens.
	if target.IsActive && !updated.IsActive {
		if err := s.store.DeleteAllSessionsForUser(r.Context(), updated.ID); err != nil {
			s.internalError(w, r, err)
			return
		}
	}

	s.recordActivity(r, admin.ID, models.ActionUpdateUser,
		"User updated: "+updated.Username, models.ResourceUser, &updated.ID, nil)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "User updated successfully",
		"user":    updated,
	})
}

// @Summary      Delete a user
// @Description  Admin only. Hard delete; an administrator cannot delete their own account.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string "Attempted self-deletion"
// @Failure      404  {object}  map[string]string
// @Router       /users/{id} [delete]
func (s *Server) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	admin := GetUserFromContext(r.Context())

	target := s.getUserByPathID(w, r)
	if target == nil {
		return
	}

	if target.ID == admin.ID {
		respondError(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	deleted, err := s.store.DeleteUser(r.Context(), target.ID)
	if err != nil {
		if errors.Is(err, database.ErrUserHasFiles) {
			respondError(w, http.StatusBadRequest, "Cannot delete a user who still owns files")
			return
		}
		s.internalError(w, r, err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	s.recordActivity(r, admin.ID, models.ActionDeleteUser,
		"User deleted: "+target.Username, models.ResourceUser, &target.ID, nil)

	respondJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// @Summary      Reset a user's password
// @Description  Admin only. Minimum length 6; the new password is hashed before storage.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                   true  "User ID"
// @Param        request  body      ResetPasswordRequest  true  "New password"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Router       /users/{id}/reset-password [post]
func (s *Server) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	admin := GetUserFromContext(r.Context())

	target := s.getUserByPathID(w, r)
	if target == nil {
		return
	}

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.NewPassword) < auth.MinPasswordLength {
		respondError(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}

	passwordHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	if err := s.store.UpdateUserPassword(r.Context(), target.ID, passwordHash); err != nil {
		s.internalError(w, r, err)
		return
	}

	s.recordActivity(r, admin.ID, models.ActionUpdateUser,
		"Password reset for user: "+target.Username, models.ResourceUser, &target.ID, nil)

	respondJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}
