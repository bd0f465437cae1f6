package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/imrysn/kmti-data-management/internal/auth"
	"github.com/imrysn/kmti-data-management/internal/database"
	"github.com/imrysn/kmti-data-management/internal/models"
	"github.com/jaevor/go-nanoid"
)

type RegisterRequest struct {
	Username string  `json:"username" example:"jdoe"`
	Email    string  `json:"email" example:"jdoe@example.com"`
	Password string  `json:"password" example:"password123"`
	Role     string  `json:"role" example:"user" enums:"admin,user"`
	FullName *string `json:"fullName,omitempty" example:"Jane Doe"`
}

type LoginRequest struct {
	Username string `json:"username" example:"jdoe"`
	Password string `json:"password" example:"password123"`
}

type LoginResponse struct {
	Message      string       `json:"message"`
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// @Summary      Register a new account
// @Description  Creates a user. Username and email must both be unused; the default role is "user".
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        registerRequest  body      RegisterRequest  true  "New account"
// @Success      201              {object}  map[string]interface{}
// @Failure      400              {object}  map[string]string "Validation error or duplicate user"
// @Failure      500              {object}  map[string]string
// @Router       /auth/register [post]
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" {
		respondError(w, http.StatusBadRequest, "Username and email are required")
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		respondError(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleAdmin && role != models.RoleUser {
		respondError(w, http.StatusBadRequest, "Invalid role")
		return
	}

	existing, err := s.store.GetUserByUsernameOrEmail(r.Context(), req.Username, req.Email)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if existing != nil {
		respondError(w, http.StatusBadRequest, "User with this email or username already exists")
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	user, err := s.store.CreateUser(r.Context(), database.CreateUserParams{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         role,
		FullName:     req.FullName,
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateUser) {
			respondError(w, http.StatusBadRequest, "User with this email or username already exists")
			return
		}
		s.internalError(w, r, err)
		return
	}

	s.recordActivity(r, user.ID, models.ActionCreateUser,
		"User account created: "+user.Username, models.ResourceUser, &user.ID, nil)

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User created successfully",
		"user":    user,
	})
}

// @Summary      Log in
// @Description  Authenticates by username or email and returns the user together with a short-lived access token and a refresh token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        loginRequest  body      LoginRequest  true  "Credentials"
// @Success      200           {object}  LoginResponse
// @Failure      400           {object}  map[string]string
// @Failure      401           {object}  map[string]string "Invalid credentials"
// @Failure      500           {object}  map[string]string
// @Router       /auth/login [post]
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.store.GetActiveUserByLogin(r.Context(), req.Username)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := time.Now()
	if err := s.store.UpdateLastLogin(r.Context(), user.ID, now); err != nil {
		s.internalError(w, r, err)
		return
	}
	user.LastLogin = &now

	accessToken, err := auth.GenerateJWT(user, s.config.JWT.Secret, s.config.JWT.AccessTokenTTL)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	generateID, err := nanoid.Standard(40)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	refreshToken := generateID()

	err = s.store.CreateSession(r.Context(), database.CreateSessionParams{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     r.RemoteAddr,
		ExpiresAt:    now.Add(s.config.JWT.RefreshTokenTTL),
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	s.recordActivity(r, user.ID, models.ActionLogin,
		"User logged in: "+user.Username, models.ResourceSystem, nil, nil)

	respondJSON(w, http.StatusOK, LoginResponse{
		Message:      "Login successful",
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

var errInvalidRefreshToken = errors.New("invalid or expired refresh token")

// @Summary      Refresh access token
// @Description  Exchanges a valid refresh token for a new token pair. The old refresh token is invalidated (rotation).
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        refreshTokenRequest  body      RefreshTokenRequest  true  "Refresh token"
// @Success      200                  {object}  TokenResponse
// @Failure      400                  {object}  map[string]string
// @Failure      401                  {object}  map[string]string
// @Failure      500                  {object}  map[string]string
// @Router       /auth/refresh [post]
func (s *Server) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	var newAccessToken, newRefreshToken string

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		user, err := q.GetUserByRefreshToken(r.Context(), req.RefreshToken)
		if err != nil {
			return err
		}
		if user == nil {
			return errInvalidRefreshToken
		}

		if err := q.DeleteSessionByRefreshToken(r.Context(), req.RefreshToken); err != nil {
			return err
		}

		newAccessToken, err = auth.GenerateJWT(user, s.config.JWT.Secret, s.config.JWT.AccessTokenTTL)
		if err != nil {
			return err
		}

		generateID, err := nanoid.Standard(40)
		if err != nil {
			return err
		}
		newRefreshToken = generateID()

		return q.CreateSession(r.Context(), database.CreateSessionParams{
			ID:           uuid.New(),
			UserID:       user.ID,
			RefreshToken: newRefreshToken,
			UserAgent:    r.UserAgent(),
			ClientIP:     r.RemoteAddr,
			ExpiresAt:    time.Now().Add(s.config.JWT.RefreshTokenTTL),
		})
	})

	if txErr != nil {
		if errors.Is(txErr, errInvalidRefreshToken) {
			respondError(w, http.StatusUnauthorized, txErr.Error())
			return
		}
		s.internalError(w, r, txErr)
		return
	}

	respondJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  newAccessToken,
		RefreshToken: newRefreshToken,
	})
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// @Summary      Log out
// @Description  Invalidates the presented refresh token, if any, and records the logout.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /auth/logout [post]
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req LogoutRequest
	// Body is optional; a bare logout still records the action.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.RefreshToken != "" {
		if err := s.store.DeleteSessionByRefreshToken(r.Context(), req.RefreshToken); err != nil {
			s.internalError(w, r, err)
			return
		}
	}

	s.recordActivity(r, user.ID, models.ActionLogout,
		"User logged out: "+user.Username, models.ResourceSystem, nil, nil)

	respondJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// @Summary      List active sessions
// @Description  Returns the caller's unexpired sessions, newest first.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /auth/sessions [get]
func (s *Server) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	sessions, err := s.store.ListSessionsForUser(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// @Summary      Get current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /auth/me [get]
func (s *Server) MeHandler(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}
