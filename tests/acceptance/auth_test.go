package acceptance

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/vividly/identity-service/internal/dto"
)

func (s *Suite) TestRegister_Success() {
	reqBody := dto.RegisterRequest{
		Email:    "test@example.com",
		Password: "Password123",
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/register",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusCreated, resp.StatusCode)

	var authResp dto.AuthResponse
	err = json.NewDecoder(resp.Body).Decode(&authResp)
	s.Require().NoError(err)

	s.NotEmpty(authResp.AccessToken)
	s.Equal("Bearer", authResp.TokenType)
	s.NotZero(authResp.ExpiresIn)
	s.Equal("test@example.com", authResp.Account.Email)
	s.NotEmpty(authResp.Account.ID)

	cookie := refreshCookie(resp)
	s.Require().NotNil(cookie, "Should have refresh token cookie")
	s.True(cookie.HttpOnly)
	s.Equal("/api/v1/auth/refresh", cookie.Path)
}

func (s *Suite) TestRegister_DuplicateEmail() {
	s.register("duplicate@example.com", "Password123")

	body, _ := json.Marshal(dto.RegisterRequest{
		Email:    "Duplicate@example.com",
		Password: "Password123",
	})

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/register",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusConflict, resp.StatusCode)

	var errResp dto.ErrorResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&errResp))
	s.Equal("Conflict", errResp.Error)
}

func (s *Suite) TestRegister_InvalidEmail() {
	body, _ := json.Marshal(dto.RegisterRequest{
		Email:    "invalid-email",
		Password: "Password123",
	})

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/register",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestRegister_WeakPassword() {
	body, _ := json.Marshal(dto.RegisterRequest{
		Email:    "weak@example.com",
		Password: "alllowercase",
	})

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/register",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestLogin_Success() {
	s.register("login@example.com", "Password123")

	body, _ := json.Marshal(dto.LoginRequest{
		Email:    "login@example.com",
		Password: "Password123",
	})

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/login",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var authResp dto.AuthResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&authResp))

	s.NotEmpty(authResp.AccessToken)
	s.Equal("Bearer", authResp.TokenType)
	s.Equal("login@example.com", authResp.Account.Email)
	s.NotNil(refreshCookie(resp), "Should have refresh token cookie")
}

func (s *Suite) TestLogin_InvalidCredentials() {
	loginReq := dto.LoginRequest{
		Email:    "nonexistent@example.com",
		Password: "wrongpassword",
	}
	body, _ := json.Marshal(loginReq)

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/login",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	var errResp dto.ErrorResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&errResp))
	s.Equal("Unauthorized", errResp.Error)
}

func (s *Suite) TestLogin_WrongPassword() {
	s.register("wrongpass@example.com", "CorrectPassword123")

	body, _ := json.Marshal(dto.LoginRequest{
		Email:    "wrongpass@example.com",
		Password: "WrongPassword123",
	})

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/login",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestGetMe_Success() {
	authResp, _ := s.register("getme@example.com", "Password123")

	resp := s.doJSON(http.MethodGet, "/api/v1/auth/me", authResp.AccessToken, nil)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var account dto.AccountResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&account))
	s.Equal("getme@example.com", account.Email)
	s.Equal(authResp.Account.ID, account.ID)
}

func (s *Suite) TestGetMe_Unauthorized() {
	resp := s.doJSON(http.MethodGet, "/api/v1/auth/me", "", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.doJSON(http.MethodGet, "/api/v1/auth/me", "garbage-token", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestLogout_KillsRefresh() {
	authResp, cookie := s.register("logout@example.com", "Password123")

	resp := s.doJSON(http.MethodPost, "/api/v1/auth/logout", authResp.AccessToken, nil)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	refreshResp := s.refresh(cookie)
	defer refreshResp.Body.Close()
	s.Equal(http.StatusUnauthorized, refreshResp.StatusCode)
}
