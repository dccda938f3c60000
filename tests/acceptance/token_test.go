package acceptance

import (
	"encoding/json"
	"net/http"

	"github.com/vividly/identity-service/internal/dto"
)

func (s *Suite) TestRefresh_RotatesTokens() {
	_, cookie := s.register("rotate@example.com", "Password123")
	s.Require().NotNil(cookie)

	resp := s.refresh(cookie)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var authResp dto.AuthResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&authResp))
	s.NotEmpty(authResp.AccessToken)

	rotated := refreshCookie(resp)
	s.Require().NotNil(rotated, "Rotation should set a fresh cookie")
	s.NotEqual(cookie.Value, rotated.Value)

	// The rotated cookie keeps working
	resp2 := s.refresh(rotated)
	defer resp2.Body.Close()
	s.Equal(http.StatusOK, resp2.StatusCode)
}

func (s *Suite) TestRefresh_ReuseRevokesSession() {
	_, cookie := s.register("reuse@example.com", "Password123")
	s.Require().NotNil(cookie)

	resp := s.refresh(cookie)
	rotated := refreshCookie(resp)
	resp.Body.Close()
	s.Require().NotNil(rotated)

	// Replaying the old token is treated as theft
	replay := s.refresh(cookie)
	defer replay.Body.Close()
	s.Equal(http.StatusUnauthorized, replay.StatusCode)

	// The containment killed the session, so the rotated token is dead too
	after := s.refresh(rotated)
	defer after.Body.Close()
	s.Equal(http.StatusUnauthorized, after.StatusCode)
}

func (s *Suite) TestRefresh_StaleGenerationRevokesSession() {
	_, first := s.register("stalegen@example.com", "Password123")
	s.Require().NotNil(first)

	resp := s.refresh(first)
	second := refreshCookie(resp)
	resp.Body.Close()
	s.Require().NotNil(second)

	resp = s.refresh(second)
	third := refreshCookie(resp)
	resp.Body.Close()
	s.Require().NotNil(third)

	// The first token is now two generations old; replaying it must
	// still be treated as theft and kill the session
	replay := s.refresh(first)
	defer replay.Body.Close()
	s.Equal(http.StatusUnauthorized, replay.StatusCode)

	after := s.refresh(third)
	defer after.Body.Close()
	s.Equal(http.StatusUnauthorized, after.StatusCode)
}

func (s *Suite) TestRefresh_BodyFallback() {
	_, cookie := s.register("bodyfallback@example.com", "Password123")
	s.Require().NotNil(cookie)

	resp := s.doJSON(http.MethodPost, "/api/v1/auth/refresh", "", dto.RefreshRequest{
		RefreshToken: cookie.Value,
	})
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestRefresh_MissingToken() {
	resp := s.refresh(nil)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestRefresh_GarbageToken() {
	resp := s.refresh(&http.Cookie{Name: "refresh_token", Value: "never-issued"})
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestLogoutAll_KillsEverySession() {
	authResp, firstCookie := s.register("logoutall@example.com", "Password123")

	// Open a second session
	loginResp := s.doJSON(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
		Email:    "logoutall@example.com",
		Password: "Password123",
	})
	secondCookie := refreshCookie(loginResp)
	loginResp.Body.Close()
	s.Require().NotNil(secondCookie)

	resp := s.doJSON(http.MethodPost, "/api/v1/auth/logout-all", authResp.AccessToken, nil)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	for _, cookie := range []*http.Cookie{firstCookie, secondCookie} {
		r := s.refresh(cookie)
		s.Equal(http.StatusUnauthorized, r.StatusCode)
		r.Body.Close()
	}
}
