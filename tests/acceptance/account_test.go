package acceptance

import (
	"encoding/json"
	"net/http"

	"github.com/vividly/identity-service/internal/dto"
)

func (s *Suite) TestUpdateProfile() {
	authResp, _ := s.register("profile@example.com", "Password123")

	firstName := "Alice"
	lastName := "Example"
	resp := s.doJSON(http.MethodPatch, "/api/v1/auth/me", authResp.AccessToken, dto.UpdateProfileRequest{
		FirstName: &firstName,
		LastName:  &lastName,
	})
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var account dto.AccountResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&account))
	s.Equal("Alice", account.FirstName)
	s.Equal("Example", account.LastName)
}

func (s *Suite) TestChangePassword_RevokesSessions() {
	authResp, cookie := s.register("changepw@example.com", "Password123")

	resp := s.doJSON(http.MethodPost, "/api/v1/auth/password", authResp.AccessToken, dto.ChangePasswordRequest{
		CurrentPassword: "Password123",
		NewPassword:     "NewPassword123",
	})
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	// Old sessions are gone
	refreshResp := s.refresh(cookie)
	refreshResp.Body.Close()
	s.Equal(http.StatusUnauthorized, refreshResp.StatusCode)

	// Old password no longer works, new one does
	oldLogin := s.doJSON(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
		Email:    "changepw@example.com",
		Password: "Password123",
	})
	oldLogin.Body.Close()
	s.Equal(http.StatusUnauthorized, oldLogin.StatusCode)

	newLogin := s.doJSON(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
		Email:    "changepw@example.com",
		Password: "NewPassword123",
	})
	newLogin.Body.Close()
	s.Equal(http.StatusOK, newLogin.StatusCode)
}

func (s *Suite) TestChangePassword_WrongCurrent() {
	authResp, _ := s.register("wrongcurrent@example.com", "Password123")

	resp := s.doJSON(http.MethodPost, "/api/v1/auth/password", authResp.AccessToken, dto.ChangePasswordRequest{
		CurrentPassword: "NotThePassword123",
		NewPassword:     "NewPassword123",
	})
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestChangeEmail() {
	authResp, _ := s.register("oldmail@example.com", "Password123")

	resp := s.doJSON(http.MethodPut, "/api/v1/auth/me/email", authResp.AccessToken, dto.ChangeEmailRequest{
		Email: "newmail@example.com",
	})
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var account dto.AccountResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&account))
	s.Equal("newmail@example.com", account.Email)
	s.False(account.IsEmailVerified)
}

func (s *Suite) TestChangeEmail_Taken() {
	s.register("taken@example.com", "Password123")
	authResp, _ := s.register("changer@example.com", "Password123")

	resp := s.doJSON(http.MethodPut, "/api/v1/auth/me/email", authResp.AccessToken, dto.ChangeEmailRequest{
		Email: "taken@example.com",
	})
	defer resp.Body.Close()
	s.Equal(http.StatusConflict, resp.StatusCode)
}

func (s *Suite) TestDeactivate() {
	authResp, cookie := s.register("deactivate@example.com", "Password123")

	resp := s.doJSON(http.MethodDelete, "/api/v1/auth/me", authResp.AccessToken, nil)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	refreshResp := s.refresh(cookie)
	refreshResp.Body.Close()
	s.Equal(http.StatusUnauthorized, refreshResp.StatusCode)

	loginResp := s.doJSON(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
		Email:    "deactivate@example.com",
		Password: "Password123",
	})
	defer loginResp.Body.Close()
	s.Equal(http.StatusForbidden, loginResp.StatusCode)
}

func (s *Suite) TestSessions_ListAndRevoke() {
	authResp, _ := s.register("sessions@example.com", "Password123")

	// Open a second session
	loginResp := s.doJSON(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
		Email:    "sessions@example.com",
		Password: "Password123",
	})
	secondCookie := refreshCookie(loginResp)
	loginResp.Body.Close()
	s.Require().NotNil(secondCookie)

	resp := s.doJSON(http.MethodGet, "/api/v1/auth/sessions", authResp.AccessToken, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var sessions []dto.SessionResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&sessions))
	s.Require().Len(sessions, 2)

	// Revoke the newest session (the second login)
	revokeResp := s.doJSON(http.MethodDelete, "/api/v1/auth/sessions/"+sessions[0].ID, authResp.AccessToken, nil)
	revokeResp.Body.Close()
	s.Equal(http.StatusOK, revokeResp.StatusCode)

	refreshResp := s.refresh(secondCookie)
	refreshResp.Body.Close()
	s.Equal(http.StatusUnauthorized, refreshResp.StatusCode)
}

func (s *Suite) TestSessions_CannotRevokeForeignSession() {
	victim, victimCookie := s.register("victim@example.com", "Password123")
	attacker, _ := s.register("attacker@example.com", "Password123")

	resp := s.doJSON(http.MethodGet, "/api/v1/auth/sessions", victim.AccessToken, nil)
	var sessions []dto.SessionResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&sessions))
	resp.Body.Close()
	s.Require().Len(sessions, 1)

	revokeResp := s.doJSON(http.MethodDelete, "/api/v1/auth/sessions/"+sessions[0].ID, attacker.AccessToken, nil)
	defer revokeResp.Body.Close()
	s.Equal(http.StatusNotFound, revokeResp.StatusCode)

	// The victim's session is untouched
	refreshResp := s.refresh(victimCookie)
	refreshResp.Body.Close()
	s.Equal(http.StatusOK, refreshResp.StatusCode)
}
