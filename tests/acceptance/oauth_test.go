package acceptance

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/vividly/identity-service/internal/dto"
)

func (s *Suite) authorizeState() string {
	resp, err := http.Get(s.BaseURL + "/api/v1/auth/oauth/github/authorize")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var authorize dto.AuthorizeURLResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&authorize))

	parsed, err := url.Parse(authorize.AuthorizeURL)
	s.Require().NoError(err)

	state := parsed.Query().Get("state")
	s.Require().NotEmpty(state)
	return state
}

func (s *Suite) callback(code, state string) *http.Response {
	resp, err := http.Get(s.BaseURL + "/api/v1/auth/oauth/github/callback?code=" + url.QueryEscape(code) + "&state=" + url.QueryEscape(state))
	s.Require().NoError(err)
	return resp
}

func (s *Suite) TestOAuth_AuthorizeReturnsProviderURL() {
	resp, err := http.Get(s.BaseURL + "/api/v1/auth/oauth/github/authorize")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var authorize dto.AuthorizeURLResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&authorize))

	parsed, err := url.Parse(authorize.AuthorizeURL)
	s.Require().NoError(err)
	s.Equal("test-client", parsed.Query().Get("client_id"))
	s.NotEmpty(parsed.Query().Get("state"))
}

func (s *Suite) TestOAuth_CallbackCreatesAccount() {
	state := s.authorizeState()

	resp := s.callback("any-code", state)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var authResp dto.AuthResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&authResp))
	s.Equal("federated@example.com", authResp.Account.Email)
	s.NotEmpty(authResp.AccessToken)

	cookie := refreshCookie(resp)
	s.Require().NotNil(cookie, "Federated login opens a normal session")

	refreshResp := s.refresh(cookie)
	defer refreshResp.Body.Close()
	s.Equal(http.StatusOK, refreshResp.StatusCode)
}

func (s *Suite) TestOAuth_RepeatLoginSameAccount() {
	first := s.callback("any-code", s.authorizeState())
	var firstResp dto.AuthResponse
	s.Require().NoError(json.NewDecoder(first.Body).Decode(&firstResp))
	first.Body.Close()

	second := s.callback("any-code", s.authorizeState())
	defer second.Body.Close()
	var secondResp dto.AuthResponse
	s.Require().NoError(json.NewDecoder(second.Body).Decode(&secondResp))

	s.Equal(firstResp.Account.ID, secondResp.Account.ID)
}

func (s *Suite) TestOAuth_StateIsSingleUse() {
	state := s.authorizeState()

	resp := s.callback("any-code", state)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	replay := s.callback("any-code", state)
	defer replay.Body.Close()
	s.Equal(http.StatusBadRequest, replay.StatusCode)
}

func (s *Suite) TestOAuth_ConcurrentStateConsumption() {
	state := s.authorizeState()

	const presentations = 2
	statuses := make(chan int, presentations)
	var wg sync.WaitGroup

	for i := 0; i < presentations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := s.callback("any-code", state)
			statuses <- resp.StatusCode
			resp.Body.Close()
		}()
	}
	wg.Wait()
	close(statuses)

	counts := make(map[int]int)
	for status := range statuses {
		counts[status]++
	}

	// GETDEL is atomic, so racing presentations of one state still
	// yield exactly one login
	s.Equal(1, counts[http.StatusOK])
	s.Equal(1, counts[http.StatusBadRequest])
}

func (s *Suite) TestOAuth_ForgedState() {
	resp := s.callback("any-code", "forged-state")
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestOAuth_MissingParams() {
	resp, err := http.Get(s.BaseURL + "/api/v1/auth/oauth/github/callback")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestOAuth_UnknownProvider() {
	resp, err := http.Get(s.BaseURL + "/api/v1/auth/oauth/gitlab/authorize")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *Suite) TestOAuth_FederatedAccountHasNoPassword() {
	resp := s.callback("any-code", s.authorizeState())
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	loginResp := s.doJSON(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
		Email:    "federated@example.com",
		Password: "AnyPassword123",
	})
	defer loginResp.Body.Close()
	s.Equal(http.StatusUnauthorized, loginResp.StatusCode)
}
