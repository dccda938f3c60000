package acceptance

import (
	"net/http"
	"strconv"

	"github.com/vividly/identity-service/internal/dto"
)

func (s *Suite) TestRateLimit_ExceededReturnsRetryAfter() {
	login := func() *http.Response {
		return s.doJSON(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{
			Email:    "nobody@example.com",
			Password: "WrongPassword1",
		})
	}

	// Spend the whole budget for this client IP
	for i := 0; i < 100; i++ {
		resp := login()
		resp.Body.Close()
		s.Require().Equal(http.StatusUnauthorized, resp.StatusCode)
	}

	resp := login()
	defer resp.Body.Close()
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)

	retryAfter, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Retry-After"))
	s.Require().NoError(err, "Retry-After header should be whole seconds")
	s.Greater(retryAfter, 0)
	s.LessOrEqual(retryAfter, 60)
	s.Equal("100", resp.Header.Get("X-RateLimit-Limit"))
}
