package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserInfo is the identity attached to authenticated requests.
type UserInfo struct {
	Subject string
	Email   string
	Role    string
}

// Verifier validates bearer tokens either locally against a shared HMAC
// secret or remotely against the auth provider's user endpoint. The local
// path wins when both are configured since it needs no network round trip.
type Verifier struct {
	jwtSecret []byte
	authURL   string
	apiKey    string
	http      *http.Client
}

func NewVerifier(jwtSecret, authURL, apiKey string) *Verifier {
	var secret []byte
	if jwtSecret != "" {
		secret = []byte(jwtSecret)
	}
	return &Verifier{
		jwtSecret: secret,
		authURL:   authURL,
		apiKey:    apiKey,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether at least one verification path is available.
func (v *Verifier) Configured() bool {
	return len(v.jwtSecret) > 0 || v.authURL != ""
}

func (v *Verifier) VerifyToken(ctx context.Context, token string) (*UserInfo, error) {
	if len(v.jwtSecret) > 0 {
		return v.verifyLocal(token)
	}
	if v.authURL != "" {
		return v.verifyRemote(ctx, token)
	}
	return nil, fmt.Errorf("token verification not configured")
}

func (v *Verifier) verifyLocal(tokenString string) (*UserInfo, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("token missing subject")
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return &UserInfo{Subject: sub, Email: email, Role: role}, nil
}

func (v *Verifier) verifyRemote(ctx context.Context, token string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", v.authURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("ApiKey", v.apiKey)

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth check failed with status %d", resp.StatusCode)
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode auth response: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("auth response missing user id")
	}

	return &UserInfo{Subject: user.ID, Email: user.Email, Role: user.Role}, nil
}
