package service

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
)

// Identity is what an external identity provider vouches for
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// GoogleVerifier validates Google ID tokens against the configured client ID
type GoogleVerifier struct {
	ClientID string
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	payload, err := idtoken.Validate(ctx, token, g.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate id token, %w", err)
	}

	id := &Identity{Subject: payload.Subject}
	id.Email, _ = payload.Claims["email"].(string)
	id.EmailVerified, _ = payload.Claims["email_verified"].(bool)
	id.Name, _ = payload.Claims["name"].(string)
	id.Picture, _ = payload.Claims["picture"].(string)

	if id.Subject == "" || id.Email == "" {
		return nil, errors.New("id token has no subject or email")
	}

	if !id.EmailVerified {
		return nil, errors.New("google email is not verified")
	}

	return id, nil
}
