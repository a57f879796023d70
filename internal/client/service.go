package client

import (
	"context"
	"errors"

	"github.com/crownlabs/academy-idp/internal/config"
	"github.com/crownlabs/academy-idp/internal/database"
	"github.com/crownlabs/academy-idp/pkg/logaction"
	"github.com/crownlabs/academy-idp/pkg/mlog"
)

var (
	ErrUnknownClient    = errors.New("unknown client")
	ErrRedirectMismatch = errors.New("redirect_uri not registered for client")
	ErrGrantNotAllowed  = errors.New("authorization_code grant not allowed for client")
	ErrBadSecret        = errors.New("client secret mismatch")
)

type IClientService interface {
	// GetClient resolves a client by id, falling back to the bootstrap client
	// configured in the environment when no registration exists.
	GetClient(ctx context.Context, clientID string) (Client, Source, error)
	// ValidateClient resolves the client and pins the redirect URI, as the
	// authorization endpoint requires.
	ValidateClient(ctx context.Context, clientID, redirectURI string) (Client, Source, error)
	RegisterClient(ctx context.Context, c Client) (Client, error)
}

type ClientService struct {
	repo      IClientRepository
	bootstrap config.BootstrapClient
}

func NewClientService(repo IClientRepository, bootstrap config.BootstrapClient) IClientService {
	return &ClientService{repo: repo, bootstrap: bootstrap}
}

func (s *ClientService) GetClient(ctx context.Context, clientID string) (Client, Source, error) {
	cl, err := s.repo.FindClientByID(ctx, clientID)
	if err == nil {
		return cl, SourceRegistered, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return Client{}, "", err
	}

	if s.bootstrap.Enabled() && clientID == s.bootstrap.ClientID {
		return s.bootstrapClient(), SourceBootstrap, nil
	}
	return Client{}, "", ErrUnknownClient
}

func (s *ClientService) ValidateClient(ctx context.Context, clientID, redirectURI string) (Client, Source, error) {
	cl, source, err := s.GetClient(ctx, clientID)
	if err != nil {
		return Client{}, "", err
	}

	switch source {
	case SourceBootstrap:
		// a bootstrap client with no pinned redirect accepts whatever the
		// request names; one run per deployment, behind operator config
		if s.bootstrap.RedirectURI != "" && s.bootstrap.RedirectURI != redirectURI {
			mlog.L(ctx).Warn(logaction.INBOUND("redirect mismatch"), map[string]any{
				"clientId": clientID, "redirectUri": redirectURI,
			})
			return Client{}, "", ErrRedirectMismatch
		}
	default:
		if !cl.AllowsAuthorizationCode() {
			return Client{}, "", ErrGrantNotAllowed
		}
		if !cl.AllowsRedirect(redirectURI) {
			mlog.L(ctx).Warn(logaction.INBOUND("redirect mismatch"), map[string]any{
				"clientId": clientID, "redirectUri": redirectURI,
			})
			return Client{}, "", ErrRedirectMismatch
		}
	}

	return cl, source, nil
}

func (s *ClientService) RegisterClient(ctx context.Context, c Client) (Client, error) {
	return s.repo.UpsertClient(ctx, c)
}

func (s *ClientService) bootstrapClient() Client {
	var uris []string
	if s.bootstrap.RedirectURI != "" {
		uris = []string{s.bootstrap.RedirectURI}
	}
	return Client{
		ClientID:     s.bootstrap.ClientID,
		ClientSecret: s.bootstrap.ClientSecret,
		Name:         "bootstrap",
		RedirectURIs: uris,
		GrantTypes:   []string{"authorization_code"},
	}
}
