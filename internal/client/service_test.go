package client

import (
	"context"
	"errors"
	"testing"

	"github.com/crownlabs/academy-idp/internal/config"
	"github.com/crownlabs/academy-idp/internal/database"
)

type fakeClientRepository struct {
	clients map[string]Client
}

func newFakeClientRepository(clients ...Client) *fakeClientRepository {
	repo := &fakeClientRepository{clients: map[string]Client{}}
	for _, c := range clients {
		repo.clients[c.ClientID] = c
	}
	return repo
}

func (f *fakeClientRepository) UpsertClient(_ context.Context, c Client) (Client, error) {
	f.clients[c.ClientID] = c
	return c, nil
}

func (f *fakeClientRepository) FindClientByID(_ context.Context, clientID string) (Client, error) {
	c, ok := f.clients[clientID]
	if !ok {
		return Client{}, database.ErrNotFound
	}
	return c, nil
}

func registeredClient() Client {
	return Client{
		ClientID:     "web-app",
		ClientSecret: "s3cret",
		RedirectURIs: []string{"https://app.example.com/callback"},
		GrantTypes:   []string{"authorization_code"},
	}
}

func TestValidateClientRegistered(t *testing.T) {
	svc := NewClientService(newFakeClientRepository(registeredClient()), config.BootstrapClient{})

	cl, source, err := svc.ValidateClient(context.Background(), "web-app", "https://app.example.com/callback")
	if err != nil {
		t.Fatalf("ValidateClient: %v", err)
	}
	if source != SourceRegistered {
		t.Errorf("source = %q, want registered", source)
	}
	if cl.ClientID != "web-app" {
		t.Errorf("clientID = %q", cl.ClientID)
	}
}

func TestValidateClientRedirectPinning(t *testing.T) {
	svc := NewClientService(newFakeClientRepository(registeredClient()), config.BootstrapClient{})

	tests := []struct {
		name        string
		redirectURI string
	}{
		{"different host", "https://evil.example.com/callback"},
		{"prefix of registered", "https://app.example.com/call"},
		{"registered plus suffix", "https://app.example.com/callback/extra"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.ValidateClient(context.Background(), "web-app", tt.redirectURI)
			if !errors.Is(err, ErrRedirectMismatch) {
				t.Errorf("err = %v, want ErrRedirectMismatch", err)
			}
		})
	}
}

func TestValidateClientUnknown(t *testing.T) {
	svc := NewClientService(newFakeClientRepository(), config.BootstrapClient{})

	_, _, err := svc.ValidateClient(context.Background(), "nope", "https://app.example.com/callback")
	if !errors.Is(err, ErrUnknownClient) {
		t.Errorf("err = %v, want ErrUnknownClient", err)
	}
}

func TestValidateClientGrantGate(t *testing.T) {
	cl := registeredClient()
	cl.GrantTypes = []string{"client_credentials"}
	svc := NewClientService(newFakeClientRepository(cl), config.BootstrapClient{})

	_, _, err := svc.ValidateClient(context.Background(), "web-app", "https://app.example.com/callback")
	if !errors.Is(err, ErrGrantNotAllowed) {
		t.Errorf("err = %v, want ErrGrantNotAllowed", err)
	}
}

func TestValidateClientBootstrapFallback(t *testing.T) {
	bootstrap := config.BootstrapClient{
		ClientID:     "bootstrap-app",
		ClientSecret: "bootstrap-secret",
		RedirectURI:  "https://boot.example.com/cb",
	}
	svc := NewClientService(newFakeClientRepository(), bootstrap)

	cl, source, err := svc.ValidateClient(context.Background(), "bootstrap-app", "https://boot.example.com/cb")
	if err != nil {
		t.Fatalf("ValidateClient: %v", err)
	}
	if source != SourceBootstrap {
		t.Errorf("source = %q, want bootstrap", source)
	}
	if !cl.SecretMatches("bootstrap-secret") {
		t.Error("bootstrap secret not carried over")
	}

	if _, _, err := svc.ValidateClient(context.Background(), "bootstrap-app", "https://other.example.com/cb"); !errors.Is(err, ErrRedirectMismatch) {
		t.Errorf("err = %v, want ErrRedirectMismatch", err)
	}
}

func TestValidateClientBootstrapAnyRedirect(t *testing.T) {
	bootstrap := config.BootstrapClient{
		ClientID:     "bootstrap-app",
		ClientSecret: "bootstrap-secret",
	}
	svc := NewClientService(newFakeClientRepository(), bootstrap)

	// no pinned redirect: any URI the request names is accepted
	if _, _, err := svc.ValidateClient(context.Background(), "bootstrap-app", "https://anything.example.com/cb"); err != nil {
		t.Errorf("ValidateClient: %v", err)
	}
}

func TestValidateClientRegistrationShadowsBootstrap(t *testing.T) {
	bootstrap := config.BootstrapClient{ClientID: "web-app", ClientSecret: "other"}
	svc := NewClientService(newFakeClientRepository(registeredClient()), bootstrap)

	cl, source, err := svc.ValidateClient(context.Background(), "web-app", "https://app.example.com/callback")
	if err != nil {
		t.Fatalf("ValidateClient: %v", err)
	}
	if source != SourceRegistered {
		t.Errorf("source = %q, want registered", source)
	}
	if !cl.SecretMatches("s3cret") {
		t.Error("registered secret must win over bootstrap")
	}
}

func TestSecretMatchesConstantTimeSemantics(t *testing.T) {
	cl := registeredClient()
	if !cl.SecretMatches("s3cret") {
		t.Error("matching secret rejected")
	}
	if cl.SecretMatches("S3CRET") || cl.SecretMatches("") || cl.SecretMatches("s3cret ") {
		t.Error("non-matching secret accepted")
	}
}
