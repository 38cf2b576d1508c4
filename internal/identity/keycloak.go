package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"admissions-lifecycle/internal/common/errors"
	apphttp "admissions-lifecycle/internal/common/http"
	"admissions-lifecycle/internal/models"
)

// KeycloakResolver reads users and their realm role mappings through the
// Keycloak admin API, authenticating with the client credentials grant.
type KeycloakResolver struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	http         *apphttp.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type keycloakUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Enabled   bool   `json:"enabled"`
}

type roleRepresentation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func NewKeycloakResolver(baseURL, realm, clientID, clientSecret string) *KeycloakResolver {
	return &KeycloakResolver{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         apphttp.NewClient(30 * time.Second),
	}
}

// token returns a cached access token, fetching a new one shortly before
// the old one expires.
func (k *KeycloakResolver) token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && time.Now().Add(10*time.Second).Before(k.tokenExpiry) {
		return k.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &apphttp.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	k.accessToken = tr.AccessToken
	k.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return k.accessToken, nil
}

func (k *KeycloakResolver) get(ctx context.Context, path string, out interface{}) error {
	tok, err := k.token(ctx)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/admin/realms/%s/%s", k.baseURL, k.realm, path)
	return k.http.DoJSON(ctx, http.MethodGet, u, map[string]string{"Authorization": "Bearer " + tok}, nil, out)
}

// Resolve looks the user up and maps its realm roles onto a dashboard role.
// Unknown or disabled users are Forbidden; transport failures are
// IdentityLookupFailed.
func (k *KeycloakResolver) Resolve(ctx context.Context, actorID string) (models.Actor, error) {
	if actorID == "" {
		return models.Actor{}, errors.NewForbiddenError()
	}

	var user keycloakUser
	if err := k.get(ctx, "users/"+url.PathEscape(actorID), &user); err != nil {
		if apphttp.IsStatus(err, http.StatusNotFound) {
			return models.Actor{}, errors.NewForbiddenError()
		}
		return models.Actor{}, errors.NewIdentityLookupFailedError(actorID, err)
	}
	if !user.Enabled {
		return models.Actor{}, errors.NewForbiddenError()
	}

	var roles []roleRepresentation
	if err := k.get(ctx, "users/"+url.PathEscape(actorID)+"/role-mappings/realm", &roles); err != nil {
		return models.Actor{}, errors.NewIdentityLookupFailedError(actorID, err)
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}

	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.Username
	}
	return models.Actor{ID: actorID, Name: name, Role: HighestRole(names)}, nil
}
