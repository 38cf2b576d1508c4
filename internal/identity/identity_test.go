package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighestRole(t *testing.T) {
	assert.Equal(t, models.RoleAdmin, HighestRole([]string{"viewer", "Admin", "offline_access"}))
	assert.Equal(t, models.RoleReviewer, HighestRole([]string{"uma_authorization", "reviewer"}))
	assert.Equal(t, models.Role(""), HighestRole([]string{"default-roles-admissions"}))
	assert.Equal(t, models.Role(""), HighestRole(nil))
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver(map[string]string{"u-1": "Reviewer", "u-2": "viewer"})

	a, err := r.Resolve(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleReviewer, a.Role)

	_, err = r.Resolve(context.Background(), models.SystemActor.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = r.Resolve(context.Background(), "stranger")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

func newKeycloak(t *testing.T) (*httptest.Server, *int32) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/admissions/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":300,"token_type":"Bearer"}`))
	})
	mux.HandleFunc("/admin/realms/admissions/users/u-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"u-1","username":"mchen","firstName":"Michael","lastName":"Chen","enabled":true}`))
	})
	mux.HandleFunc("/admin/realms/admissions/users/u-1/role-mappings/realm", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"r1","name":"offline_access"},{"id":"r2","name":"manager"}]`))
	})
	mux.HandleFunc("/admin/realms/admissions/users/u-off", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"u-off","username":"gone","enabled":false}`))
	})
	mux.HandleFunc("/admin/realms/admissions/users/u-500", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func TestKeycloakResolver_Resolve(t *testing.T) {
	srv, tokenCalls := newKeycloak(t)
	k := NewKeycloakResolver(srv.URL+"/", "admissions", "lifecycle-manager", "secret")
	ctx := context.Background()

	a, err := k.Resolve(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, models.Actor{ID: "u-1", Name: "Michael Chen", Role: models.RoleManager}, a)

	_, err = k.Resolve(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(tokenCalls))
}

func TestKeycloakResolver_Failures(t *testing.T) {
	srv, _ := newKeycloak(t)
	k := NewKeycloakResolver(srv.URL, "admissions", "lifecycle-manager", "secret")
	ctx := context.Background()

	_, err := k.Resolve(ctx, "u-off")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = k.Resolve(ctx, "nobody")
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = k.Resolve(ctx, "u-500")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIdentityLookupFailed, apperrors.CodeOf(err))
}

type countingResolver struct {
	calls int
}

func (c *countingResolver) Resolve(_ context.Context, id string) (models.Actor, error) {
	c.calls++
	return models.Actor{ID: id, Role: models.RoleReviewer}, nil
}

func TestCachedResolver(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	inner := &countingResolver{}
	r := NewCachedResolver(inner, redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)

	for i := 0; i < 3; i++ {
		a, err := r.Resolve(context.Background(), "u-1")
		require.NoError(t, err)
		assert.Equal(t, models.RoleReviewer, a.Role)
	}
	assert.Equal(t, 1, inner.calls)

	mr.FastForward(2 * time.Minute)
	_, _ = r.Resolve(context.Background(), "u-1")
	assert.Equal(t, 2, inner.calls)
}
