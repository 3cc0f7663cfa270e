package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/skilldeck/skilldeck/internal/core"
	"github.com/skilldeck/skilldeck/internal/mocks"
)

type payload struct {
	Name string `json:"name"`
}

func TestKeyspace_Key(t *testing.T) {
	ks := core.Keyspace("skilldeck:")
	assert.Equal(t, "skilldeck:download:abc", ks.Key("download", "abc"))
	assert.Equal(t, "skilldeck:", ks.Key())
}

func TestJSONHelpers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(*mocks.MockCacheRepository)
		run     func(core.CacheRepository) (bool, payload, error)
		wantHit bool
		wantErr bool
	}{
		{
			name: "set encodes value",
			setup: func(c *mocks.MockCacheRepository) {
				c.EXPECT().Set(gomock.Any(), "k", []byte(`{"name":"deck"}`), time.Minute).Return(nil)
			},
			run: func(c core.CacheRepository) (bool, payload, error) {
				return true, payload{}, core.SetJSON(ctx, c, "k", payload{Name: "deck"}, time.Minute)
			},
			wantHit: true,
		},
		{
			name: "get miss",
			setup: func(c *mocks.MockCacheRepository) {
				c.EXPECT().Get(gomock.Any(), "k").Return(nil, nil)
			},
			run: func(c core.CacheRepository) (bool, payload, error) {
				var p payload
				ok, err := core.GetJSON(ctx, c, "k", &p)
				return ok, p, err
			},
		},
		{
			name: "get hit",
			setup: func(c *mocks.MockCacheRepository) {
				c.EXPECT().Get(gomock.Any(), "k").Return([]byte(`{"name":"deck"}`), nil)
			},
			run: func(c core.CacheRepository) (bool, payload, error) {
				var p payload
				ok, err := core.GetJSON(ctx, c, "k", &p)
				return ok, p, err
			},
			wantHit: true,
		},
		{
			name: "take decodes and reports corrupt values",
			setup: func(c *mocks.MockCacheRepository) {
				c.EXPECT().Take(gomock.Any(), "k").Return([]byte(`{not json`), nil)
			},
			run: func(c core.CacheRepository) (bool, payload, error) {
				var p payload
				ok, err := core.TakeJSON(ctx, c, "k", &p)
				return ok, p, err
			},
			wantErr: true,
		},
		{
			name: "take propagates backend errors",
			setup: func(c *mocks.MockCacheRepository) {
				c.EXPECT().Take(gomock.Any(), "k").Return(nil, errors.New("redis down"))
			},
			run: func(c core.CacheRepository) (bool, payload, error) {
				var p payload
				ok, err := core.TakeJSON(ctx, c, "k", &p)
				return ok, p, err
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			cache := mocks.NewMockCacheRepository(ctrl)
			tt.setup(cache)

			hit, got, err := tt.run(cache)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHit, hit)
			if tt.wantHit && got.Name != "" {
				assert.Equal(t, "deck", got.Name)
			}
		})
	}
}

func TestBackendResponse_IsJSON(t *testing.T) {
	cases := map[string]bool{
		"application/json":                 true,
		"application/json; charset=utf-8":  true,
		"application/problem+json":         true,
		"application/pdf":                  false,
		"text/plain":                       false,
		"":                                 false,
		"application/vnd.openxmlformats-x": false,
	}
	for ct, want := range cases {
		assert.Equal(t, want, (&core.BackendResponse{ContentType: ct}).IsJSON(), ct)
	}
}
