package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/internal/token"
	"github.com/octave-im/octave-api/internal/utils"
)

type stubUsers struct {
	users map[string]models.User
}

func (s *stubUsers) Create(ctx context.Context, user *models.User) error { return nil }

func (s *stubUsers) GetByID(ctx context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUsers) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return models.User{}, gorm.ErrRecordNotFound
}

func (s *stubUsers) GetByUsername(ctx context.Context, username string, discriminator int) (models.User, error) {
	return models.User{}, gorm.ErrRecordNotFound
}

func (s *stubUsers) ListDiscriminators(ctx context.Context, username string) ([]int, error) {
	return nil, nil
}

func (s *stubUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return false, nil
}

func (s *stubUsers) ExistAll(ctx context.Context, ids []string) (bool, error) { return true, nil }

func (s *stubUsers) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return nil
}

func newAuthTestApp(t *testing.T) (*fiber.App, *token.Manager) {
	t.Helper()

	tokens := token.NewManager("test-secret")
	users := &stubUsers{users: map[string]models.User{
		"user-1": {ID: "user-1", Username: "kaito"},
	}}

	app := fiber.New()
	app.Get("/protected", RequireUser(tokens, users), func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		require.NotNil(t, user)
		return utils.SendSuccess(c, "", fiber.Map{"id": user.ID})
	})

	return app, tokens
}

func TestRequireUserRejectsMissingHeader(t *testing.T) {
	app, _ := newAuthTestApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var body utils.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "AuthorizationRequired", body.Code)
}

func TestRequireUserRejectsGarbageToken(t *testing.T) {
	app, _ := newAuthTestApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var body utils.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "InvalidToken", body.Code)
}

func TestRequireUserRejectsNonUserTokens(t *testing.T) {
	app, tokens := newAuthTestApp(t)

	challenge, err := tokens.Issue(token.TypeChallenge, "user-1", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", challenge)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var body utils.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "NotUserToken", body.Code)
}

func TestRequireUserRejectsUnknownSubject(t *testing.T) {
	app, tokens := newAuthTestApp(t)

	raw, err := tokens.Issue(token.TypeUser, "ghost", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRequireUserAcceptsBareAndBearerTokens(t *testing.T) {
	app, tokens := newAuthTestApp(t)

	raw, err := tokens.Issue(token.TypeUser, "user-1", time.Minute)
	require.NoError(t, err)

	for _, header := range []string{raw, "Bearer " + raw} {
		req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", header)
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestRequireGateway(t *testing.T) {
	app := fiber.New()
	app.Put("/voice", RequireGateway("media-secret"), func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "", nil)
	})

	req := httptest.NewRequest(fiber.MethodPut, "/voice", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodPut, "/voice", nil)
	req.Header.Set("Authorization", "wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodPut, "/voice", nil)
	req.Header.Set("Authorization", "media-secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
