package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"music-shop/internal/hash"
	"music-shop/internal/models"
)

func mustUser(t *testing.T, env *testEnv, username, password string) *models.User {
	t.Helper()
	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)
	user := models.User{Username: username, PasswordHash: pwHash, Role: "user"}
	require.NoError(t, env.DB.Create(&user).Error)
	return &user
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(t, http.MethodPost, "/register", map[string]string{
		"username": "maria",
		"password": "sup3rsecret",
		"email":    "maria@example.com",
	})
	require.NoError(t, env.A.Register(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, env.DB.Where("username = ?", "maria").First(&user).Error)
	require.True(t, hash.CheckPassword(user.PasswordHash, "sup3rsecret"))

	cookies := rec.Result().Cookies()
	names := make(map[string]bool, len(cookies))
	for _, ck := range cookies {
		names[ck.Name] = true
	}
	require.True(t, names["accessToken"])
	require.True(t, names["refreshToken"])
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "maria", "sup3rsecret")

	_, c := env.doJSONRequest(t, http.MethodPost, "/register", map[string]string{
		"username": "maria",
		"password": "an0therpass",
	})
	require.Equal(t, http.StatusBadRequest, httpCode(t, env.A.Register(c)))
}

func TestRegisterWeakPassword(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(t, http.MethodPost, "/register", map[string]string{
		"username": "maria",
		"password": "short",
	})
	require.NoError(t, env.A.Register(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error []string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Error, 2) // too short, no digit

	var count int64
	require.NoError(t, env.DB.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRegisterMissingFields(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(t, http.MethodPost, "/register", map[string]string{"username": "maria"})
	require.Equal(t, http.StatusBadRequest, httpCode(t, env.A.Register(c)))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "maria", "sup3rsecret")

	rec, c := env.doJSONRequest(t, http.MethodPost, "/login", map[string]string{
		"username": "maria",
		"password": "sup3rsecret",
	})
	require.NoError(t, env.A.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)

	var stored models.RefreshToken
	require.NoError(t, env.DB.Where("token = ?", resp.RefreshToken).First(&stored).Error)
	require.False(t, stored.Revoked)
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	mustUser(t, env, "maria", "sup3rsecret")

	_, c := env.doJSONRequest(t, http.MethodPost, "/login", map[string]string{
		"username": "maria",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, httpCode(t, env.A.Login(c)))

	_, c = env.doJSONRequest(t, http.MethodPost, "/login", map[string]string{
		"username": "nobody",
		"password": "sup3rsecret",
	})
	require.Equal(t, http.StatusUnauthorized, httpCode(t, env.A.Login(c)))
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	user := mustUser(t, env, "maria", "sup3rsecret")

	rec, c := env.doJSONRequest(t, http.MethodPost, "/login", map[string]string{
		"username": "maria",
		"password": "sup3rsecret",
	})
	require.NoError(t, env.A.Login(c))

	var resp struct {
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec, c = env.doJSONRequest(t, http.MethodPost, "/logout", nil)
	c.Request().AddCookie(&http.Cookie{Name: "refreshToken", Value: resp.RefreshToken})
	require.NoError(t, env.A.LogOut(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.RefreshToken
	require.NoError(t, env.DB.Where("user_id = ?", user.ID).First(&stored).Error)
	require.True(t, stored.Revoked)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	user := mustUser(t, env, "maria", "sup3rsecret")
	require.NoError(t, env.DB.Model(user).Update("email", "maria@example.com").Error)

	rec, c := env.doJSONRequest(t, http.MethodGet, "/profile", nil)
	c.Set("userID", user.ID)
	require.NoError(t, env.A.Profile(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "maria", resp.Username)
	require.Equal(t, "maria@example.com", resp.Email)
}

func TestProfileUnauthenticated(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(t, http.MethodGet, "/profile", nil)
	require.Equal(t, http.StatusUnauthorized, httpCode(t, env.A.Profile(c)))
}

func TestPasswordRedirects(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(t, http.MethodPost, "/password/reset", nil)
	require.NoError(t, env.A.PasswordReset(c))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/password/reset/done", rec.Header().Get("Location"))

	rec, c = env.doJSONRequest(t, http.MethodPost, "/password/change", nil)
	require.NoError(t, env.A.PasswordChange(c))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/password/change/done", rec.Header().Get("Location"))
}
