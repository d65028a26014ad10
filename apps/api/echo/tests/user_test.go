package tests

import (
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/coachdesk/backend/apps/api/echo"
	"github.com/coachdesk/backend/core"
	"github.com/coachdesk/backend/core/user"
	emailsvc "github.com/coachdesk/backend/services/email"
	testutil "github.com/coachdesk/backend/tests"
)

type loginRes struct {
	Token string `json:"token"`
}

func parseClaims(t *testing.T, token string) *echoapi.Claims {
	t.Helper()
	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(token, claims, func(tkn *jwt.Token) (interface{}, error) {
		return []byte(core.Conf.SecretKey), nil
	})
	require.NoError(t, err)
	return claims
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	mentor := testutil.CreateUser(t, usrRepo, "Group Mentor", "gmentor", "gmentor@test.cd", "Str0ng#Pa55", []string{user.RoleGroupMentor}, true)
	testutil.CreateUser(t, usrRepo, "Gone Mentor", "gonementor", "gone@test.cd", "Str0ng#Pa55", []string{user.RoleGroupMentor}, false)

	tests := []httpTest{
		{
			name: "empty body", body: marchallObj(t, map[string]string{}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: map[string]string{
				"username": "this field is required", "password": "this field is required"}}),
		},
		{
			name: "unknown user", body: marchallObj(t, map[string]string{"username": "nobody", "password": "Str0ng#Pa55"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Message: "authentication failed"}),
		},
		{
			name: "wrong password", body: marchallObj(t, map[string]string{"username": "gmentor", "password": "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Message: "authentication failed"}),
		},
		{
			name: "deactivated account", body: marchallObj(t, map[string]string{"username": "gonementor", "password": "Str0ng#Pa55"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Message: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	for _, uname := range []string{"gmentor", "gmentor@test.cd", "GMentor@Test.CD"} {
		t.Run("login with "+uname, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login",
				marchallObj(t, map[string]string{"username": uname, "password": "Str0ng#Pa55"}))
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var res loginRes
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			claims := parseClaims(t, res.Token)
			assert.Equal(t, mentor.ID, claims.Subject)
			assert.True(t, claims.IsGroupMentor)
			assert.False(t, claims.IsSeniorMentor)
		})
	}

	t.Run("login sets last_login", func(t *testing.T) {
		usr, err := usrRepo.GetUserByID(nil, mentor.ID)
		require.NoError(t, err)
		assert.False(t, usr.LastLogin.IsZero())
	})
}

func Test_userApi_tokenRefresh(t *testing.T) {
	app := setup(t)

	mentor := testutil.CreateUser(t, usrRepo, "Group Mentor", "gmentor", "gmentor@test.cd", "", []string{user.RoleGroupMentor}, true)

	t.Run("Auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/token-refresh")
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Refresh issues a fresh token", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", getToken(t, mentor))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res loginRes
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		claims := parseClaims(t, res.Token)
		assert.Equal(t, mentor.ID, claims.Subject)
	})
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	mentor := testutil.CreateUser(t, usrRepo, "Group Mentor", "gmentor", "gmentor@test.cd", "", []string{user.RoleGroupMentor}, true)
	senior := testutil.CreateUser(t, usrRepo, "Senior Mentor", "smentor", "smentor@test.cd", "", []string{user.RoleSeniorMentor}, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: getToken(t, mentor),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "Get all", path: "/v1/users", token: adminToken, wantData: marchallList(t, admin, mentor, senior)},
		{
			name: "search=senior", path: "/v1/users?" + url.Values{"search": {"senior"}}.Encode(),
			token: adminToken, wantData: marchallList(t, senior),
		},
		{
			name: "role=mentor:", path: "/v1/users?" + url.Values{"role": {user.RoleMentor}}.Encode(),
			token: adminToken, wantData: marchallList(t, mentor, senior),
		},
		{
			name: "role=mentor:senior", path: "/v1/users?" + url.Values{"role": {user.RoleSeniorMentor}}.Encode(),
			token: adminToken, wantData: marchallList(t, senior),
		},
		{name: "search (unknown)", path: "/v1/users?search=lol", token: adminToken, wantData: marchallList(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_create(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	mentor := testutil.CreateUser(t, usrRepo, "Group Mentor", "gmentor", "gmentor@test.cd", "", []string{user.RoleGroupMentor}, true)

	newMentor := map[string]interface{}{
		"name":             "New Mentor",
		"username":         "newmentor",
		"email":            "newmentor@test.cd",
		"password":         "V3ry#Secret77",
		"password_confirm": "V3ry#Secret77",
		"roles":            []string{user.RoleGroupMentor},
	}

	t.Run("Admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", getToken(t, mentor), marchallObj(t, newMentor))
		app.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Admin creates a mentor", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", getToken(t, admin), marchallObj(t, newMentor))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "newmentor", created.Username)
		assert.Equal(t, []string{user.RoleGroupMentor}, created.Roles)

		usr, err := usrRepo.GetUserByUsername(nil, "newmentor")
		require.NoError(t, err)
		assert.NoError(t, usr.CheckPassword("V3ry#Secret77"))
	})

	t.Run("Duplicate username is rejected", func(t *testing.T) {
		dup := map[string]interface{}{}
		for k, v := range newMentor {
			dup[k] = v
		}
		dup["email"] = "other@test.cd"
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", getToken(t, admin), marchallObj(t, dup))
		app.ServeHTTP(rec, req)
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: map[string]string{"username": user.ErrUsernameExists.Error()}}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

var passwordResetURLRegex = regexp.MustCompile(`/password-reset\?uid=(?P<uid>[^&\s]+)&token=(?P<token>[^&\s]+)`)

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, usrRepo, "Group Mentor", "gmentor", "gmentor@test.cd", "Str0ng#Pa55", []string{user.RoleGroupMentor}, true)

	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset",
		marchallObj(t, map[string]string{"email": "gmentor@test.cd"}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the console mock runs synchronously; grab the reset link from the mail
	require.NotEmpty(t, emailsvc.SentMessages)
	sent := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	match := passwordResetURLRegex.FindStringSubmatch(sent.TextContent)
	require.NotNil(t, match, sent.TextContent)
	uid, token := match[1], match[2]

	t.Run("bad token is rejected", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset-confirm",
			marchallObj(t, map[string]string{
				"uid": uid, "token": "not-a-token",
				"password": "An0ther#Pa55", "password_confirm": "An0ther#Pa55",
			}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("valid token resets the password", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset-confirm",
			marchallObj(t, map[string]string{
				"uid": uid, "token": token,
				"password": "An0ther#Pa55", "password_confirm": "An0ther#Pa55",
			}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// old password no longer works
		req, rec = newRequest(http.MethodPost, "/v1/users/login",
			marchallObj(t, map[string]string{"username": "gmentor", "password": "Str0ng#Pa55"}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		req, rec = newRequest(http.MethodPost, "/v1/users/login",
			marchallObj(t, map[string]string{"username": "gmentor", "password": "An0ther#Pa55"}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}
