package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachdesk/backend/core/callweek"
	"github.com/coachdesk/backend/core/user"
	testutil "github.com/coachdesk/backend/tests"
)

// weekEnvelope is the `{success, data}` response of the week endpoints.
type weekEnvelope struct {
	Success bool          `json:"success"`
	Data    callweek.Week `json:"data"`
	Message string        `json:"message"`
}

type callsEnvelope struct {
	Success bool            `json:"success"`
	Data    []callweek.Call `json:"data"`
}

func date(t *testing.T, s string) callweek.Date {
	t.Helper()
	d, err := callweek.ParseDate(s)
	require.NoError(t, err)
	return d
}

// seedCallWeek creates a week with one record of the given kind and its calls.
func seedCallWeek(t *testing.T, mentorID, personID string, kind callweek.Kind, start string, calls ...callweek.Call) {
	t.Helper()
	ctx := context.Background()

	startDate := date(t, start)
	wk, err := callRepo.GetWeek(ctx, mentorID, startDate)
	if err != nil {
		wk, err = callRepo.CreateWeek(ctx, callweek.Week{
			MentorID:  mentorID,
			StartDate: startDate,
			EndDate:   startDate.AddDays(6),
		})
		require.NoError(t, err)
	}

	rec, err := callRepo.CreateRecord(ctx, callweek.Record{WeekID: wk.ID, PersonID: personID, Kind: kind})
	require.NoError(t, err)

	for _, call := range calls {
		call.RecordID = rec.ID
		if call.Day == "" {
			call.Day = call.Date.DayName()
		}
		_, err = callRepo.CreateCall(ctx, call)
		require.NoError(t, err)
	}
}

func Test_callApi_weekRecord(t *testing.T) {
	app := setup(t)

	mentor := testutil.CreateUser(t, usrRepo, "Group Mentor", "gmentor", "gmentor@test.cd", "", []string{user.RoleGroupMentor}, true)
	senior := testutil.CreateUser(t, usrRepo, "Senior Mentor", "smentor", "smentor@test.cd", "", []string{user.RoleSeniorMentor}, true)
	mentorToken := getToken(t, mentor)

	body := marchallObj(t, map[string]string{"start_day": "2024-01-15"})

	// gating
	gateTests := []httpTest{
		{name: "Auth required", body: body, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Group mentor role required", body: body, token: getToken(t, senior),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	}
	for _, tt := range gateTests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/call/week-record", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Invalid start_day", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/call/week-record", mentorToken,
			marchallObj(t, map[string]string{"start_day": "15-01-2024"}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("No history returns an empty grid", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/call/week-record", mentorToken, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res weekEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.True(t, res.Success)
		assert.Equal(t, "2024-01-15", res.Data.StartDate.String())
		assert.Equal(t, "2024-01-21", res.Data.EndDate.String())
		assert.Empty(t, res.Data.Students)
	})

	seedCallWeek(t, mentor.ID, "e0c3a7a1-9a3b-4a57-8c86-9f0a34f6a001", callweek.KindStudent, "2024-01-01",
		callweek.Call{Date: date(t, "2024-01-03"), Status: callweek.StatusDone}, // Wednesday
	)

	t.Run("Existing week is returned unchanged", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/call/week-record", mentorToken,
			marchallObj(t, map[string]string{"start_day": "2024-01-04"}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res weekEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.True(t, res.Success)
		assert.Equal(t, "2024-01-01", res.Data.StartDate.String())
		require.Len(t, res.Data.Students, 1)
		require.Len(t, res.Data.Students[0].Calls, 1)
		assert.Equal(t, callweek.StatusDone, res.Data.Students[0].Calls[0].Status)
	})

	t.Run("Missing week rolls over from the nearest prior week", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/call/week-record", mentorToken, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res weekEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.True(t, res.Success)
		assert.Equal(t, "2024-01-15", res.Data.StartDate.String())
		assert.Equal(t, "2024-01-21", res.Data.EndDate.String())
		require.Len(t, res.Data.Students, 1)
		require.Len(t, res.Data.Students[0].Calls, 1)

		call := res.Data.Students[0].Calls[0]
		assert.Equal(t, "2024-01-17", call.Date.String()) // Wednesday kept
		assert.Equal(t, "Wednesday", call.Day)
		assert.Equal(t, callweek.StatusScheduled, call.Status)
	})
}

func Test_callApi_saveCallStatus(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	mentor := testutil.CreateUser(t, usrRepo, "Group Mentor", "gmentor", "gmentor@test.cd", "", []string{user.RoleGroupMentor}, true)
	mentorToken := getToken(t, mentor)
	studentID := "e0c3a7a1-9a3b-4a57-8c86-9f0a34f6a001"

	save := func(t *testing.T, body map[string]string) *json.Decoder {
		req, rec := newAuthRequest(http.MethodPost, "/v1/call/save-call-status", mentorToken, marchallObj(t, body))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return json.NewDecoder(rec.Body)
	}

	t.Run("Creates week, record and call as needed", func(t *testing.T) {
		save(t, map[string]string{"student_id": studentID, "date": "2024-02-07", "status": "Done"})

		wk, err := callRepo.GetWeek(ctx, mentor.ID, date(t, "2024-02-05"))
		require.NoError(t, err)
		assert.Equal(t, "2024-02-11", wk.EndDate.String())
		require.Len(t, wk.Students, 1)
		require.Len(t, wk.Students[0].Calls, 1)
		assert.Equal(t, callweek.StatusDone, wk.Students[0].Calls[0].Status)
		assert.Equal(t, "Wednesday", wk.Students[0].Calls[0].Day)
	})

	t.Run("Day is derived from the date, not trusted", func(t *testing.T) {
		save(t, map[string]string{"student_id": studentID, "date": "2024-02-09", "day": "Monday", "status": "DNP"})

		wk, err := callRepo.GetWeek(ctx, mentor.ID, date(t, "2024-02-05"))
		require.NoError(t, err)
		require.Len(t, wk.Students[0].Calls, 2)
		assert.Equal(t, "Friday", wk.Students[0].Calls[1].Day)
	})

	t.Run("Nothing clears the call", func(t *testing.T) {
		save(t, map[string]string{"student_id": studentID, "date": "2024-02-07", "status": "Nothing"})

		wk, err := callRepo.GetWeek(ctx, mentor.ID, date(t, "2024-02-05"))
		require.NoError(t, err)
		require.Len(t, wk.Students[0].Calls, 1) // only the Friday call left
		assert.Equal(t, "2024-02-09", wk.Students[0].Calls[0].Date.String())

		// clearing an absent call still succeeds
		save(t, map[string]string{"student_id": studentID, "date": "2024-02-07", "status": "Nothing"})
	})

	t.Run("Invalid status", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/call/save-call-status", mentorToken,
			marchallObj(t, map[string]string{"student_id": studentID, "date": "2024-02-07", "status": "Maybe"}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_callApi_studentWeek(t *testing.T) {
	app := setup(t)

	mentor := testutil.CreateUser(t, usrRepo, "Group Mentor", "gmentor", "gmentor@test.cd", "", []string{user.RoleGroupMentor}, true)
	senior := testutil.CreateUser(t, usrRepo, "Senior Mentor", "smentor", "smentor@test.cd", "", []string{user.RoleSeniorMentor}, true)
	studentID := "e0c3a7a1-9a3b-4a57-8c86-9f0a34f6a001"

	seedCallWeek(t, mentor.ID, studentID, callweek.KindStudent, "2024-01-01",
		callweek.Call{Date: date(t, "2024-01-02"), Status: callweek.StatusDone},
		callweek.Call{Date: date(t, "2024-01-05"), Status: callweek.StatusScheduled},
	)

	body := marchallObj(t, map[string]string{"student_id": studentID, "week_start": "2024-01-01"})

	t.Run("Auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/call/student", body)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	for _, tok := range []struct {
		name  string
		token string
	}{
		{"Group mentor", getToken(t, mentor)},
		{"Senior mentor", getToken(t, senior)},
	} {
		t.Run(tok.name+" can read a student's week", func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/call/student", tok.token, body)
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)

			var res callsEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.True(t, res.Success)
			require.Len(t, res.Data, 2)
			assert.Equal(t, "2024-01-02", res.Data[0].Date.String())
		})
	}

	t.Run("Unknown student gets an empty list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/call/student", getToken(t, mentor),
			marchallObj(t, map[string]string{"student_id": "39c339b3-32e1-4d8b-9d7a-96f1e6fbd001", "week_start": "2024-01-01"}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res callsEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.True(t, res.Success)
		assert.Empty(t, res.Data)
	})
}

func Test_seniorCallApi(t *testing.T) {
	app := setup(t)

	senior := testutil.CreateUser(t, usrRepo, "Senior Mentor", "smentor", "smentor@test.cd", "", []string{user.RoleSeniorMentor}, true)
	mentor := testutil.CreateUser(t, usrRepo, "Group Mentor", "gmentor", "gmentor@test.cd", "", []string{user.RoleGroupMentor}, true)
	seniorToken := getToken(t, senior)
	studentID := "e0c3a7a1-9a3b-4a57-8c86-9f0a34f6a001"

	t.Run("Senior role required", func(t *testing.T) {
		tt := httpTest{
			body:     marchallObj(t, map[string]string{"start_day": "2024-01-01"}),
			token:    getToken(t, mentor),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/senior-call/get", tt.token, tt.body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Empty grid still carries the parents family", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/senior-call/get", seniorToken,
			marchallObj(t, map[string]string{"start_day": "2024-01-01"}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res struct {
			Data map[string]json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		parents, ok := res.Data["parents"]
		require.True(t, ok, "parents key missing: %s", rec.Body.String())
		assert.Equal(t, "[]", string(parents))
	})

	t.Run("Save keeps student and parent families apart", func(t *testing.T) {
		for _, body := range []map[string]string{
			{"student_id": studentID, "date": "2024-01-03", "status": "Done", "call_type": "Student"},
			{"student_id": studentID, "date": "2024-01-04", "status": "DNP", "call_type": "Parent"},
		} {
			req, rec := newAuthRequest(http.MethodPost, "/v1/senior-call/save", seniorToken, marchallObj(t, body))
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		}

		req, rec := newAuthRequest(http.MethodPost, "/v1/senior-call/get", seniorToken,
			marchallObj(t, map[string]string{"start_day": "2024-01-01"}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res weekEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.True(t, res.Success)
		require.Len(t, res.Data.Students, 1)
		require.Len(t, res.Data.Parents, 1)
		assert.Equal(t, callweek.StatusDone, res.Data.Students[0].Calls[0].Status)
		assert.Equal(t, callweek.StatusDNP, res.Data.Parents[0].Calls[0].Status)
	})

	t.Run("Rollover clones both families", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/senior-call/get", seniorToken,
			marchallObj(t, map[string]string{"start_day": "2024-01-08"}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res weekEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "2024-01-08", res.Data.StartDate.String())
		require.Len(t, res.Data.Students, 1)
		require.Len(t, res.Data.Parents, 1)
		assert.Equal(t, "2024-01-10", res.Data.Students[0].Calls[0].Date.String()) // Wednesday
		assert.Equal(t, "2024-01-11", res.Data.Parents[0].Calls[0].Date.String())  // Thursday
		assert.Equal(t, callweek.StatusScheduled, res.Data.Students[0].Calls[0].Status)
	})
}
