package callweek

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Date_WeekStart(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2024-01-01", "2024-01-01"}, // Monday maps to itself
		{"2024-01-03", "2024-01-01"}, // Wednesday
		{"2024-01-07", "2024-01-01"}, // Sunday belongs to the Monday-started week
		{"2024-01-08", "2024-01-08"},
		{"2024-02-29", "2024-02-26"}, // leap day
		{"2024-12-31", "2024-12-30"}, // year boundary
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			d, err := ParseDate(tt.date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.WeekStart().String())
		})
	}
}

func Test_Date_DateOn(t *testing.T) {
	start, err := ParseDate("2024-01-15") // Monday
	require.NoError(t, err)

	for i, day := range DayNames {
		d, ok := start.DateOn(day)
		require.True(t, ok, day)
		assert.Equal(t, start.AddDays(i).String(), d.String())
		assert.Equal(t, day, d.DayName())
	}

	_, ok := start.DateOn("Funday")
	assert.False(t, ok)
}

func Test_Date_JSON(t *testing.T) {
	d, err := ParseDate("2024-01-03")
	require.NoError(t, err)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-03"`, string(b))

	var parsed Date
	require.NoError(t, json.Unmarshal(b, &parsed))
	assert.True(t, parsed.Equal(d.Time))

	assert.Error(t, json.Unmarshal([]byte(`"01/03/2024"`), &parsed))
	assert.Error(t, json.Unmarshal([]byte(`1704240000`), &parsed))
}

func Test_KindFromCallType(t *testing.T) {
	assert.Equal(t, KindParent, KindFromCallType(CallTypeParent))
	assert.Equal(t, KindStudent, KindFromCallType(CallTypeStudent))
	assert.Equal(t, KindStudent, KindFromCallType("")) // default
}

func Test_SaveStatusRequest_Validate(t *testing.T) {
	valid := SaveStatusRequest{
		StudentID: "8f7f3b0a-2c21-4f0b-9e6d-5f2a6d9c1e11",
		Date:      "2024-01-03",
		Status:    "Done",
	}

	tests := []struct {
		name    string
		mutate  func(r *SaveStatusRequest)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *SaveStatusRequest) {}},
		{name: "with day and call type", mutate: func(r *SaveStatusRequest) { r.Day = "Wednesday"; r.CallType = "Parent" }},
		{name: "nothing status", mutate: func(r *SaveStatusRequest) { r.Status = "Nothing" }},
		{name: "bad student id", mutate: func(r *SaveStatusRequest) { r.StudentID = "nope" }, wantErr: true},
		{name: "bad date", mutate: func(r *SaveStatusRequest) { r.Date = "03-01-2024" }, wantErr: true},
		{name: "bad day", mutate: func(r *SaveStatusRequest) { r.Day = "Funday" }, wantErr: true},
		{name: "bad status", mutate: func(r *SaveStatusRequest) { r.Status = "Maybe" }, wantErr: true},
		{name: "bad call type", mutate: func(r *SaveStatusRequest) { r.CallType = "Guardian" }, wantErr: true},
		{name: "missing status", mutate: func(r *SaveStatusRequest) { r.Status = "" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
