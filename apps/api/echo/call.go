package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coachdesk/backend/core/callweek"
	"github.com/coachdesk/backend/core/user"
)

// Response envelope of the call endpoints.
type callResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type callApi struct {
	svc callweek.ServiceInterface
}

// registerCallAPI mounts the group-mentor calling portal.
func registerCallAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc callweek.ServiceInterface) {
	api := callApi{svc: svc}

	cg := g.Group("/call", jwt)
	cg.POST("/week-record", api.weekRecord, roleMiddleware(user.RoleGroupMentor))
	cg.POST("/save-call-status", api.saveCallStatus, roleMiddleware(user.RoleGroupMentor))
	cg.POST("/student", api.studentWeek, roleMiddleware(user.RoleGroupMentor, user.RoleSeniorMentor, user.RoleSupervisor, user.RoleAdmin))
}

// weekRecord returns the mentor's call grid for the week containing start_day,
// rolling the schedule over from the nearest prior week when needed.
func (api *callApi) weekRecord(ctx echo.Context) error {
	var data callweek.WeekRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to WeekRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	start, _ := callweek.ParseDate(data.StartDay) // validated above

	wk, err := api.svc.ResolveWeek(ctx.Request().Context(), claims.Subject, start)
	if err != nil {
		if errors.Cause(err) == callweek.ErrNoHistory {
			return ctx.JSON(http.StatusOK, callResponse{Success: true, Data: emptyWeek(start)})
		}
		return errors.Wrap(err, "resolving week")
	}
	return ctx.JSON(http.StatusOK, callResponse{Success: true, Data: wk})
}

func (api *callApi) saveCallStatus(ctx echo.Context) error {
	var data callweek.SaveStatusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveStatusRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	date, _ := callweek.ParseDate(data.Date) // validated above

	err = api.svc.SetStatus(
		ctx.Request().Context(), claims.Subject, data.StudentID,
		callweek.KindStudent, date, callweek.Status(data.Status),
	)
	if err != nil {
		return errors.Wrap(err, "setting call status")
	}
	return ctx.JSON(http.StatusOK, callResponse{Success: true, Message: "call status saved"})
}

// studentWeek lists one student's calls within the week containing week_start.
func (api *callApi) studentWeek(ctx echo.Context) error {
	var data callweek.StudentWeekRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentWeekRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	start, _ := callweek.ParseDate(data.WeekStart) // validated above

	calls, err := api.svc.PersonCalls(ctx.Request().Context(), data.StudentID, callweek.KindStudent, start)
	if err != nil {
		return errors.Wrap(err, "querying student calls")
	}
	if calls == nil {
		calls = []callweek.Call{}
	}
	return ctx.JSON(http.StatusOK, callResponse{Success: true, Data: calls})
}

// emptyWeek is the grid returned to a mentor with no call history yet.
func emptyWeek(start callweek.Date) callweek.Week {
	start = start.WeekStart()
	return callweek.Week{
		StartDate: start,
		EndDate:   start.AddDays(6),
		Students:  []callweek.Record{},
	}
}
