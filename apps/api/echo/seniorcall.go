package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coachdesk/backend/core/callweek"
	"github.com/coachdesk/backend/core/user"
)

type seniorCallApi struct {
	svc callweek.ServiceInterface
}

// registerSeniorCallAPI mounts the senior-mentor calling portal. Senior weeks
// are keyed by the senior's own id and carry both the student and the parent
// record families.
func registerSeniorCallAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc callweek.ServiceInterface) {
	api := seniorCallApi{svc: svc}

	sg := g.Group("/senior-call", jwt, roleMiddleware(user.RoleSeniorMentor))
	sg.POST("/get", api.weekRecord)
	sg.POST("/save", api.saveCallStatus)
}

func (api *seniorCallApi) weekRecord(ctx echo.Context) error {
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
			return ctx.JSON(http.StatusOK, callResponse{Success: true, Data: withParents(emptyWeek(start))})
		}
		return errors.Wrap(err, "resolving week")
	}
	return ctx.JSON(http.StatusOK, callResponse{Success: true, Data: withParents(wk)})
}

// withParents makes the parents family render even when empty; the senior
// grid always carries both families.
func withParents(wk callweek.Week) callweek.Week {
	if wk.Parents == nil {
		wk.Parents = []callweek.Record{}
	}
	return wk
}

func (api *seniorCallApi) saveCallStatus(ctx echo.Context) error {
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
		callweek.KindFromCallType(data.CallType), date, callweek.Status(data.Status),
	)
	if err != nil {
		return errors.Wrap(err, "setting call status")
	}
	return ctx.JSON(http.StatusOK, callResponse{Success: true, Message: "call status saved"})
}
