package dispatch

import (
	"context"
	"errors"
	"strings"

	"cloudtop/internal/schema"
)

// ErrReadOnly: the session was started read-only; every mutating
// invocation is refused before any HTTP call, confirmed or not.
var ErrReadOnly = errors.New("mutating actions are disabled in read-only mode")

// ConfirmationRequiredError is the signal returned when an action
// declares a confirmation gate and the caller has not confirmed yet.
// The navigation layer presents Message and re-invokes with
// confirmed=true on approval.
type ConfirmationRequiredError struct {
	Message     string
	Destructive bool
}

func (e *ConfirmationRequiredError) Error() string {
	return "confirmation required: " + e.Message
}

// Invoke executes a schema-declared action against the selected row.
// The action's path template resolves against the union of the list
// context and the row's identifying fields. Any 2xx is success; the
// response body is not parsed.
func (e *Engine) Invoke(ctx context.Context, res *schema.Resource, action schema.Action, row Row, c Context, confirmed bool) error {
	if e.readOnly {
		return ErrReadOnly
	}

	if action.Confirm != nil && !confirmed {
		return &ConfirmationRequiredError{
			Message:     substituteRowFields(action.Confirm.Message, row),
			Destructive: action.Confirm.Destructive,
		}
	}

	ac := actionContext(row, c)
	u, err := buildURL(res.API.Base, action.API.Path, ac)
	if err != nil {
		return err
	}

	e.log.Info("executing action", "resource", res.Key, "action", action.DisplayName, "target", row.Name)
	_, err = e.send(ctx, action.API.Method, u, nil)
	return err
}

// actionContext widens the list context with the selected row's
// fields. Zone/region self-links on the item override the ambient
// zone so zonal actions hit the item's actual scope.
func actionContext(row Row, c Context) Context {
	ac := c.WithValue("name", row.Name).WithValue("id", row.ID)
	if zone := schema.Field(row.Raw, "zone"); zone != "" {
		ac = ac.WithValue("zone", schema.URLTail(zone))
	}
	if region := schema.Field(row.Raw, "region"); region != "" {
		ac = ac.WithValue("region", schema.URLTail(region))
	}
	return ac
}

func substituteRowFields(msg string, row Row) string {
	msg = strings.ReplaceAll(msg, "{name}", row.Name)
	msg = strings.ReplaceAll(msg, "{id}", row.ID)
	return msg
}
