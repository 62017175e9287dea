package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"cloudtop/internal/httpclient"
	"cloudtop/internal/schema"
)

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Cell is one rendered column value, optionally tagged with a color
// class name resolved by the presentation layer.
type Cell struct {
	Text  string
	Color string // color_map name, "" when unmapped
}

// Row is the generic projection of one remote item. Created fresh on
// every list call; immutable; replaced wholesale on the next refresh.
type Row struct {
	ID    string
	Name  string
	Cells []Cell
	Raw   json.RawMessage
}

// APIError: the remote API answered with a non-2xx status. Never
// retried automatically; surfaced verbatim to the operator.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Body)
}

// Engine interprets resource schemas against the HTTP transport.
type Engine struct {
	client   *httpclient.Client
	tokens   TokenSource
	registry *schema.Registry
	log      *slog.Logger

	readOnly bool
}

func NewEngine(client *httpclient.Client, tokens TokenSource, registry *schema.Registry, readOnly bool, log *slog.Logger) *Engine {
	return &Engine{client: client, tokens: tokens, registry: registry, readOnly: readOnly, log: log}
}

// ReadOnly reports whether mutating actions are refused.
func (e *Engine) ReadOnly() bool { return e.readOnly }

// List fetches and projects the rows for one resource. Item order
// follows the API response verbatim; the engine never sorts.
func (e *Engine) List(ctx context.Context, res *schema.Resource, c Context) ([]Row, error) {
	u, err := buildURL(res.API.Base, res.API.Path, c)
	if err != nil {
		return nil, err
	}

	body, err := e.send(ctx, res.API.Method, u, nil)
	if err != nil {
		return nil, err
	}

	items := schema.Items(body, res.ResponsePath)
	e.log.Debug("listed resource", "key", res.Key, "url", u, "items", len(items))

	rows := make([]Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, project(res, item))
	}
	return rows, nil
}

// ListSub lists a sub-resource in the context of a selected parent
// item. If the child path template does not consume the filter
// parameter it is appended as a query parameter instead.
func (e *Engine) ListSub(ctx context.Context, parent *schema.Resource, sub schema.SubResource, parentItem json.RawMessage, c Context) ([]Row, error) {
	child, err := e.registry.Resolve(sub.ResourceKey)
	if err != nil {
		return nil, err
	}
	cc, err := SubContext(parent, sub, parentItem, c)
	if err != nil {
		return nil, err
	}

	if !strings.Contains(child.API.Path, "{"+sub.FilterParam+"}") {
		// Filter rides as a query parameter.
		res := *child
		sep := "?"
		if strings.Contains(res.API.Path, "?") {
			sep = "&"
		}
		res.API.Path += sep + sub.FilterParam + "=" + url.QueryEscape(cc.Values[sub.FilterParam])
		return e.List(ctx, &res, cc)
	}
	return e.List(ctx, child, cc)
}

// project maps one item record through the schema's id/name/column
// paths. Missing leaves become the empty placeholder; partial data
// never aborts the list.
func project(res *schema.Resource, item json.RawMessage) Row {
	row := Row{
		ID:   schema.Field(item, res.IDField),
		Name: schema.Field(item, res.NameField),
		Raw:  item,
	}
	if row.Name == "" {
		row.Name = row.ID
	}
	row.Cells = make([]Cell, 0, len(res.Columns))
	for _, col := range res.Columns {
		row.Cells = append(row.Cells, Cell{
			Text:  schema.Extract(item, col.JSONPath),
			Color: col.ColorMap,
		})
	}
	return row
}

// send issues one authenticated request and maps non-2xx statuses to
// APIError. Transport retries live one layer down.
func (e *Engine) send(ctx context.Context, method, u string, body []byte) ([]byte, error) {
	tok, err := e.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{
		"Authorization": "Bearer " + tok,
		"Content-Type":  "application/json",
	}
	res, err := e.client.Send(ctx, method, u, headers, body)
	if err != nil {
		return nil, err
	}
	if res.Status < 200 || res.Status >= 300 {
		return nil, &APIError{Status: res.Status, Body: bodyExcerpt(res.Body)}
	}
	return res.Body, nil
}

func bodyExcerpt(b []byte) string {
	const max = 300
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// ListProjects returns the project ids visible to the caller, for the
// project picker.
func (e *Engine) ListProjects(ctx context.Context) ([]string, error) {
	const u = "https://cloudresourcemanager.googleapis.com/v1/projects?filter=lifecycleState:ACTIVE"
	body, err := e.send(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, item := range schema.Items(body, "projects") {
		if id := schema.Field(item, "projectId"); id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

// ListZones returns the zone names of the active project, for the
// zone picker.
func (e *Engine) ListZones(ctx context.Context, c Context) ([]string, error) {
	u, err := buildURL("https://compute.googleapis.com/compute/v1", "/projects/{project}/zones", c)
	if err != nil {
		return nil, err
	}
	body, err := e.send(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, item := range schema.Items(body, "items") {
		if name := schema.Field(item, "name"); name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}
