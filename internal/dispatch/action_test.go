package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudtop/internal/schema"
)

func startAction() schema.Action {
	return schema.Action{
		DisplayName: "Start",
		API:         schema.ActionAPI{Method: "POST", Path: "/projects/{project}/zones/{zone}/widgets/{name}/start"},
		Shortcut:    "s",
	}
}

func deleteAction() schema.Action {
	return schema.Action{
		DisplayName: "Delete",
		API:         schema.ActionAPI{Method: "DELETE", Path: "/projects/{project}/zones/{zone}/widgets/{name}"},
		Shortcut:    "D",
		Confirm:     &schema.Confirm{Message: "Delete {name} ({id})?", Destructive: true},
	}
}

func widgetRow() Row {
	return Row{
		ID:   "123",
		Name: "web-1",
		Raw:  json.RawMessage(`{"id": "123", "name": "web-1", "zone": "projects/p/zones/us-central1-f"}`),
	}
}

func TestInvokeUnconfirmed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	e := testEngine(t, nil, false)
	res := listResource(srv.URL)

	err := e.Invoke(context.Background(), res, deleteAction(), widgetRow(), Context{Project: "p1", Zone: "z1"}, false)

	var confirm *ConfirmationRequiredError
	require.ErrorAs(t, err, &confirm)
	assert.Equal(t, "Delete web-1 (123)?", confirm.Message)
	assert.True(t, confirm.Destructive)
	assert.Zero(t, atomic.LoadInt32(&calls), "unconfirmed action must not reach the API")
}

func TestInvokeConfirmed(t *testing.T) {
	var calls int32
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		gotMethod = r.Method
		gotPath = r.URL.Path
		io.WriteString(w, `{"name": "operation-1", "status": "PENDING"}`)
	}))
	defer srv.Close()

	e := testEngine(t, nil, false)
	res := listResource(srv.URL)

	err := e.Invoke(context.Background(), res, deleteAction(), widgetRow(), Context{Project: "p1", Zone: "z1"}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, "DELETE", gotMethod)
	// the item's own zone overrides the ambient one
	assert.Equal(t, "/projects/p1/zones/us-central1-f/widgets/web-1", gotPath)
}

// Actions without a confirmation gate execute immediately.
func TestInvokeNoGate(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	e := testEngine(t, nil, false)
	err := e.Invoke(context.Background(), listResource(srv.URL), startAction(), widgetRow(), Context{Project: "p1", Zone: "z1"}, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

// Read-only mode wins over confirmation state: no dialog, no call.
func TestInvokeReadOnly(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	e := testEngine(t, nil, true)
	res := listResource(srv.URL)

	for _, confirmed := range []bool{false, true} {
		err := e.Invoke(context.Background(), res, deleteAction(), widgetRow(), Context{Project: "p1", Zone: "z1"}, confirmed)
		assert.ErrorIs(t, err, ErrReadOnly)
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestInvokeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error": {"message": "already exists"}}`)
	}))
	defer srv.Close()

	e := testEngine(t, nil, false)
	err := e.Invoke(context.Background(), listResource(srv.URL), startAction(), widgetRow(), Context{Project: "p1", Zone: "z1"}, false)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}
