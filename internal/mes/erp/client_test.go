package erp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeERP struct {
	logins   int32
	lastKey  string
	lastBody map[string]interface{}
	cookie   string
	fail     bool
}

func (f *fakeERP) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(pathLogin, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.logins, 1)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SBODEMO", body["CompanyDB"])
		json.NewEncoder(w).Encode(map[string]interface{}{"SessionId": "sess-1", "SessionTimeout": 30})
	})
	doc := func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookieName)
		if err == nil {
			f.cookie = c.Value
		}
		f.lastKey = r.Header.Get(idempotencyHeader)
		f.lastBody = map[string]interface{}{}
		json.NewDecoder(r.Body).Decode(&f.lastBody)
		if f.fail {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":-10,"message":{"lang":"en-us","value":"No matching records found"}}}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"DocEntry": 501, "DocNum": 9001})
	}
	mux.HandleFunc(pathMaterialIssue, doc)
	mux.HandleFunc(pathGoodsReceipt, doc)
	return mux
}

func newTestClient(t *testing.T, f *fakeERP) *Client {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:   srv.URL + "/",
		CompanyDB: "SBODEMO",
		Username:  "manager",
		Password:  "secret",
		Timeout:   5 * time.Second,
	}, nil)
}

func TestCreateMaterialIssue(t *testing.T) {
	f := &fakeERP{}
	c := newTestClient(t, f)

	ref, err := c.CreateMaterialIssue(context.Background(), &MaterialIssue{
		DocDate: "2026-10-14",
		DocumentLines: []IssueLine{
			{ItemCode: "RM-1", Quantity: 3, WarehouseCode: "01", BaseType: BaseTypeProductionOrder, BaseEntry: 12, BaseLine: 0},
		},
	}, "PRD20261014001:MATERIAL_ISSUE")
	require.NoError(t, err)
	assert.Equal(t, int64(501), ref.DocEntry)
	assert.Equal(t, int64(9001), ref.DocNum)
	assert.Equal(t, "PRD20261014001:MATERIAL_ISSUE", f.lastKey)
	assert.Equal(t, "sess-1", f.cookie)

	lines := f.lastBody["DocumentLines"].([]interface{})
	line := lines[0].(map[string]interface{})
	_, hasBatches := line["BatchNumbers"]
	assert.False(t, hasBatches, "batch numbers must be omitted for non-batch lines")
}

func TestSessionIsReused(t *testing.T) {
	f := &fakeERP{}
	c := newTestClient(t, f)

	for i := 0; i < 3; i++ {
		_, err := c.CreateGoodsReceipt(context.Background(), &GoodsReceipt{DocDate: "2026-10-14"}, "")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.logins))
}

func TestERPErrorIsParsed(t *testing.T) {
	f := &fakeERP{fail: true}
	c := newTestClient(t, f)

	_, err := c.CreateGoodsReceipt(context.Background(), &GoodsReceipt{DocDate: "2026-10-14"}, "k")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, -10, apiErr.Code)
	assert.Equal(t, "No matching records found", apiErr.Message)
	assert.Equal(t, pathGoodsReceipt, apiErr.Path)
}

func TestLoginFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":100000027,"message":{"value":"Login failed"}}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.CreateMaterialIssue(context.Background(), &MaterialIssue{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Login failed")
}
