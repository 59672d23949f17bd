// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/blinklabs-io/utxoorder/database"
	"github.com/blinklabs-io/utxoorder/internal/config"
	"github.com/blinklabs-io/utxoorder/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	txIdZero = "0000000000000000000000000000000000000000000000000000000000000000"
	txId1b56 = "1b56fc4a62e897481a5606bfa88502b48ae4a02b9abcbdfdd8e568144b21c2b7"
	txIdA0   = "a000000000000000000000000000000000000000000000000000000000000000"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	store, err := database.New(
		database.WithLogger(discardLogger()),
		database.WithPromRegistry(reg),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ts := httptest.NewServer(server.New(store, discardLogger(), reg).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJson(
	t *testing.T,
	method string,
	target string,
	body string,
	dest any,
) int {
	t.Helper()
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if dest != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
	}
	return resp.StatusCode
}

func TestSortHandler(t *testing.T) {
	ts := newTestServer(t)
	var resp struct {
		Refs []string `json:"refs"`
	}
	status := doJson(
		t,
		http.MethodPost,
		ts.URL+"/v1/sort",
		`{"refs": [
			"`+txId1b56+`#0",
			"A000000000000000000000000000000000000000000000000000000000000000#0",
			"`+txId1b56+`#1",
			"`+txIdZero+`#0"
		]}`,
		&resp,
	)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(
		t,
		[]string{
			txIdZero + "#0",
			txId1b56 + "#0",
			txId1b56 + "#1",
			txIdA0 + "#0",
		},
		resp.Refs,
	)
}

func TestSortHandlerDedup(t *testing.T) {
	ts := newTestServer(t)
	var resp struct {
		Refs []string `json:"refs"`
	}
	status := doJson(
		t,
		http.MethodPost,
		ts.URL+"/v1/sort",
		`{"dedup": true, "refs": [
			"`+txIdA0+`#0",
			"A000000000000000000000000000000000000000000000000000000000000000#0"
		]}`,
		&resp,
	)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{txIdA0 + "#0"}, resp.Refs)

	status = doJson(t, http.MethodPost, ts.URL+"/v1/sort", `{"refs": []}`, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, resp.Refs)
}

func TestSortHandlerMalformed(t *testing.T) {
	ts := newTestServer(t)
	testDefs := []string{
		`{"refs": ["nothex#0"]}`,
		`{"refs": ["` + txIdA0 + `"]}`,
		`{"refs": "` + txIdA0 + `#0"}`,
		`{"unknown": true}`,
		`{"refs": [null]}`,
		`{"refs": ["` + txIdA0 + `#0", null]}`,
		`not json`,
	}
	for _, body := range testDefs {
		var resp struct {
			Error string `json:"error"`
		}
		status := doJson(t, http.MethodPost, ts.URL+"/v1/sort", body, &resp)
		assert.Equal(t, http.StatusBadRequest, status, body)
		assert.NotEmpty(t, resp.Error, body)
	}
}

func TestCheckHandler(t *testing.T) {
	ts := newTestServer(t)
	var resp struct {
		Sorted bool `json:"sorted"`
	}
	status := doJson(
		t,
		http.MethodPost,
		ts.URL+"/v1/check",
		`{"refs": ["`+txIdZero+`#9", "`+txIdZero+`#10"]}`,
		&resp,
	)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Sorted)

	status = doJson(
		t,
		http.MethodPost,
		ts.URL+"/v1/check",
		`{"refs": ["`+txIdA0+`#0", "`+txId1b56+`#0"]}`,
		&resp,
	)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, resp.Sorted)
}

func TestUtxosHandlers(t *testing.T) {
	ts := newTestServer(t)
	var countResp struct {
		Count int `json:"count"`
	}
	status := doJson(
		t,
		http.MethodPost,
		ts.URL+"/v1/utxos",
		`{"refs": ["`+txIdA0+`#1", "`+txId1b56+`#0", "`+txIdZero+`#3"]}`,
		&countResp,
	)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, countResp.Count)

	var listResp struct {
		Refs []string `json:"refs"`
	}
	status = doJson(t, http.MethodGet, ts.URL+"/v1/utxos", "", &listResp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(
		t,
		[]string{txIdZero + "#3", txId1b56 + "#0", txIdA0 + "#1"},
		listResp.Refs,
	)

	status = doJson(
		t,
		http.MethodGet,
		ts.URL+"/v1/utxos?limit=1&after="+url.QueryEscape(txIdZero+"#3"),
		"",
		&listResp,
	)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{txId1b56 + "#0"}, listResp.Refs)

	// A null ref must not be stored as the all-zero ref
	status = doJson(
		t,
		http.MethodPost,
		ts.URL+"/v1/utxos",
		`{"refs": [null]}`,
		nil,
	)
	assert.Equal(t, http.StatusBadRequest, status)
	status = doJson(t, http.MethodGet, ts.URL+"/v1/utxos", "", &listResp)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, listResp.Refs, txIdZero+"#0")

	status = doJson(t, http.MethodGet, ts.URL+"/v1/utxos?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = doJson(
		t,
		http.MethodDelete,
		ts.URL+"/v1/utxos/"+url.PathEscape(strings.ToUpper(txId1b56)+"#0"),
		"",
		&countResp,
	)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, countResp.Count)

	status = doJson(
		t,
		http.MethodDelete,
		ts.URL+"/v1/utxos/"+txId1b56+":0",
		"",
		nil,
	)
	assert.Equal(t, http.StatusNotFound, status)

	status = doJson(t, http.MethodDelete, ts.URL+"/v1/utxos/bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMetricsHandler(t *testing.T) {
	ts := newTestServer(t)
	doJson(
		t,
		http.MethodPost,
		ts.URL+"/v1/utxos",
		`{"refs": ["`+txIdA0+`#1"]}`,
		nil,
	)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "utxoorder_store_refs 1")
}

func TestRunShutsDownOnCancel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BindAddr = "127.0.0.1"
	cfg.Port = 0
	cfg.InMemory = true
	cfg.ShutdownTimeout = "5s"
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(ctx, cfg, discardLogger())
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunInvalidShutdownTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ShutdownTimeout = "later"
	err := server.Run(context.Background(), cfg, discardLogger())
	assert.Error(t, err)
}
