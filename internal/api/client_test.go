package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"config-watch/internal/store"
)

type ClientTestSuite struct {
	suite.Suite
	server  *httptest.Server
	client  *Client
	handler http.HandlerFunc
	hits    atomic.Int32
}

func (s *ClientTestSuite) SetupTest() {
	s.hits.Store(0)
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.handler(w, r)
	}))
	s.client = New(s.server.URL+"/api", 5*time.Second)
}

func (s *ClientTestSuite) TearDownTest() {
	s.server.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *ClientTestSuite) TestFetchConfigsAccepted() {
	var gotSource string
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodPost, r.Method)
		s.Equal("/api/configs/fetch", r.URL.Path)
		s.Equal("application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotSource = body["source"]
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "configs_count": 3})
	}

	s.NoError(s.client.FetchConfigs(context.Background(), "telegram"))
	s.Equal("telegram", gotSource)
}

func (s *ClientTestSuite) TestIntentRejected() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "busy"})
	}

	err := s.client.TestAll(context.Background())
	s.ErrorIs(err, ErrRejected)
	s.Contains(err.Error(), "busy")
}

func (s *ClientTestSuite) TestIntentStatusErrorCarriesMessage() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "nothing to test"})
	}

	err := s.client.TestAll(context.Background())
	var statusErr *StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusBadRequest, statusErr.StatusCode)
	s.Equal("nothing to test", statusErr.Message)
}

func (s *ClientTestSuite) TestIntentServerErrorNotRetried() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}

	err := s.client.FetchConfigs(context.Background(), "all")
	var statusErr *StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusInternalServerError, statusErr.StatusCode)
	s.Contains(statusErr.Error(), "Internal Server Error")
	s.Equal(int32(1), s.hits.Load())
}

func (s *ClientTestSuite) TestIntentConnectionErrorNotRetried() {
	s.server.Close()

	err := s.client.TestAll(context.Background())
	s.Error(err)
}

func (s *ClientTestSuite) TestTestConfigPath() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodGet, r.Method)
		s.Equal("/api/configs/42/test", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}

	s.NoError(s.client.TestConfig(context.Background(), "42"))
}

func (s *ClientTestSuite) TestListConfigs() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/api/configs", r.URL.Path)
		s.Equal("50", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `{"configs":[
			{"id":1,"name":"de-1","server":"1.2.3.4","port":443,"protocol":"vless","config_url":"vless://x@1.2.3.4:443","status":"untested","ping":null,"last_tested":null},
			{"id":2,"name":"nl-1","server":"5.6.7.8","port":8388,"protocol":"shadowsocks","config_url":"ss://y@5.6.7.8:8388","status":"active","ping":88.2,"last_tested":"2024-05-01T10:00:00Z","country":"NL"}
		],"total":2,"offset":0,"limit":50}`)
	}

	recs, err := s.client.ListConfigs(context.Background(), 50)
	s.Require().NoError(err)
	s.Require().Len(recs, 2)
	s.Equal(store.ID("1"), recs[0].ID)
	s.Equal(store.StatusUntested, recs[0].Status)
	s.Nil(recs[0].Ping)
	s.Equal(store.ProtocolShadowsocks, recs[1].Kind())
	s.Equal(88.2, *recs[1].Ping)
	s.Equal("NL", *recs[1].Country)
	s.Require().NotNil(recs[1].LastTestedAt)
}

func (s *ClientTestSuite) TestListConfigsEmpty() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"total":0}`)
	}

	recs, err := s.client.ListConfigs(context.Background(), 0)
	s.Require().NoError(err)
	s.NotNil(recs)
	s.Empty(recs)
}

func (s *ClientTestSuite) TestListConfigsInvalidJSON() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `invalid json`)
	}

	_, err := s.client.ListConfigs(context.Background(), 50)
	s.Error(err)
}

func (s *ClientTestSuite) TestStats() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/api/stats", r.URL.Path)
		writeJSON(w, http.StatusOK, store.Stats{Total: 3, Active: 1, Dead: 2})
	}

	stats, err := s.client.Stats(context.Background())
	s.Require().NoError(err)
	s.Equal(store.Stats{Total: 3, Active: 1, Dead: 2}, stats)
}

func (s *ClientTestSuite) TestStatsHTTPError() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
	}

	_, err := s.client.Stats(context.Background())
	var statusErr *StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal("boom", statusErr.Message)
	s.Equal(int32(1), s.hits.Load())
}

func (s *ClientTestSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.client.ListConfigs(ctx, 10)
	s.Error(err)
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}
