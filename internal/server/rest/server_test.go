package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MSSkowron/MicroURL/internal/dto"
	"github.com/MSSkowron/MicroURL/internal/repository"
	"github.com/MSSkowron/MicroURL/internal/service"
	"github.com/MSSkowron/MicroURL/internal/testutil"
)

type scriptedGenerator struct {
	codes []string
	next  int
}

func (g *scriptedGenerator) GenerateCode() string {
	code := g.codes[g.next%len(g.codes)]
	g.next++
	return code
}

// failingRegistry fails every operation with err.
type failingRegistry struct {
	err error
}

func (f *failingRegistry) RegisterOrReuse(context.Context, string, bool) (string, error) {
	return "", f.err
}

func (f *failingRegistry) Resolve(context.Context, string) (string, error) { return "", f.err }

func (f *failingRegistry) ListTop(context.Context, int) (dto.OrderedMicros, error) { return nil, f.err }

func (f *failingRegistry) ListRecent(context.Context, int) (dto.OrderedMicros, error) {
	return nil, f.err
}

func (f *failingRegistry) Sweep(context.Context) (int64, error) { return 0, f.err }

func (f *failingRegistry) Ping(context.Context) error { return f.err }

func newTestServer(t *testing.T, codes ...string) (*Server, *testutil.Clock) {
	t.Helper()

	clock := testutil.NewClock(1000)
	repo := repository.NewMemoryMicroRepository(repository.WithClock(clock.Now))
	registry, err := service.NewRegistryService(repo, &scriptedGenerator{codes: codes}, time.Hour, service.WithClock(clock.Now))
	require.NoError(t, err)

	return NewServer(registry), clock
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func shorten(t *testing.T, s *Server, destination string, public bool) string {
	t.Helper()

	body := fmt.Sprintf(`{"destination": %q, "public": %t}`, destination, public)
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/micros", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var micro dto.MicroDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&micro))
	return micro.Code
}

func TestHandleGenerateMicro(t *testing.T) {
	s, _ := newTestServer(t, "redfoxtail", "bluecatnest")

	form := url.Values{"url": {"  example.com  "}, "public": {"on"}}
	req := httptest.NewRequest(http.MethodPost, "/generate_micro", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"OK","micro":"redfoxtail","error":""}`, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/redfoxtail", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "http://example.com", rec.Header().Get("Location"), "The form value should be trimmed")

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/micros/top", nil))
	require.JSONEq(t, `{"redfoxtail":"example.com"}`, rec.Body.String())
}

func TestHandleGenerateMicroBlank(t *testing.T) {
	s, _ := newTestServer(t, "redfoxtail")

	req := httptest.NewRequest(http.MethodPost, "/generate_micro", strings.NewReader("url=+++"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := do(t, s, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp dto.GenerateMicroDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, StatusError, resp.Status)
	require.Empty(t, resp.Micro)
	require.NotEmpty(t, resp.Error)
}

func TestHandleShorten(t *testing.T) {
	s, _ := newTestServer(t, "redfoxtail", "bluecatnest")

	first := shorten(t, s, "https://example.com/page", true)
	second := shorten(t, s, "https://example.com/page", true)
	require.Equal(t, "redfoxtail", first)
	require.Equal(t, first, second)

	data := []struct {
		name string
		body string
	}{
		{"Malformed", `{"destination":`},
		{"Empty", `{"destination": ""}`},
	}

	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/micros", strings.NewReader(d.body)))
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleRedirect(t *testing.T) {
	s, clock := newTestServer(t, "urlmicro", "domainmicro", "ipmicro", "pathmicro")

	shorten(t, s, "https://example.com/a?b=c", false)
	shorten(t, s, "example.com", false)
	shorten(t, s, "192.168.0.1:8080/status", false)
	shorten(t, s, "not a destination", false)

	data := []struct {
		code     string
		status   int
		location string
	}{
		{"urlmicro", http.StatusFound, "https://example.com/a?b=c"},
		{"domainmicro", http.StatusFound, "http://example.com"},
		{"ipmicro", http.StatusFound, "http://192.168.0.1:8080/status"},
		{"pathmicro", http.StatusNotFound, ""},
		{"nosuchmicro", http.StatusNotFound, ""},
	}

	for _, d := range data {
		t.Run(d.code, func(t *testing.T) {
			rec := do(t, s, httptest.NewRequest(http.MethodGet, "/"+d.code, nil))
			require.Equal(t, d.status, rec.Code)
			require.Equal(t, d.location, rec.Header().Get("Location"))
			if d.status == http.StatusNotFound {
				require.JSONEq(t, `{"error":"invalid url"}`, rec.Body.String())
			}
		})
	}

	t.Run("Expired", func(t *testing.T) {
		clock.Advance(time.Hour + time.Second)

		rec := do(t, s, httptest.NewRequest(http.MethodGet, "/urlmicro", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleListings(t *testing.T) {
	s, clock := newTestServer(t, "alpha", "beta", "gamma")

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/micros/top", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"":"nothing here"}`, rec.Body.String())

	shorten(t, s, "https://a.example", true)
	clock.Advance(time.Second)
	shorten(t, s, "https://b.example", true)
	clock.Advance(time.Second)
	shorten(t, s, "https://c.example", false)

	for i := 0; i < 2; i++ {
		do(t, s, httptest.NewRequest(http.MethodGet, "/beta", nil))
	}

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/micros/top", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `{"beta":"https://b.example","alpha":"https://a.example"}`, rec.Body.String())

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/micros/recent?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `{"beta":"https://b.example"}`, rec.Body.String())

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/micros/recent?limit=ten", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	data := []struct {
		name   string
		err    error
		status int
	}{
		{"NotFound", service.ErrMicroNotFound, http.StatusNotFound},
		{"InvalidDestination", service.ErrInvalidDestination, http.StatusBadRequest},
		{"StoreUnavailable", fmt.Errorf("failed to lookup micro: %w", service.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"Exhausted", service.ErrCodeSpaceExhausted, http.StatusInternalServerError},
		{"Other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			s := NewServer(&failingRegistry{err: d.err})

			requests := []*http.Request{
				httptest.NewRequest(http.MethodPost, "/api/micros", strings.NewReader(`{"destination":"example.com"}`)),
				httptest.NewRequest(http.MethodGet, "/api/micros/top", nil),
				httptest.NewRequest(http.MethodGet, "/api/micros/recent", nil),
				httptest.NewRequest(http.MethodGet, "/somemicro", nil),
			}
			for _, req := range requests {
				rec := do(t, s, req)
				require.Equal(t, d.status, rec.Code, req.URL.Path)
				require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t, "alpha")

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/a/b/c", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	data := []struct {
		name      string
		forwarded string
		remote    string
		expected  string
	}{
		{"RemoteAddr", "", "192.0.2.1:1234", "192.0.2.1"},
		{"Forwarded", "203.0.113.7", "192.0.2.1:1234", "203.0.113.7"},
		{"ForwardedChain", "203.0.113.7, 10.0.0.1", "192.0.2.1:1234", "203.0.113.7"},
	}

	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = d.remote
			if d.forwarded != "" {
				req.Header.Set("X-Forwarded-For", d.forwarded)
			}
			require.Equal(t, d.expected, getClientIP(req))
		})
	}
}

func TestGetRequestBodyRestoresBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/micros", strings.NewReader("{\n  \"destination\": \"example.com\"\n}"))

	body, err := getRequestBody(req)
	require.NoError(t, err)
	require.Equal(t, `{"destination":"example.com"}`, body)

	var shortenDTO dto.ShortenRequestDTO
	require.NoError(t, json.NewDecoder(req.Body).Decode(&shortenDTO))
	require.Equal(t, "example.com", shortenDTO.Destination)

	req = httptest.NewRequest(http.MethodPost, "/generate_micro", strings.NewReader("url=example.com"))
	body, err = getRequestBody(req)
	require.NoError(t, err)
	require.Equal(t, "url=example.com", body)
}
