package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wellora/wellcheck/internal/domain/analysis"
	"github.com/wellora/wellcheck/internal/domain/environment"
	"github.com/wellora/wellcheck/internal/infra/config"
	apperrors "github.com/wellora/wellcheck/pkg/errors"
)

type stubAnalysis struct {
	analyzeFn func(ctx context.Context, req analysis.Request) (analysis.Response, error)
}

func (s *stubAnalysis) Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error) {
	if s.analyzeFn == nil {
		return analysis.Response{}, nil
	}
	return s.analyzeFn(ctx, req)
}

type stubEnvService struct {
	summary environment.Summary
	gotLat  float64
	gotLon  float64
}

func (s *stubEnvService) Summary(ctx context.Context, lat, lon float64) environment.Summary {
	s.gotLat, s.gotLon = lat, lon
	return s.summary
}

func newRouterUnderTest(t *testing.T, analysisSvc analysis.Service, envSvc environment.Service) http.Handler {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.HTTP.RateLimit.Enabled = false

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(analysisSvc, envSvc, logger)
	return NewRouter(cfg, handler).Handler
}

func performJSON(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeErrorBody(t *testing.T, payload []byte) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(payload, &body))
	return body
}

func TestRouter_AnalyzeSuccess(t *testing.T) {
	want := analysis.Response{
		InferenceResult: analysis.InferenceResult{
			SicknessProbability: 55,
			Symptoms:            []string{"red eyes"},
			Severity:            analysis.SeverityMild,
			DischargeType:       analysis.DischargeClear,
		},
		Timestamp: "2026-04-12T09:30:00Z",
	}
	svc := &stubAnalysis{
		analyzeFn: func(ctx context.Context, req analysis.Request) (analysis.Response, error) {
			require.NotNil(t, req.Latitude)
			require.InDelta(t, 1.29, *req.Latitude, 1e-9)
			return want, nil
		},
	}

	recorder := performJSON(newRouterUnderTest(t, svc, &stubEnvService{}), http.MethodPost, "/analyze",
		`{"imageBase64":"aGVsbG8=","latitude":1.29,"longitude":103.85}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	var got analysis.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, want.SicknessProbability, got.SicknessProbability)
	require.Equal(t, want.Timestamp, got.Timestamp)
}

func TestRouter_AnalyzeMalformedBody(t *testing.T) {
	recorder := performJSON(newRouterUnderTest(t, &stubAnalysis{}, &stubEnvService{}), http.MethodPost, "/analyze", `{"imageBase64": 12`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	body := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_input", body["code"])
	require.NotEmpty(t, body["error"])
}

func TestRouter_AnalyzeErrorMapping(t *testing.T) {
	cases := []struct {
		code   string
		status int
	}{
		{"invalid_input", http.StatusBadRequest},
		{"rate_limited", http.StatusServiceUnavailable},
		{"timeout", http.StatusGatewayTimeout},
		{"inference_error", http.StatusBadGateway},
	}
	for _, tc := range cases {
		svc := &stubAnalysis{
			analyzeFn: func(ctx context.Context, req analysis.Request) (analysis.Response, error) {
				return analysis.Response{}, apperrors.Wrap(tc.code, "it broke", nil)
			},
		}
		recorder := performJSON(newRouterUnderTest(t, svc, &stubEnvService{}), http.MethodPost, "/analyze",
			`{"imageBase64":"aGVsbG8=","latitude":1.29,"longitude":103.85}`)
		require.Equal(t, tc.status, recorder.Code, tc.code)

		body := decodeErrorBody(t, recorder.Body.Bytes())
		require.Equal(t, tc.code, body["code"])
		require.Equal(t, "it broke", body["error"])
	}
}

func TestRouter_PollenSuccess(t *testing.T) {
	env := &stubEnvService{summary: environment.Summary{
		Pollen: &environment.PollenSummary{Level: environment.LevelHigh, MaxIndex: 3},
	}}
	router := newRouterUnderTest(t, &stubAnalysis{}, env)

	for _, path := range []string{"/pollen", "/environmental"} {
		recorder := performJSON(router, http.MethodGet, path+"?lat=1.29&lon=103.85", "")
		require.Equal(t, http.StatusOK, recorder.Code, path)

		var got environment.Summary
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
		require.NotNil(t, got.Pollen)
		require.Equal(t, environment.LevelHigh, got.Pollen.Level)
	}
	require.InDelta(t, 1.29, env.gotLat, 1e-9)
}

func TestRouter_PollenUpstreamErrorStaysOK(t *testing.T) {
	env := &stubEnvService{summary: environment.ErrorSummary("pollen request failed")}
	recorder := performJSON(newRouterUnderTest(t, &stubAnalysis{}, env), http.MethodGet, "/pollen?lat=1&lon=2", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var got environment.Summary
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
	require.Equal(t, "pollen request failed", got.Error)
}

func TestRouter_PollenInvalidCoordinates(t *testing.T) {
	router := newRouterUnderTest(t, &stubAnalysis{}, &stubEnvService{})
	cases := []string{
		"/pollen",
		"/pollen?lat=abc&lon=1",
		"/pollen?lat=1",
		"/pollen?lat=95&lon=1",
		"/pollen?lat=1&lon=190",
	}
	for _, path := range cases {
		recorder := performJSON(router, http.MethodGet, path, "")
		require.Equal(t, http.StatusBadRequest, recorder.Code, path)
		body := decodeErrorBody(t, recorder.Body.Bytes())
		require.Equal(t, "invalid_input", body["code"])
	}
}

func TestRouter_Health(t *testing.T) {
	recorder := performJSON(newRouterUnderTest(t, &stubAnalysis{}, &stubEnvService{}), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.JSONEq(t, `{"ok":true}`, recorder.Body.String())
}
