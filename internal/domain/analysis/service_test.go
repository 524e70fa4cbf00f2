package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wellora/wellcheck/internal/domain/environment"
	"github.com/wellora/wellcheck/internal/domain/voice"
	"github.com/wellora/wellcheck/internal/infra/llm/gemini"
	apperrors "github.com/wellora/wellcheck/pkg/errors"
)

type stubEnvironment struct {
	summary environment.Summary
}

func (s *stubEnvironment) Summary(ctx context.Context, lat, lon float64) environment.Summary {
	return s.summary
}

type stubVoiceClient struct {
	analysis *voice.Analysis
	err      error
	gotAudio []byte
}

func (s *stubVoiceClient) Analyze(ctx context.Context, audio []byte, mediaType string) (*voice.Analysis, error) {
	s.gotAudio = audio
	return s.analysis, s.err
}

type stubGeocoder struct {
	name string
	err  error
}

func (s *stubGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	return s.name, s.err
}

type stubChatClient struct {
	response string
	err      error
	gotReq   gemini.GenerateRequest
}

func (s *stubChatClient) GenerateContent(ctx context.Context, req gemini.GenerateRequest) (string, error) {
	s.gotReq = req
	return s.response, s.err
}

type stubRecorder struct {
	saved []Record
	err   error
}

func (s *stubRecorder) Save(ctx context.Context, rec Record) error {
	s.saved = append(s.saved, rec)
	return s.err
}

type fixture struct {
	env      *stubEnvironment
	voice    *stubVoiceClient
	geocoder *stubGeocoder
	chat     *stubChatClient
	recorder *stubRecorder
	service  Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		env: &stubEnvironment{summary: environment.Summary{
			Pollen: &environment.PollenSummary{Level: environment.LevelModerate, MaxIndex: 2},
		}},
		voice:    &stubVoiceClient{},
		geocoder: &stubGeocoder{name: "Marina Bay, Singapore"},
		chat:     &stubChatClient{response: wellFormed},
		recorder: &stubRecorder{},
	}
	svc := NewService(Config{}, f.env, f.voice, f.geocoder, f.chat, f.recorder, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	svc.(*service).now = func() time.Time {
		return time.Date(2026, 4, 12, 9, 30, 0, 0, time.UTC)
	}
	f.service = svc
	return f
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func ptr(v float64) *float64 { return &v }

func validRequest() Request {
	return Request{
		ImageBase64: base64.StdEncoding.EncodeToString([]byte("image bytes")),
		Latitude:    ptr(1.2897654321),
		Longitude:   ptr(103.8512345678),
		UserID:      "user-1",
	}
}

func TestAnalyzeHappyPath(t *testing.T) {
	f := newFixture(t)

	res, err := f.service.Analyze(context.Background(), validRequest())
	require.NoError(t, err)

	require.Equal(t, 62, res.SicknessProbability)
	require.Equal(t, 48, *res.AllergyProbability)
	require.False(t, res.Salvaged)
	require.NotNil(t, res.Environmental.Pollen)
	require.Nil(t, res.Voice)
	require.Equal(t, "Marina Bay, Singapore", res.Location.DisplayName)
	require.InDelta(t, 1.289765, res.Location.Latitude, 1e-9)
	require.InDelta(t, 103.851235, res.Location.Longitude, 1e-9)
	require.Equal(t, "2026-04-12T09:30:00Z", res.Timestamp)

	// image first, prompt text last
	require.Len(t, f.chat.gotReq.Parts, 2)
	require.Equal(t, "image/jpeg", f.chat.gotReq.Parts[0].InlineData.MIMEType)
	require.Contains(t, f.chat.gotReq.Parts[1].Text, "sickness assessment AI")
}

func TestAnalyzeValidation(t *testing.T) {
	f := newFixture(t)

	req := validRequest()
	req.ImageBase64 = "   "
	_, err := f.service.Analyze(context.Background(), req)
	require.True(t, apperrors.IsCode(err, "invalid_input"))

	req = validRequest()
	req.Latitude = nil
	_, err = f.service.Analyze(context.Background(), req)
	require.True(t, apperrors.IsCode(err, "invalid_input"))

	req = validRequest()
	req.Latitude = ptr(math.NaN())
	_, err = f.service.Analyze(context.Background(), req)
	require.True(t, apperrors.IsCode(err, "invalid_input"))

	req = validRequest()
	req.Longitude = ptr(240)
	_, err = f.service.Analyze(context.Background(), req)
	require.True(t, apperrors.IsCode(err, "invalid_input"))
}

func TestAnalyzeStripsDataURLPrefixes(t *testing.T) {
	f := newFixture(t)

	raw := base64.StdEncoding.EncodeToString([]byte("image bytes"))
	req := validRequest()
	req.ImageBase64 = "data:image/png;base64," + raw
	req.ImageMediaType = "image/png"

	_, err := f.service.Analyze(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, raw, f.chat.gotReq.Parts[0].InlineData.Data)
	require.Equal(t, "image/png", f.chat.gotReq.Parts[0].InlineData.MIMEType)
}

func TestAnalyzeWithVoice(t *testing.T) {
	f := newFixture(t)
	f.voice.analysis = &voice.Analysis{NasalityScore: 70, Confidence: 85, SuggestsCongestion: true}

	req := validRequest()
	req.VoiceBase64 = base64.StdEncoding.EncodeToString([]byte("audio bytes"))
	req.VoiceMediaType = "audio/wav"

	res, err := f.service.Analyze(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res.Voice)
	require.True(t, res.Voice.SuggestsCongestion)
	require.Equal(t, []byte("audio bytes"), f.voice.gotAudio)

	// image, voice, then prompt text
	require.Len(t, f.chat.gotReq.Parts, 3)
	require.Equal(t, "audio/wav", f.chat.gotReq.Parts[1].InlineData.MIMEType)
	require.Contains(t, f.chat.gotReq.Parts[2].Text, "Nasality score: 70/100")
}

func TestAnalyzeVoiceFailureContained(t *testing.T) {
	f := newFixture(t)
	f.voice.err = errors.New("connection refused")

	req := validRequest()
	req.VoiceBase64 = base64.StdEncoding.EncodeToString([]byte("audio bytes"))

	res, err := f.service.Analyze(context.Background(), req)
	require.NoError(t, err)
	require.True(t, res.Voice.Failed())
	require.Equal(t, "voice analysis failed", res.Voice.Error)
}

func TestAnalyzeInvalidVoiceBase64Skipped(t *testing.T) {
	f := newFixture(t)

	req := validRequest()
	req.VoiceBase64 = "!!! not base64 !!!"

	res, err := f.service.Analyze(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, res.Voice)
	require.Nil(t, f.voice.gotAudio)
}

func TestAnalyzeEnvironmentErrorContained(t *testing.T) {
	f := newFixture(t)
	f.env.summary = environment.ErrorSummary("pollen request failed")

	res, err := f.service.Analyze(context.Background(), validRequest())
	require.NoError(t, err)
	require.Nil(t, res.Environmental.Pollen)
	require.Equal(t, "pollen request failed", res.Environmental.Error)
	require.Contains(t, f.chat.gotReq.Parts[1].Text, "Error: pollen request failed")
}

func TestAnalyzeGeocodeFailureContained(t *testing.T) {
	f := newFixture(t)
	f.geocoder.err = errors.New("quota exceeded")
	f.geocoder.name = ""

	res, err := f.service.Analyze(context.Background(), validRequest())
	require.NoError(t, err)
	require.Empty(t, res.Location.DisplayName)
}

func TestAnalyzeInferenceErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("wrapped: %w", gemini.ErrRateLimited), "rate_limited"},
		{fmt.Errorf("wrapped: %w", gemini.ErrTimedOut), "timeout"},
		{errors.New("boom"), "inference_error"},
	}
	for _, tc := range cases {
		f := newFixture(t)
		f.chat.err = tc.err
		_, err := f.service.Analyze(context.Background(), validRequest())
		require.True(t, apperrors.IsCode(err, tc.code), tc.code)
	}
}

func TestAnalyzeSalvagedResponse(t *testing.T) {
	f := newFixture(t)
	f.chat.response = `{"sicknessProbability": 35, "symptoms": ["sneezing"], "severity": "mild",`

	res, err := f.service.Analyze(context.Background(), validRequest())
	require.NoError(t, err)
	require.True(t, res.Salvaged)
	require.Equal(t, 35, res.SicknessProbability)
}

func TestAnalyzeRecordsAssessment(t *testing.T) {
	f := newFixture(t)

	req := validRequest()
	req.AllergyHistory = "  pollen allergies every spring  "
	res, err := f.service.Analyze(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.recorder.saved, 1)
	rec := f.recorder.saved[0]
	require.NotEmpty(t, rec.ID)
	require.Equal(t, "user-1", rec.UserID)
	require.Equal(t, "pollen allergies every spring", rec.AllergyHistory)
	require.Equal(t, res.Timestamp, rec.Response.Timestamp)
}

func TestAnalyzeRecorderFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.recorder.err = errors.New("db down")

	_, err := f.service.Analyze(context.Background(), validRequest())
	require.NoError(t, err)
}
