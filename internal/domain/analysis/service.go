package analysis

import (
	"context"
	"encoding/base64"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wellora/wellcheck/internal/domain/environment"
	"github.com/wellora/wellcheck/internal/domain/voice"
	"github.com/wellora/wellcheck/internal/infra/llm/gemini"
	apperrors "github.com/wellora/wellcheck/pkg/errors"
	"github.com/wellora/wellcheck/pkg/util"
)

// Service exposes the combined health assessment capability.
type Service interface {
	Analyze(ctx context.Context, req Request) (Response, error)
}

// ChatClient generates a model completion from multimodal parts.
type ChatClient interface {
	GenerateContent(ctx context.Context, req gemini.GenerateRequest) (string, error)
}

// VoiceClient extracts acoustic features from an audio sample. A nil
// result with nil error means analysis was not attempted.
type VoiceClient interface {
	Analyze(ctx context.Context, audio []byte, mediaType string) (*voice.Analysis, error)
}

// Geocoder resolves a coordinate into a display name.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// Config wires runtime limits for the analysis domain.
type Config struct {
	MaxAllergyHistoryLen int
	MaxVoiceBase64Len    int
}

type service struct {
	cfg         Config
	environment environment.Service
	voiceClient VoiceClient
	geocoder    Geocoder
	chat        ChatClient
	recorder    Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewService wires up the assessment orchestration domain.
func NewService(
	cfg Config,
	env environment.Service,
	voiceClient VoiceClient,
	geocoder Geocoder,
	chat ChatClient,
	recorder Recorder,
	logger *slog.Logger,
) Service {
	if cfg.MaxAllergyHistoryLen <= 0 {
		cfg.MaxAllergyHistoryLen = 2000
	}
	if cfg.MaxVoiceBase64Len <= 0 {
		cfg.MaxVoiceBase64Len = 2_600_000
	}
	return &service{
		cfg:         cfg,
		environment: env,
		voiceClient: voiceClient,
		geocoder:    geocoder,
		chat:        chat,
		recorder:    recorder,
		logger:      logger.With("component", "analysis.service"),
		now:         util.NowUTC,
	}
}

func (s *service) Analyze(ctx context.Context, req Request) (Response, error) {
	input, err := s.validate(req)
	if err != nil {
		return Response{}, err
	}

	// Log request shape, never payloads.
	s.logger.Info("analysis request accepted",
		"imageChars", len(input.imageBase64),
		"hasVoice", len(input.voiceBase64) > 0,
		"hasAllergyHistory", input.allergyHistory != "",
	)

	// Context gathering fans out. Each source is independent and each
	// failure is contained inside its own response field.
	var (
		wg          sync.WaitGroup
		envSummary  environment.Summary
		voiceResult *voice.Analysis
		displayName string
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		envSummary = s.environment.Summary(ctx, input.lat, input.lon)
	}()

	if len(input.voiceAudio) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			voiceResult = s.analyzeVoice(ctx, input.voiceAudio, input.voiceMediaType)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		name, err := s.geocoder.ReverseGeocode(ctx, input.lat, input.lon)
		if err != nil {
			s.logger.Warn("reverse geocoding failed", "error", err)
			return
		}
		displayName = name
	}()

	wg.Wait()

	prompt := buildPrompt(promptInput{
		Latitude:       input.lat,
		Longitude:      input.lon,
		Environment:    envSummary,
		Voice:          voiceResult,
		VoiceAttached:  len(input.voiceAudio) > 0,
		AllergyHistory: input.allergyHistory,
	})

	parts := []gemini.Part{
		{InlineData: &gemini.Blob{MIMEType: input.imageMediaType, Data: input.imageBase64}},
	}
	if input.voiceBase64 != "" {
		parts = append(parts, gemini.Part{
			InlineData: &gemini.Blob{MIMEType: input.voiceMediaType, Data: input.voiceBase64},
		})
	}
	parts = append(parts, gemini.Part{Text: prompt})

	raw, err := s.chat.GenerateContent(ctx, gemini.GenerateRequest{Parts: parts})
	if err != nil {
		return Response{}, classifyInferenceError(err)
	}

	result, salvaged := reconcile(raw)
	if salvaged {
		s.logger.Warn("model response required salvage", "rawLength", len(raw))
	}

	res := Response{
		InferenceResult: result,
		Salvaged:        salvaged,
		Environmental:   envSummary,
		Voice:           voiceResult,
		Location: Location{
			Latitude:    roundCoord(input.lat),
			Longitude:   roundCoord(input.lon),
			DisplayName: displayName,
		},
		Timestamp: s.now().UTC().Format(time.RFC3339),
	}

	s.record(ctx, req, res)
	return res, nil
}

type validatedInput struct {
	imageBase64    string
	imageMediaType string
	lat            float64
	lon            float64
	voiceBase64    string
	voiceAudio     []byte
	voiceMediaType string
	allergyHistory string
}

func (s *service) validate(req Request) (validatedInput, error) {
	image := stripDataURL(req.ImageBase64)
	if image == "" {
		return validatedInput{}, apperrors.Wrap("invalid_input", "imageBase64 is required", nil)
	}

	if req.Latitude == nil || req.Longitude == nil {
		return validatedInput{}, apperrors.Wrap("invalid_input", "latitude and longitude are required", nil)
	}
	lat, lon := *req.Latitude, *req.Longitude
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return validatedInput{}, apperrors.Wrap("invalid_input", "latitude and longitude must be finite numbers", nil)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return validatedInput{}, apperrors.Wrap("invalid_input", "latitude or longitude out of range", nil)
	}

	input := validatedInput{
		imageBase64:    image,
		imageMediaType: strings.TrimSpace(req.ImageMediaType),
		lat:            lat,
		lon:            lon,
		voiceMediaType: strings.TrimSpace(req.VoiceMediaType),
	}
	if input.imageMediaType == "" {
		input.imageMediaType = "image/jpeg"
	}
	if input.voiceMediaType == "" {
		input.voiceMediaType = "audio/m4a"
	}

	history := strings.TrimSpace(req.AllergyHistory)
	if len(history) > s.cfg.MaxAllergyHistoryLen {
		history = history[:s.cfg.MaxAllergyHistoryLen]
	}
	input.allergyHistory = history

	if voiceB64 := stripDataURL(req.VoiceBase64); voiceB64 != "" {
		if len(voiceB64) > s.cfg.MaxVoiceBase64Len {
			voiceB64 = voiceB64[:s.cfg.MaxVoiceBase64Len]
			voiceB64 = voiceB64[:len(voiceB64)-len(voiceB64)%4]
		}
		input.voiceBase64 = voiceB64
		audio, err := base64.StdEncoding.DecodeString(voiceB64)
		if err != nil {
			s.logger.Warn("voice sample is not valid base64, skipping feature extraction", "error", err)
		} else {
			input.voiceAudio = audio
		}
	}

	return input, nil
}

func (s *service) analyzeVoice(ctx context.Context, audio []byte, mediaType string) *voice.Analysis {
	analysis, err := s.voiceClient.Analyze(ctx, audio, mediaType)
	if err != nil {
		s.logger.Warn("voice analysis failed", "error", err)
		return &voice.Analysis{Error: "voice analysis failed", Details: err.Error()}
	}
	if analysis != nil && analysis.Failed() {
		s.logger.Warn("voice analysis degraded", "reason", analysis.Error)
	}
	return analysis
}

func (s *service) record(ctx context.Context, req Request, res Response) {
	if s.recorder == nil {
		return
	}
	rec := Record{
		ID:             uuid.NewString(),
		UserID:         strings.TrimSpace(req.UserID),
		AllergyHistory: strings.TrimSpace(req.AllergyHistory),
		Response:       res,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.recorder.Save(ctx, rec); err != nil {
		s.logger.Warn("failed to record assessment", "error", err, "recordId", rec.ID)
	}
}

func classifyInferenceError(err error) error {
	switch {
	case gemini.IsRateLimited(err):
		return apperrors.Wrap("rate_limited", "the analysis service is busy, please try again shortly", err)
	case gemini.IsTimedOut(err):
		return apperrors.Wrap("timeout", "analysis timed out, try a shorter recording or try again", err)
	default:
		return apperrors.Wrap("inference_error", "model request failed", err)
	}
}

func roundCoord(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
