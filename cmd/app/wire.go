//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/wellora/wellcheck/internal/bootstrap"
	"github.com/wellora/wellcheck/internal/domain/analysis"
	"github.com/wellora/wellcheck/internal/infra/config"
	"github.com/wellora/wellcheck/internal/infra/geocode/googlegeo"
	"github.com/wellora/wellcheck/internal/infra/llm/gemini"
	voiceclient "github.com/wellora/wellcheck/internal/infra/voice"
	httpiface "github.com/wellora/wellcheck/internal/interface/http"
	"github.com/wellora/wellcheck/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		provideAnalysisConfig,
		provideGeminiClient,
		providePollenClient,
		provideGeocodeClient,
		provideVoiceClient,
		provideEnvironmentCache,
		provideEnvironmentService,
		provideRecorder,
		analysis.NewService,
		wire.Bind(new(analysis.ChatClient), new(*gemini.Client)),
		wire.Bind(new(analysis.VoiceClient), new(*voiceclient.Client)),
		wire.Bind(new(analysis.Geocoder), new(*googlegeo.Client)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
