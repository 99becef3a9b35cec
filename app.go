package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/assistant"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/classifier"
	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/dispatch"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/knowledge"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/llm"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/observe"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/prompt"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/search"
	sessionx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/session"
	toolx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/tool"
	configx "github.com/tanpawarit/Chative-Apple-Support-Agent/pkg/config"
	logx "github.com/tanpawarit/Chative-Apple-Support-Agent/pkg/logger"
	openrouterx "github.com/tanpawarit/Chative-Apple-Support-Agent/pkg/openrouter"
	qstashx "github.com/tanpawarit/Chative-Apple-Support-Agent/pkg/qstash"
	tavilyx "github.com/tanpawarit/Chative-Apple-Support-Agent/pkg/tavily"
)

const (
	backendRules    = "rules"
	backendLLM      = "llm"
	sessionsMemory  = "memory"
	sessionsUpstash = "upstash"
	sessionsNone    = "none"
)

type AppConfig struct {
	ClassifierBackend  string        `split_words:"true" default:"rules"`
	KnowledgeFile      string        `split_words:"true"`
	HistoryWindow      int           `split_words:"true" default:"10"`
	SessionBackend     string        `split_words:"true" default:"memory"`
	SessionTTL         time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	SessionMaxMessages int           `split_words:"true" default:"50"`
	SearchAttempts     int           `split_words:"true" default:"2"`
	SearchTimeout      time.Duration `split_words:"true" default:"10s"`
	SearchBackoff      time.Duration `split_words:"true" default:"250ms"`
	EventBuffer        int           `split_words:"true" default:"256"`
	EventTimeout       time.Duration `split_words:"true" default:"5s"`
}

// app owns every process-wide dependency. Close releases them in reverse
// construction order.
type app struct {
	cfg       AppConfig
	assistant *assistant.Assistant
	sessions  sessionx.Store
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func buildApp(ctx context.Context) (_ *app, err error) {
	cfg, err := configx.New[AppConfig]("APP")
	if err != nil {
		return nil, err
	}

	a := &app{cfg: *cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	kb, err := knowledge.Load(cfg.KnowledgeFile)
	if err != nil {
		return nil, err
	}

	searchers, err := buildSearchers(*cfg, kb)
	if err != nil {
		return nil, err
	}

	reg, err := toolx.BuildRegistry(kb, searchers)
	if err != nil {
		return nil, err
	}
	log.Info().Strs("tools", toolx.Names(reg.List())).Msg("tool registry ready")

	recorder, err := a.buildRecorder(ctx, *cfg)
	if err != nil {
		return nil, err
	}

	dispatchCfg, err := configx.New[dispatch.Config]("APP_DISPATCH")
	if err != nil {
		return nil, err
	}
	dispatcher, err := dispatch.New(reg, recorder, *dispatchCfg)
	if err != nil {
		return nil, err
	}

	clf, err := buildClassifier(ctx, *cfg, kb, reg)
	if err != nil {
		return nil, err
	}

	a.sessions, err = buildSessionStore(*cfg)
	if err != nil {
		return nil, err
	}

	a.assistant, err = assistant.New(clf, dispatcher, reg, assistant.Config{HistoryWindow: cfg.HistoryWindow})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func buildSearchers(cfg AppConfig, kb knowledge.Base) (toolx.Searchers, error) {
	tavilyCfg, err := configx.New[tavilyx.Config]("TAVILY")
	if err != nil {
		return toolx.Searchers{}, err
	}
	if !tavilyCfg.Enabled() {
		log.Warn().Msg("TAVILY_API_KEY not set, support and product tools answer from static data only")
		return toolx.Searchers{}, nil
	}

	client, err := tavilyx.NewClient(*tavilyCfg)
	if err != nil {
		return toolx.Searchers{}, err
	}

	retry := search.RetryConfig{
		Attempts: cfg.SearchAttempts,
		Timeout:  cfg.SearchTimeout,
		Backoff:  cfg.SearchBackoff,
	}
	return toolx.Searchers{
		Support: search.WithRetry(search.Tavily(client, kb.Support.Domains), retry),
		Product: search.WithRetry(search.Tavily(client, kb.Product.Domains), retry),
	}, nil
}

func (a *app) buildRecorder(ctx context.Context, cfg AppConfig) (observe.Recorder, error) {
	recorders := []observe.Recorder{observe.NewLogRecorder(logx.Component("dispatch"))}

	qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, err
	}
	if qstashCfg.Enabled() {
		client, err := qstashx.NewClient(*qstashCfg)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, observe.NewQStashRecorder(client))
		log.Info().Str("destination", qstashCfg.Destination).Msg("publishing dispatch events to qstash")
	}

	pgCfg, err := configx.New[observe.PostgresConfig]("EVENTS_DB")
	if err != nil {
		return nil, err
	}
	if pgCfg.Enabled() {
		pg, err := observe.NewPostgresRecorder(*pgCfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := pg.Close(); err != nil {
				log.Warn().Err(err).Msg("close events db")
			}
		})
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		recorders = append(recorders, pg)
		log.Info().Msg("storing dispatch events in postgres")
	}

	async := observe.NewAsync(observe.Multi(recorders...), cfg.EventBuffer, cfg.EventTimeout)
	a.closers = append(a.closers, func() {
		async.Close()
		if n := async.Dropped(); n > 0 {
			log.Warn().Int64("dropped", n).Msg("dispatch events dropped")
		}
	})
	return async, nil
}

func buildClassifier(ctx context.Context, cfg AppConfig, kb knowledge.Base, reg *toolx.Registry) (contractx.Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.ClassifierBackend)) {
	case backendRules, "":
		return classifier.NewRuleClassifier(
			classifier.Routes{Support: toolx.NameSupport, Product: toolx.NameProduct, Fallback: reg.FallbackName()},
			classifier.Markers{Competitors: kb.Markers.Competitors, Support: kb.Markers.Support, Product: kb.Markers.Product},
		), nil

	case backendLLM:
		llmCfg, err := configx.New[llm.Config]("OPENROUTER")
		if err != nil {
			return nil, err
		}
		if err := llmCfg.Validate(); err != nil {
			return nil, err
		}

		orCfg := llmCfg.OpenRouter()
		if llmCfg.ProbeOnStart {
			if err := openrouterx.Probe(ctx, openrouterx.NewClient(orCfg), orCfg.Model); err != nil {
				return nil, err
			}
		}

		chatModel, err := orCfg.New(ctx)
		if err != nil {
			return nil, err
		}
		inner, err := classifier.NewLLMClassifier(ctx, chatModel, prompt.LoadPromptSet().Classifier, reg.FallbackName(), reg.List())
		if err != nil {
			return nil, err
		}
		log.Info().Str("model", orCfg.Model).Msg("using model classifier")
		return classifier.Guard(kb.Markers.Competitors, reg.FallbackName(), inner), nil

	default:
		return nil, fmt.Errorf("%w: unknown classifier backend %q", contractx.ErrValidation, cfg.ClassifierBackend)
	}
}

func buildSessionStore(cfg AppConfig) (sessionx.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.SessionBackend)) {
	case sessionsMemory, "":
		return sessionx.NewMemoryStore(), nil

	case sessionsUpstash:
		redisCfg, err := configx.New[sessionx.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, err
		}
		if !redisCfg.Enabled() {
			return nil, fmt.Errorf("%w: UPSTASH_REDIS_URL and UPSTASH_REDIS_TOKEN are required", contractx.ErrValidation)
		}
		return sessionx.NewUpstashRedisStore(*redisCfg, sessionx.WithMaxMessages(cfg.SessionMaxMessages))

	case sessionsNone:
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: unknown session backend %q", contractx.ErrValidation, cfg.SessionBackend)
	}
}

// sweepSessions expires idle in-memory sessions until ctx is done.
func sweepSessions(ctx context.Context, store *sessionx.MemoryStore, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Cleanup(ttl); n > 0 {
				log.Debug().Int("removed", n).Msg("expired sessions")
			}
		}
	}
}
