// Command server is the OCX Payment Scheme Gateway's entrypoint: it wires
// the Configuration Resolver, Payload Mapping Engine, Fraud Gate, ISO
// 20022 Canonicalizer, Flow Orchestrator, Resilient Dispatcher, and
// Webhook Delivery Engine behind a gorilla/mux ingress router, grounded
// on the teacher's cmd/api/main.go wiring.
package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/ocx/paygate/internal/config"
	"github.com/ocx/paygate/internal/core"
	"github.com/ocx/paygate/internal/database"
	"github.com/ocx/paygate/internal/dispatcher"
	"github.com/ocx/paygate/internal/events"
	"github.com/ocx/paygate/internal/fraud"
	"github.com/ocx/paygate/internal/mapping"
	"github.com/ocx/paygate/internal/middleware"
	"github.com/ocx/paygate/internal/multitenancy"
	"github.com/ocx/paygate/internal/orchestrator"
	"github.com/ocx/paygate/internal/policy"
	"github.com/ocx/paygate/internal/webhooks"
)

func main() {
	cfg := config.Get()
	slog.Info("starting OCX payment scheme gateway", "env", cfg.Server.Env, "port", cfg.GetPort())

	sc, err := database.NewSupabaseClient()
	if err != nil {
		log.Fatalf("supabase client: %v", err)
	}

	configStore := database.NewConfigStore(sc)
	resolver := policy.NewResolver(configStore)

	mappingEngine := mapping.NewEngine(buildSequenceStore(cfg))

	fraudGate := fraud.NewGate(buildFraudClient(cfg))
	fraudConfigCache := database.NewFraudConfigCache(sc)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	if err := fraudConfigCache.Refresh(bgCtx); err != nil {
		slog.Warn("initial fraud config load failed, serving defaults until next refresh", "error", err)
	}
	fraudConfigCache.Start(bgCtx, time.Minute)

	resilienceLookup := database.NewResiliencePolicyLookup(sc)
	dispatchers := dispatcher.NewRegistry(resilienceLookup.Lookup, resilienceDefaults(cfg))

	endpoints := database.NewClearingEndpointStore(sc)

	eventBus := events.NewEventBus()
	auditRecorder := database.NewAuditRecorder(sc)
	webhookEngine := buildWebhookEngine(cfg, sc)

	orchOpts := []orchestrator.Option{
		orchestrator.WithWebhooks(webhookEngine),
		orchestrator.WithAudit(auditRecorder),
		orchestrator.WithEvents(eventBus),
		orchestrator.WithWebhookRetry(cfg.Webhook.MaxAttempts, time.Duration(cfg.Webhook.BaseDelaySeconds)*time.Second),
	}
	if dedup, err := database.NewDedupStore(cfg.Database.Postgres.DSN); err != nil {
		slog.Warn("durable dedup store unavailable, duplicate suppression is in-memory only for this replica", "error", err)
	} else {
		orchOpts = append(orchOpts, orchestrator.WithDedup(dedup))
	}

	orch := orchestrator.New(
		resolver,
		fraudGate,
		fraudConfigCache.Get,
		mappingEngine,
		dispatchers,
		endpoints.Resolve,
		orchOpts...,
	)

	tenantManager := multitenancy.NewTenantManager(sc)
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{})

	router := buildRouter(orch, tenantManager, rateLimiter, eventBus, cfg.ISO20022.MaxPayloadBytes)

	srv := &http.Server{
		Addr:         ":" + cfg.GetPort(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()
	slog.Info("gateway listening", "addr", srv.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	webhookEngine.Shutdown()
}

// buildSequenceStore wires mapping.SequenceStore to Redis when configured,
// so SEQUENTIAL autogeneration counters stay monotonic across replicas;
// falls back to the process-local store otherwise.
func buildSequenceStore(cfg *config.Config) mapping.SequenceStore {
	if cfg.Redis.Addr == "" {
		return mapping.NewInMemorySequenceStore()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	return mapping.NewRedisSequenceStore(rdb)
}

// buildFraudClient prefers a gRPC fraud engine when configured, falling
// back to the HTTP client against the process-wide FRAUD_HTTP_ENDPOINT, or
// Services.ActivityRegistryURL when that is unset.
func buildFraudClient(cfg *config.Config) fraud.Client {
	if cfg.Services.FraudGRPCAddr != "" {
		client, err := fraud.NewGRPCClient(cfg.Services.FraudGRPCAddr, os.Getenv("FRAUD_GRPC_METHOD"))
		if err == nil {
			return client
		}
		slog.Warn("fraud gRPC client unavailable, falling back to HTTP", "error", err)
	}
	endpoint := os.Getenv("FRAUD_HTTP_ENDPOINT")
	if endpoint == "" {
		endpoint = cfg.Services.ActivityRegistryURL
	}
	return fraud.NewHTTPClient(endpoint, 30*time.Second, nil)
}

// resilienceDefaults converts the configured resilience defaults into the
// registry-wide fallback ResiliencePolicy, applied ahead of
// dispatcher.DefaultPolicy's hardcoded values.
func resilienceDefaults(cfg *config.Config) dispatcher.ResiliencePolicy {
	d := cfg.ResilienceDefaults
	return dispatcher.PolicyFromDefaults(dispatcher.ResilienceDefaults{
		RetryMaxAttempts:        d.RetryMaxAttempts,
		RetryBaseWaitMs:         d.RetryBaseWaitMs,
		RetryMaxWaitMs:          d.RetryMaxWaitMs,
		RetryMultiplier:         d.RetryMultiplier,
		BulkheadMaxConcurrent:   d.BulkheadMaxConcurrent,
		BulkheadMaxWaitMs:       d.BulkheadMaxWaitMs,
		TimeLimiterMs:           d.TimeLimiterMs,
		RateLimitPerSecond:      d.RateLimitPerSecond,
		RateLimitBurst:          d.RateLimitBurst,
		CircuitFailureThreshold: d.CircuitFailureThreshold,
		CircuitMinimumCalls:     d.CircuitMinimumCalls,
	})
}

// webhookEngine is satisfied by both *webhooks.Engine and
// *webhooks.CloudEngine: both enqueue deliveries and expose Shutdown for
// a clean drain on process exit.
type webhookEngine interface {
	orchestrator.WebhookEnqueuer
	Shutdown()
}

// buildWebhookEngine prefers Cloud Tasks for webhook delivery when
// configured, with the in-process Engine always constructed underneath
// as both its fallback and, when Cloud Tasks is disabled, the delivery
// path itself.
func buildWebhookEngine(cfg *config.Config, sc *database.SupabaseClient) webhookEngine {
	inProcess := webhooks.NewEngine(sc, cfg.Webhook.WorkerCount)
	if !cfg.CloudTasks.Enabled {
		return inProcess
	}
	cloudEngine, err := webhooks.NewCloudEngine(cfg.CloudTasks.ProjectID, cfg.CloudTasks.LocationID, cfg.CloudTasks.QueueID, cfg.CloudTasks.CallbackURL, inProcess)
	if err != nil {
		slog.Warn("cloud tasks engine unavailable, delivering webhooks in-process only", "error", err)
		return inProcess
	}
	return cloudEngine
}

// buildRouter wires the ingress endpoint behind tenant resolution and
// per-tenant rate limiting, the flow stream behind tenant resolution, and
// an unauthenticated health check.
func buildRouter(orch *orchestrator.Orchestrator, tm *multitenancy.TenantManager, rl *middleware.RateLimiter, bus *events.EventBus, maxPayloadBytes int64) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Handle("/ingress/{kind}", middleware.TenantMiddleware(tm, rl.Middleware(ingressHandler(orch, maxPayloadBytes)).ServeHTTP)).Methods(http.MethodPost)
	api.Handle("/flows/stream", middleware.TenantMiddleware(tm, webhooks.NewStreamHandler(bus).ServeHTTP)).Methods(http.MethodGet)

	return router
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ingressHandler adapts one inbound ISO 20022 payload into an
// orchestrator.IngressRequest and writes back the synchronous Result, or
// a 202 Accepted when the flow was handed off to the Webhook Delivery
// Engine.
func ingressHandler(orch *orchestrator.Orchestrator, maxPayloadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := multitenancy.GetTenantID(r.Context())
		if err != nil {
			http.Error(w, "missing tenant context", http.StatusUnauthorized)
			return
		}

		kind := core.MessageKind(mux.Vars(r)["kind"])
		body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		responseMode := core.ResponseMode(r.Header.Get("X-Response-Mode"))
		if responseMode == "" {
			responseMode = core.ResponseModeSync
		}

		req := orchestrator.IngressRequest{
			TenantID:            tenantID,
			PaymentType:         r.URL.Query().Get("paymentType"),
			LocalInstrumentCode: r.URL.Query().Get("localInstrumentCode"),
			ClearingSystemCode:  r.URL.Query().Get("clearingSystemCode"),
			Kind:                kind,
			ResponseMode:        responseMode,
			Raw:                 body,
			WebhookURL:          r.Header.Get("X-Webhook-URL"),
		}

		result, err := orch.Handle(r.Context(), req)
		writeResult(w, result, err)
	}
}

func writeResult(w http.ResponseWriter, result orchestrator.Result, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Correlation-ID", result.CorrelationID)

	status := http.StatusOK
	switch {
	case result.Webhook != nil:
		status = http.StatusAccepted
	case err != nil || result.Status == core.StatusRJCT:
		status = http.StatusUnprocessableEntity
	case result.Status == core.StatusPDNG:
		status = http.StatusAccepted
	}
	w.WriteHeader(status)

	body := map[string]interface{}{
		"correlationId": result.CorrelationID,
		"status":        result.Status,
		"reason":        result.Reason,
	}
	if result.Message != nil {
		body["message"] = result.Message.WithoutMetadata()
	}
	if result.Webhook != nil {
		body["webhookStatus"] = result.Webhook.Status
	}
	if err != nil {
		body["error"] = err.Error()
	}
	_ = json.NewEncoder(w).Encode(body)
}
