// Package corehub is the public entry point for the SDK core: an
// in-process event hub, shared-state registry, rules engine, and
// persistent hit queue, wired together behind a single Runtime. Most
// callers only need this package; internal/* is the implementation.
//
// Mirrors the teacher's top-level facade (beads.go): a thin re-export of
// internal types plus one constructor, holding no state of its own beyond
// what Runtime accumulates.
package corehub

import (
	"log/slog"
	"sync"

	"github.com/corehub/sdk/internal/config"
	"github.com/corehub/sdk/internal/extension"
	"github.com/corehub/sdk/internal/hitqueue"
	"github.com/corehub/sdk/internal/hub"
	"github.com/corehub/sdk/internal/rules"
	"github.com/corehub/sdk/internal/sharedstate"
	"github.com/corehub/sdk/internal/telemetry"
	"github.com/corehub/sdk/internal/types"
)

// Re-exported core types, so extension authors never need to import
// internal/* directly.
type (
	Event               = types.Event
	EventType            = types.EventType
	EventSource          = types.EventSource
	Value                = types.Value
	Map                  = types.Map
	Extension            = extension.Extension
	ExtensionFactory     = extension.Factory
	Runtime              = extension.Runtime
	HandlerFunc          = extension.HandlerFunc
	ResponseHandlerFunc  = extension.ResponseHandlerFunc
	SharedStateNamespace = sharedstate.Namespace
	SharedStateBarrier   = sharedstate.Barrier
	SharedStateResult    = sharedstate.Result
	Hit                  = hitqueue.Hit
	HitProcessor         = hitqueue.Processor
	PrivacyStatus        = hitqueue.PrivacyStatus
	RuleDocument         = rules.Document
)

// Re-exported constants.
const (
	EventTypeConfiguration = types.EventTypeConfiguration
	EventTypeRulesEngine   = types.EventTypeRulesEngine
	EventTypeLifecycle     = types.EventTypeLifecycle
	EventTypeHub           = types.EventTypeHub

	EventSourceRequestContent  = types.EventSourceRequestContent
	EventSourceResponseContent = types.EventSourceResponseContent

	NamespaceStandard = sharedstate.NamespaceStandard
	NamespaceXDM      = sharedstate.NamespaceXDM

	BarrierAny    = sharedstate.BarrierAny
	BarrierStrict = sharedstate.BarrierStrict

	PrivacyUnknown = hitqueue.PrivacyUnknown
	PrivacyOptedIn = hitqueue.PrivacyOptedIn
	PrivacyOptedOut = hitqueue.PrivacyOptedOut
)

// NewEvent constructs an Event, re-exported so hosts never import
// internal/types directly.
func NewEvent(name string, typ EventType, source EventSource, data Map) *Event {
	return types.NewEvent(name, typ, source, data)
}

// SDKCore is the fully wired Runtime: an Event Hub with the rules engine
// installed as its preprocessor, plus every hit queue created through it
// kept in sync with the hub-wide privacy status.
type SDKCore struct {
	hub    *hub.Hub
	engine *rules.Engine
	log    *slog.Logger
	cfg    config.Config

	mu        sync.Mutex
	hitQueues []*hitqueue.HitQueue
	privacy   hitqueue.PrivacyStatus
}

// Option configures an SDKCore at construction.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	telemetry *telemetry.Hub
	cfg       *config.Config
}

// WithLogger overrides the default slog.Default() logger used by the hub.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithTelemetry attaches OpenTelemetry-backed dispatch spans/metrics.
func WithTelemetry(t *telemetry.Hub) Option { return func(o *options) { o.telemetry = t } }

// WithConfig overrides the default (env/file-resolved) configuration.
func WithConfig(c config.Config) Option { return func(o *options) { o.cfg = &c } }

// New constructs a ready-to-start SDKCore: an Event Hub with its rules
// engine preprocessor installed, and shared configuration resolved from
// the environment unless overridden via WithConfig.
func New(opts ...Option) (*SDKCore, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.cfg == nil {
		cfg, err := config.Load("")
		if err != nil {
			return nil, err
		}
		o.cfg = &cfg
	}

	var hubOpts []hub.Option
	hubOpts = append(hubOpts, hub.WithLogger(o.logger))
	if o.telemetry != nil {
		hubOpts = append(hubOpts, hub.WithTelemetry(o.telemetry))
	}
	h := hub.New(hubOpts...)

	engine := rules.New("corehub.rulesengine", h)
	h.RegisterPreProcessor(engine)

	status, err := parsePrivacyStatus(o.cfg.DefaultPrivacyStatus)
	if err != nil {
		return nil, err
	}

	core := &SDKCore{hub: h, engine: engine, log: o.logger, cfg: *o.cfg, privacy: status}
	h.RegisterPreProcessor(privacyWatcher{core: core})
	return core, nil
}

func parsePrivacyStatus(s string) (hitqueue.PrivacyStatus, error) {
	switch s {
	case "optedIn":
		return hitqueue.PrivacyOptedIn, nil
	case "optedOut":
		return hitqueue.PrivacyOptedOut, nil
	case "", "optUnknown":
		return hitqueue.PrivacyUnknown, nil
	default:
		return hitqueue.PrivacyUnknown, nil
	}
}

// Start begins event delivery.
func (c *SDKCore) Start() { c.hub.Start() }

// Close tears the hub and every hit queue registered through
// NewHitQueue down.
func (c *SDKCore) Close() {
	c.hub.Close()
	c.mu.Lock()
	queues := append([]*hitqueue.HitQueue(nil), c.hitQueues...)
	c.mu.Unlock()
	for _, q := range queues {
		q.Close()
	}
}

// Dispatch enqueues event for delivery.
func (c *SDKCore) Dispatch(event *Event) { c.hub.Dispatch(event) }

// RegisterExtension instantiates and registers an extension, returning a
// channel that receives the registration's outcome.
func (c *SDKCore) RegisterExtension(factory ExtensionFactory) (<-chan error, error) {
	return c.hub.RegisterExtension(factory)
}

// UnregisterExtension tears an extension down.
func (c *SDKCore) UnregisterExtension(name string) (<-chan error, error) {
	return c.hub.UnregisterExtension(name)
}

// ReplaceRules swaps the rules engine's active rule set.
func (c *SDKCore) ReplaceRules(doc *RuleDocument) {
	c.engine.ReplaceRules(doc.Rules)
}

// ParseRules decodes a rule document (spec §6's JSON shape).
func ParseRules(data []byte) (*RuleDocument, error) {
	return rules.Parse(data)
}

// NewHitQueue wires a HitQueue over a durable queue at path, applying the
// configured batch limit and this core's current privacy
// status, and registers it to receive future privacy status changes.
func (c *SDKCore) NewHitQueue(path string, processor HitProcessor) (*hitqueue.HitQueue, error) {
	q, err := newFileHitQueue(path, processor, c.cfg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.hitQueues = append(c.hitQueues, q)
	status := c.privacy
	c.mu.Unlock()

	q.HandlePrivacyChange(status)
	return q, nil
}

// privacyWatcher is a hub.PreProcessor that reacts to configuration events
// carrying global.privacy and fans the resulting status out to every hit
// queue created through this core (spec §6 privacy vocabulary).
type privacyWatcher struct {
	core *SDKCore
}

func (p privacyWatcher) Process(event *types.Event, _ hub.Access) {
	if event.Type != types.EventTypeConfiguration || event.Source != types.EventSourceRequestContent {
		return
	}
	raw, ok := event.Data()["global.privacy"].AsString()
	if !ok {
		return
	}
	status, err := parsePrivacyStatus(raw)
	if err != nil {
		return
	}

	p.core.mu.Lock()
	p.core.privacy = status
	queues := append([]*hitqueue.HitQueue(nil), p.core.hitQueues...)
	p.core.mu.Unlock()

	for _, q := range queues {
		q.HandlePrivacyChange(status)
	}
}
