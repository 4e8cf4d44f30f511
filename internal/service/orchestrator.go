package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pulseline-ai/agent-backend/internal/breaker"
	"github.com/pulseline-ai/agent-backend/internal/character"
	"github.com/pulseline-ai/agent-backend/internal/domain"
	"github.com/pulseline-ai/agent-backend/internal/model"
	"github.com/pulseline-ai/agent-backend/internal/ratelimit"
)

const (
	// DefaultMaxResponseTime bounds one whole request.
	DefaultMaxResponseTime = 45 * time.Second
	// budgetFloor is the minimum remaining budget a stage needs; below it
	// the pipeline short-circuits to the timeout fallback.
	budgetFloor = 2 * time.Second
	// defaultRAGBudget bounds the retrieval stage.
	defaultRAGBudget = 10 * time.Second
	// breakerDecayEvery is how many handled requests pass between
	// opportunistic breaker failure-count decays.
	breakerDecayEvery = 10
	// webResultCount is how many snippets a web search stage requests.
	webResultCount = 3
)

// SessionMemory is the conversation window the orchestrator reads before
// retrieval and writes twice per successful turn.
type SessionMemory interface {
	Append(ctx context.Context, userKey int64, role model.Role, content string) error
	ContextFor(ctx context.Context, userKey int64, maxTurns int) (string, error)
}

// Fallbacks are the fixed user-visible strings for each failure mode,
// configured at init.
type Fallbacks struct {
	EmptyMessage string
	LLMFailure   string
	CircuitOpen  string
	Timeout      string
	Ultimate     string
}

// DefaultFallbacks returns the stock fallback wording.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		EmptyMessage: "I didn't receive a valid message. Please try asking me something!",
		LLMFailure:   "I apologize, but I encountered an issue processing your request. Please try again.",
		CircuitOpen:  "I'm currently experiencing technical difficulties. Please try again in a few minutes.",
		Timeout:      "I apologize, but I'm taking too long to process your request. Please try again.",
		Ultimate:     "I apologize, but I'm having trouble generating a response right now. Please try again.",
	}
}

// PipelineObserver receives stage latencies and outcome methods. A nil
// observer disables instrumentation.
type PipelineObserver interface {
	StageCompleted(stage string, latency time.Duration)
	MethodReturned(method model.Method)
}

// Orchestrator drives the hybrid response pipeline under a hard total
// deadline and never fails to return a Response for an admitted query.
type Orchestrator struct {
	limiter    *ratelimit.Limiter
	memory     SessionMemory
	classifier *domain.Classifier
	contexts   *domain.ContextStore
	retriever  *RetrieverService
	web        *WebSearchService
	prompts    *PromptBuilder
	llm        *LLMService
	breakers   *breaker.Registry
	persona    *character.Card
	fallbacks  Fallbacks
	observer   PipelineObserver

	maxResponseTime time.Duration
	nowFunc         func() time.Time
	handled         atomic.Int64
}

// OrchestratorDeps wires an Orchestrator.
type OrchestratorDeps struct {
	Limiter         *ratelimit.Limiter
	Memory          SessionMemory
	Classifier      *domain.Classifier
	Contexts        *domain.ContextStore
	Retriever       *RetrieverService
	Web             *WebSearchService
	Prompts         *PromptBuilder
	LLM             *LLMService
	Breakers        *breaker.Registry
	Persona         *character.Card
	Fallbacks       *Fallbacks
	Observer        PipelineObserver
	MaxResponseTime time.Duration
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	fb := DefaultFallbacks()
	if deps.Fallbacks != nil {
		fb = *deps.Fallbacks
	}
	maxRT := deps.MaxResponseTime
	if maxRT <= 0 {
		maxRT = DefaultMaxResponseTime
	}
	persona := deps.Persona
	if persona == nil {
		persona = character.Default()
	}
	return &Orchestrator{
		limiter:         deps.Limiter,
		memory:          deps.Memory,
		classifier:      deps.Classifier,
		contexts:        deps.Contexts,
		retriever:       deps.Retriever,
		web:             deps.Web,
		prompts:         deps.Prompts,
		llm:             deps.LLM,
		breakers:        deps.Breakers,
		persona:         persona,
		fallbacks:       fb,
		observer:        deps.Observer,
		maxResponseTime: maxRT,
		nowFunc:         time.Now,
	}
}

// budget tracks the request's remaining time.
type budget struct {
	deadline time.Time
	now      func() time.Time
}

func (b budget) remaining() time.Duration {
	return b.deadline.Sub(b.now())
}

// stage returns the stage's slice of the remaining budget, or false when the
// budget has fallen below the floor.
func (b budget) stage(def time.Duration) (time.Duration, bool) {
	rem := b.remaining()
	if rem < budgetFloor {
		return 0, false
	}
	if def < rem {
		return def, true
	}
	return rem, true
}

// Handle runs the full pipeline for one query. It returns nil only when the
// rate limiter silently drops the message; every admitted query yields
// exactly one Response, whatever fails inside.
func (o *Orchestrator) Handle(ctx context.Context, q model.Query) (resp *model.Response) {
	// Admission.
	if q.Text == "" {
		return &model.Response{
			Content:   o.fallbacks.EmptyMessage,
			PrefixTag: model.PrefixWarning,
			Method:    model.MethodErrorFallback,
			Error:     "empty message",
		}
	}
	if !o.limiter.Admit(q.UserKey, q.ReceivedAt) {
		slog.Info("rate limit hit, dropping message", "request_id", q.ID, "user_key", q.UserKey)
		return nil
	}

	// Totality: even a panicking component yields a Response.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in pipeline", "request_id", q.ID, "panic", r)
			resp = &model.Response{
				Content:   o.fallbacks.Ultimate,
				PrefixTag: model.PrefixWarning,
				Method:    model.MethodUltimateFallback,
				Error:     "internal error",
			}
		}
		if resp != nil && o.observer != nil {
			o.observer.MethodReturned(resp.Method)
		}
	}()

	start := o.nowFunc()
	b := budget{deadline: start.Add(o.maxResponseTime), now: o.nowFunc}
	ctx, cancel := context.WithDeadline(ctx, b.deadline)
	defer cancel()

	if o.handled.Add(1)%breakerDecayEvery == 0 {
		o.breakers.Decay()
	}

	resp = o.run(ctx, q, b)

	slog.Info("pipeline complete",
		"request_id", q.ID,
		"user_key", q.UserKey,
		"method", resp.Method,
		"timed_out", resp.TimedOut,
		"latency_ms", o.nowFunc().Sub(start).Milliseconds(),
		"breaker_states", o.breakers.Snapshot(),
	)
	return resp
}

func (o *Orchestrator) run(ctx context.Context, q model.Query, b budget) *model.Response {
	resp := &model.Response{
		Content:   "",
		PrefixTag: model.PrefixBasic,
		Method:    model.MethodBasicLLM,
		Sources:   []string{"General Knowledge"},
	}

	// Stage: conversation context load + user-turn write.
	convoCtx := o.loadContext(ctx, q)
	if err := o.memory.Append(ctx, q.UserKey, model.RoleUser, q.Text); err != nil {
		slog.Warn("failed to store user turn", "request_id", q.ID, "error", err)
	}

	// Stage: domain classification (pure; update committed here).
	searchQuery, _ := EnhanceContextualQuery(q.Text, convoCtx, o.allKeywords())
	verdict, update := o.classifier.Classify(searchQuery, q.UserKey, o.contexts.Current(q.UserKey))
	if update != nil {
		o.contexts.Commit(update.UserKey, update.Domain)
	}
	slog.Info("domain classified",
		"request_id", q.ID,
		"domain", verdict.Primary,
		"reason", verdict.Reason,
		"confidence", verdict.Confidence,
	)

	// Stage: retrieval.
	chunks, ok := o.retrieve(ctx, q, b, searchQuery, verdict, resp)
	if !ok {
		return o.timeoutFallback(resp)
	}

	// Stage: sufficiency assessment (pure).
	ragAssessment := model.ValidateAssessment(AssessSufficiency(q.Text, chunks))
	slog.Info("rag assessed",
		"request_id", q.ID,
		"reason", ragAssessment.Reason,
		"confidence", ragAssessment.Confidence,
		"recommendation", ragAssessment.Recommendation,
	)

	// Small talk with no domain and no evidence goes straight to the LLM:
	// web search and clarification redirects add nothing to "hi".
	smallTalk := len(chunks) == 0 && verdict.Primary == "" && IsSmallTalk(q.Text)

	// Stage: conditional web search.
	var webResults []model.WebResult
	var webAssessment *model.Assessment
	if !smallTalk {
		var ok bool
		webResults, webAssessment, ok = o.searchWeb(ctx, q, b, searchQuery, ragAssessment, resp)
		if !ok {
			return o.timeoutFallback(resp)
		}
	}

	// Clarification check: both evidence sources too poor to answer from.
	clarify := !smallTalk && o.shouldClarify(chunks, webResults, ragAssessment, webAssessment)
	if clarify {
		resp.Method = model.MethodSmartClarification
		resp.PrefixTag = model.PrefixClarification
		resp.Sources = []string{"Smart Redirect (" + string(ClassifyQueryType(q.Text)) + ")"}
	}

	// Stage: prompt assembly (pure).
	prompt := o.prompts.Build(PromptInput{
		Query:               q.Text,
		Now:                 o.nowFunc(),
		ConversationContext: convoCtx,
		Verdict:             verdict,
		Chunks:              chunks,
		WebResults:          webResults,
		RAGAssessment:       ragAssessmentIfHybrid(ragAssessment, webResults),
		WebAssessment:       webAssessment,
		Clarify:             clarify,
		QueryType:           ClassifyQueryType(q.Text),
	})

	// Stage: LLM generation.
	if !o.generate(ctx, q, b, prompt, resp) {
		return resp
	}

	// Post-process: paragraphs, then web citations when real URLs contributed.
	resp.Content = FormatParagraphs(resp.Content)
	if len(webResults) > 0 && !clarify {
		resp.Content = AppendWebCitations(resp.Content, webResults)
	}

	// Assistant-turn write, only after non-empty content.
	if resp.Content != "" {
		if err := o.memory.Append(ctx, q.UserKey, model.RoleAssistant, resp.Content); err != nil {
			slog.Warn("failed to store assistant turn", "request_id", q.ID, "error", err)
		}
	}
	return resp
}

func (o *Orchestrator) loadContext(ctx context.Context, q model.Query) string {
	start := o.nowFunc()
	convoCtx, err := o.memory.ContextFor(ctx, q.UserKey, 10)
	if err != nil {
		slog.Warn("failed to load conversation context", "request_id", q.ID, "error", err)
		return ""
	}
	o.observeStage("memory_read", start)
	return convoCtx
}

// retrieve runs domain-aware retrieval within the stage budget. ok=false
// means the total budget is exhausted.
func (o *Orchestrator) retrieve(ctx context.Context, q model.Query, b budget, searchQuery string, verdict model.DomainVerdict, resp *model.Response) ([]model.Chunk, bool) {
	stageBudget, ok := b.stage(defaultRAGBudget)
	if !ok {
		return nil, false
	}
	stageCtx, cancel := context.WithTimeout(ctx, stageBudget)
	defer cancel()

	start := o.nowFunc()
	var chunks []model.Chunk
	switch {
	case verdict.Primary != "" && verdict.IsMultiDomain:
		keys := append([]string{verdict.Primary}, verdict.Secondary...)
		chunks = o.retriever.RetrieveMulti(stageCtx, searchQuery, keys, DefaultTopK)
		if len(chunks) > 0 {
			resp.Method = model.MethodMultiDomainRAG
			resp.PrefixTag = model.PrefixMultiDomain
			resp.Sources = []string{"Domain: " + o.domainName(verdict.Primary)}
		}
	case verdict.Primary != "":
		chunks = o.retriever.Retrieve(stageCtx, searchQuery, verdict.Primary, DefaultTopK)
		if len(chunks) > 0 {
			resp.Method = model.MethodMultiDomainRAG
			resp.PrefixTag = o.domainPrefix(verdict.Primary)
			resp.Sources = []string{"Domain: " + o.domainName(verdict.Primary)}
		}
	}
	// Unfiltered fallback when the domain path found nothing.
	if len(chunks) == 0 {
		chunks = o.retriever.Retrieve(stageCtx, searchQuery, "", DefaultTopK)
		if len(chunks) > 0 {
			resp.Method = model.MethodStandardRAG
			resp.PrefixTag = model.PrefixRAG
			resp.Sources = []string{"Knowledge Base"}
		}
	}
	o.observeStage("rag_search", start)

	if HasOverrides(chunks) {
		resp.PrefixTag = model.PrefixOverride
		resp.Sources = append(resp.Sources, "Overrides")
	}
	return chunks, true
}

// searchWeb runs the conditional web stage. ok=false means the total budget
// is exhausted.
func (o *Orchestrator) searchWeb(ctx context.Context, q model.Query, b budget, searchQuery string, ragAssessment model.Assessment, resp *model.Response) ([]model.WebResult, *model.Assessment, bool) {
	if ragAssessment.Recommendation != model.RecommendWebSearch &&
		ragAssessment.Recommendation != model.RecommendRAGWithWeb {
		slog.Info("skipping web search", "request_id", q.ID, "reason", ragAssessment.Reason)
		return nil, nil, true
	}

	stageBudget, ok := b.stage(DefaultWebSearchTimeout)
	if !ok {
		return nil, nil, false
	}
	stageCtx, cancel := context.WithTimeout(ctx, stageBudget)
	defer cancel()

	start := o.nowFunc()
	results := o.web.Search(stageCtx, searchQuery, webResultCount)
	o.observeStage("web_search", start)

	if b.remaining() < budgetFloor {
		return nil, nil, false
	}

	assessment := model.ValidateAssessment(AssessWebConfidence(results, q.Text))
	slog.Info("web assessed",
		"request_id", q.ID,
		"results", len(results),
		"reason", assessment.Reason,
		"confidence", assessment.Confidence,
	)

	hadRAG := resp.Method != model.MethodBasicLLM
	if len(results) > 0 {
		switch assessment.Recommendation {
		case model.RecommendUseWeb:
			if hadRAG {
				resp.Method = model.MethodHybridRAGWeb
				resp.PrefixTag += model.PrefixWeb
			} else {
				resp.Method = model.MethodWebOnly
				resp.PrefixTag = model.PrefixWeb
			}
			resp.Sources = append(resp.Sources, "Web Search")
		default:
			if hadRAG {
				resp.Method = model.MethodHybridRAGWebCautious
				resp.PrefixTag += model.PrefixWebCautious
			} else {
				resp.Method = model.MethodWebOnlyCautious
				resp.PrefixTag = model.PrefixWebCautious
			}
			resp.Sources = append(resp.Sources, "Web Search (Low Confidence)")
		}
	}
	return results, &assessment, true
}

// generate runs the LLM stage, converting failures into fallback responses.
// Returns false when resp is already final (fallback filled in).
func (o *Orchestrator) generate(ctx context.Context, q model.Query, b budget, prompt string, resp *model.Response) bool {
	if !o.breakers.Allow(breaker.ServiceLLM) {
		slog.Warn("llm circuit breaker open", "request_id", q.ID)
		resp.Content = o.fallbacks.CircuitOpen
		resp.PrefixTag = model.PrefixWarning
		resp.Method = model.MethodCircuitOpenFallback
		resp.Error = "llm circuit breaker open"
		return false
	}

	stageBudget, ok := b.stage(DefaultLLMTimeout)
	if !ok {
		o.timeoutFallback(resp)
		return false
	}
	stageCtx, cancel := context.WithTimeout(ctx, stageBudget)
	defer cancel()

	start := o.nowFunc()
	content, err := o.llm.Generate(stageCtx, o.persona.System, prompt, ParamsForQuery(q.Text, q.VoiceMode))
	o.observeStage("llm", start)

	if err != nil {
		if ctx.Err() != nil || b.remaining() < 0 {
			o.timeoutFallback(resp)
			return false
		}
		slog.Error("llm generation failed", "request_id", q.ID, "error", err)
		resp.Content = o.fallbacks.LLMFailure
		resp.PrefixTag = model.PrefixWarning
		resp.Error = "llm error: " + err.Error()
		return false
	}
	resp.Content = content
	return true
}

func (o *Orchestrator) timeoutFallback(resp *model.Response) *model.Response {
	resp.Content = o.fallbacks.Timeout
	resp.PrefixTag = model.PrefixWarning
	resp.Method = model.MethodTimeoutFallback
	resp.TimedOut = true
	resp.Error = "deadline exceeded"
	return resp
}

func (o *Orchestrator) shouldClarify(chunks []model.Chunk, webResults []model.WebResult, rag model.Assessment, web *model.Assessment) bool {
	if len(chunks) == 0 && len(webResults) == 0 {
		return true
	}
	if web == nil {
		return false
	}
	if rag.Recommendation == model.RecommendWebSearch && web.Recommendation == model.RecommendAskClarification {
		return true
	}
	return rag.Confidence < 0.3 && web.Confidence < 0.3
}

// ragAssessmentIfHybrid passes the RAG assessment into the prompt only when
// web evidence is also present, matching the enhanced hybrid surface.
func ragAssessmentIfHybrid(rag model.Assessment, webResults []model.WebResult) *model.Assessment {
	if len(webResults) == 0 {
		return nil
	}
	return &rag
}

func (o *Orchestrator) allKeywords() []string {
	var kws []string
	for _, d := range o.classifier.Table().Domains {
		kws = append(kws, d.Keywords...)
	}
	return kws
}

func (o *Orchestrator) domainName(key string) string {
	if d := o.classifier.Table().ByKey(key); d != nil {
		return d.Name
	}
	return key
}

func (o *Orchestrator) domainPrefix(key string) string {
	if d := o.classifier.Table().ByKey(key); d != nil && d.Prefix != "" {
		return d.Prefix
	}
	return model.PrefixRAG
}

func (o *Orchestrator) observeStage(stage string, start time.Time) {
	if o.observer != nil {
		o.observer.StageCompleted(stage, o.nowFunc().Sub(start))
	}
}
