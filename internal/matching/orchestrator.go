package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/sahara/internal/ai"
	"github.com/spigell/sahara/internal/cache"
	"github.com/spigell/sahara/internal/catalog"
	"github.com/spigell/sahara/internal/keyword"
	"github.com/spigell/sahara/internal/logger"
	"github.com/spigell/sahara/internal/metrics"
	"github.com/spigell/sahara/internal/profile"
	"github.com/spigell/sahara/internal/utils"
)

const (
	keywordConfidence      = 0.6
	keywordErrorConfidence = 0.3
	defaultBatchDelay      = time.Second

	keywordModel = "keyword-matcher"

	msgNoMatches      = "No matching benefits found. Try using different keywords or be more specific about your needs."
	msgAIUnavailable  = "AI service temporarily unavailable. Showing basic matches."
	msgKeywordMatches = "Found %d potential benefit programs from your description. Please verify eligibility before applying."
)

// Deps are the collaborators of the orchestrator. AI, Cache and Metrics are optional.
type Deps struct {
	Catalog  *catalog.Catalog
	Keywords *keyword.Matcher
	AI       ai.Matcher
	Cache    cache.Cache
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type Options struct {
	// BatchDelay separates consecutive MatchBatch items.
	BatchDelay time.Duration
	Now        func() time.Time
}

// Stats are cumulative counters since start.
type Stats struct {
	TotalRequests int64   `json:"totalRequests"`
	CacheHits     int64   `json:"cacheHits"`
	CacheMisses   int64   `json:"cacheMisses"`
	HitRate       float64 `json:"hitRate"`
	Fallbacks     int64   `json:"fallbacks"`
	AIErrors      int64   `json:"aiErrors"`
	CacheSize     int     `json:"cacheSize"`
}

// Orchestrator validates requests, consults the cache, picks the AI or keyword
// tier and enriches the result with catalog data.
type Orchestrator struct {
	catalog  *catalog.Catalog
	keywords *keyword.Matcher
	ai       ai.Matcher
	cache    cache.Cache
	metrics  *metrics.Metrics
	logger   *zap.Logger

	batchDelay time.Duration
	now        func() time.Time

	total     atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	fallbacks atomic.Int64
	aiErrors  atomic.Int64
}

func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if deps.Keywords == nil {
		return nil, errors.New("keyword matcher is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = defaultBatchDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Orchestrator{
		catalog:    deps.Catalog,
		keywords:   deps.Keywords,
		ai:         deps.AI,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		batchDelay: opts.BatchDelay,
		now:        opts.Now,
	}, nil
}

// AIEnabled reports whether an AI matcher is configured.
func (o *Orchestrator) AIEnabled() bool { return o.ai != nil }

// AIModel is the model reported in metadata.
func (o *Orchestrator) AIModel() string {
	if o.ai == nil {
		return keywordModel
	}
	return o.ai.Model()
}

// AIProvider is the provider reported by health checks.
func (o *Orchestrator) AIProvider() string {
	if o.ai == nil {
		return "none"
	}
	return o.ai.Provider()
}

// CatalogSize is the number of programs available for matching.
func (o *Orchestrator) CatalogSize() int { return o.catalog.Len() }

// MatchBenefits runs one matching request. The only returned errors are
// INSUFFICIENT_INPUT and PROCESSING_ERROR; AI failures degrade to keyword matching.
func (o *Orchestrator) MatchBenefits(ctx context.Context, req MatchRequest) (*MatchResponse, error) {
	start := o.now()

	transcript := strings.TrimSpace(req.Transcript)
	if utf8.RuneCountInString(transcript) < MinTranscriptRunes {
		o.metrics.ObserveMatch("rejected", "", 0)
		return nil, &Error{Code: CodeInsufficientInput, Message: msgInsufficientInput}
	}

	o.total.Add(1)

	user := req.User()
	language := req.Lang()
	log := o.logger.With(logger.SessionFields(req.SessionID, userID(user))...)

	key := cacheKey(transcript, user)
	if cached, ok := o.lookup(ctx, log, key); ok {
		cached.FromCache = true
		cached.Metadata.Timestamp = o.now().UTC()
		o.metrics.ObserveMatch("success", string(cached.Metadata.Strategy), o.now().Sub(start))
		log.Info("returning cached match result", zap.Int("benefits", len(cached.MatchedBenefits)))
		return cached, nil
	}

	var (
		result *ai.Result
		aiErr  error
	)
	if o.ai != nil {
		result, aiErr = o.ai.Match(ctx, transcript, user, language)
		if aiErr != nil {
			o.aiErrors.Add(1)
			o.metrics.AIError(string(ai.CodeOf(aiErr)))
			log.Warn("ai matching failed, falling back to keyword matching", zap.Error(aiErr))
		}
	}

	strategy := selectStrategy(o.ai != nil, result, aiErr)

	var resp *MatchResponse
	switch strategy {
	case StrategyAI:
		resp = o.fromAI(result, transcript, language, user)
	default:
		o.fallbacks.Add(1)
		resp = o.fromKeywords(transcript, language, user, result, aiErr)
	}

	resp.Metadata.ProcessingTime = o.now().Sub(start).Milliseconds()
	resp.Metadata.Timestamp = o.now().UTC()

	o.store(ctx, log, key, resp)

	o.metrics.ObserveMatch("success", string(strategy), o.now().Sub(start))
	log.Info("benefit matching finished",
		zap.String(logger.FieldStrategy, string(strategy)),
		zap.Int("benefits", len(resp.MatchedBenefits)),
		zap.Int64("processing_ms", resp.Metadata.ProcessingTime),
	)

	return resp, nil
}

func (o *Orchestrator) fromAI(result *ai.Result, transcript, language string, user *profile.User) *MatchResponse {
	benefits := make([]MatchedBenefit, 0, len(result.MatchedSchemes))
	for _, m := range result.MatchedSchemes {
		program, ok := o.catalog.Find(m.SchemeID)
		if !ok {
			o.logger.Warn("skipping unknown scheme id", zap.String("scheme_id", m.SchemeID))
			continue
		}
		benefits = append(benefits, enrich(program, m.MatchScore, m.MatchReasons, m.EligibilityStatus, m.RequiredDocuments, m.NextSteps))
	}

	extracted := result.ExtractedProfile
	if extracted == nil {
		extracted = o.keywords.Profile(transcript, language, user)
	}

	return &MatchResponse{
		Success:          true,
		ExtractedProfile: extracted,
		MatchedBenefits:  benefits,
		Recommendations:  result.Recommendations,
		ConfidenceScore:  result.ConfidenceScore,
		Metadata: Metadata{
			Version:  Version,
			AIModel:  o.AIModel(),
			Strategy: StrategyAI,
			AIUsed:   true,
		},
	}
}

func (o *Orchestrator) fromKeywords(transcript, language string, user *profile.User, result *ai.Result, aiErr error) *MatchResponse {
	matches := o.keywords.Match(transcript, language)

	benefits := make([]MatchedBenefit, 0, len(matches))
	for _, m := range matches {
		benefits = append(benefits, enrich(m.Program, m.Score, m.Reasons, m.Status, nil, ""))
	}

	confidence := keywordConfidence
	if aiErr != nil {
		confidence = keywordErrorConfidence
	}

	var recommendations string
	switch {
	case len(benefits) == 0:
		recommendations = msgNoMatches
	case aiErr != nil:
		recommendations = msgAIUnavailable
	default:
		recommendations = fmt.Sprintf(msgKeywordMatches, len(benefits))
	}

	// A successful AI call with no matches still carries the better profile.
	var extracted *profile.Extracted
	if aiErr == nil && result != nil && result.ExtractedProfile != nil {
		extracted = result.ExtractedProfile
	} else {
		extracted = o.keywords.Profile(transcript, language, user)
	}

	return &MatchResponse{
		Success:          true,
		ExtractedProfile: extracted,
		MatchedBenefits:  benefits,
		Recommendations:  recommendations,
		ConfidenceScore:  confidence,
		Metadata: Metadata{
			Version:      Version,
			AIModel:      o.AIModel(),
			Strategy:     StrategyKeyword,
			AIUsed:       false,
			FallbackUsed: true,
		},
	}
}

// enrich spreads the catalog record and overlays the match fields.
// Missing documents and next steps fall back to the catalog.
func enrich(p catalog.Program, score float64, reasons []string, status ai.EligibilityStatus, docs []string, nextSteps string) MatchedBenefit {
	if reasons == nil {
		reasons = []string{}
	}
	if len(docs) == 0 {
		docs = p.Documents
	}
	if docs == nil {
		docs = []string{}
	}
	if strings.TrimSpace(nextSteps) == "" {
		nextSteps = p.ApplicationProcess
	}
	if p.Documents == nil {
		p.Documents = []string{}
	}

	return MatchedBenefit{
		Program:           p,
		MatchScore:        score,
		MatchLabel:        ScoreLabel(score),
		MatchReasons:      reasons,
		EligibilityStatus: status,
		RequiredDocuments: docs,
		NextSteps:         nextSteps,
	}
}

func (o *Orchestrator) lookup(ctx context.Context, log *zap.Logger, key string) (*MatchResponse, bool) {
	if o.cache == nil {
		return nil, false
	}

	payload, ok, err := o.cache.Get(ctx, key)
	if err != nil {
		log.Warn("cache read failed", zap.Error(err))
		ok = false
	}
	if ok {
		var resp MatchResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			log.Warn("discarding undecodable cache entry", zap.Error(err))
			ok = false
		} else {
			o.hits.Add(1)
			o.metrics.CacheLookup(true)
			return &resp, true
		}
	}

	o.misses.Add(1)
	o.metrics.CacheLookup(false)
	return nil, false
}

func (o *Orchestrator) store(ctx context.Context, log *zap.Logger, key string, resp *MatchResponse) {
	if o.cache == nil {
		return
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		log.Warn("encode match response for cache", zap.Error(err))
		return
	}
	if err := o.cache.Set(ctx, key, payload); err != nil {
		log.Warn("cache write failed", zap.Error(err))
	}
}

// Stats returns the counters and the current cache size.
func (o *Orchestrator) Stats(ctx context.Context) Stats {
	s := Stats{
		TotalRequests: o.total.Load(),
		CacheHits:     o.hits.Load(),
		CacheMisses:   o.misses.Load(),
		Fallbacks:     o.fallbacks.Load(),
		AIErrors:      o.aiErrors.Load(),
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.HitRate = float64(s.CacheHits) / float64(lookups)
	}
	if o.cache != nil {
		size, err := o.cache.Len(ctx)
		if err != nil {
			o.logger.Warn("read cache size", zap.Error(err))
		}
		s.CacheSize = size
	}
	return s
}

// BatchResult is one MatchBatch item. Exactly one of Response and Error is set.
type BatchResult struct {
	Transcript string         `json:"transcript"`
	Response   *MatchResponse `json:"result,omitempty"`
	Error      *ErrorResponse `json:"error,omitempty"`
}

// MatchBatch matches transcripts one after another, pausing between items to
// stay under provider rate limits. It stops early when ctx is done.
func (o *Orchestrator) MatchBatch(ctx context.Context, transcripts []string, user *profile.User, language string) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(transcripts))

	for i, t := range transcripts {
		if i > 0 {
			if err := utils.WaitFor(ctx, o.batchDelay); err != nil {
				return results, err
			}
		}

		resp, err := o.MatchBenefits(ctx, MatchRequest{Transcript: t, UserProfile: user, Language: language})
		item := BatchResult{Transcript: t, Response: resp}
		if err != nil {
			e := NewErrorResponse(err)
			item.Error = &e
			item.Response = nil
		}
		results = append(results, item)
	}

	return results, nil
}

// User merges the top-level userId into the profile without mutating the request.
func (req MatchRequest) User() *profile.User {
	id := strings.TrimSpace(req.UserID)
	if id == "" {
		return req.UserProfile
	}

	var user profile.User
	if req.UserProfile != nil {
		user = *req.UserProfile
	}
	if strings.TrimSpace(user.UserID) == "" {
		user.UserID = id
	}
	return &user
}

// Lang is the request language, then the profile preference, then "en".
func (req MatchRequest) Lang() string {
	if lang := strings.TrimSpace(req.Language); lang != "" {
		return lang
	}
	if user := req.UserProfile; user != nil {
		if lang := strings.TrimSpace(user.PreferredLanguage); lang != "" {
			return lang
		}
	}
	return "en"
}

func userID(user *profile.User) string {
	if user == nil {
		return ""
	}
	return user.UserID
}
