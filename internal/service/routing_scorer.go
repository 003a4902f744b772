package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/config"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/observability"
)

const (
	RoutingMethodScored   = "scored"
	RoutingMethodFallback = "fallback"

	criticalExpertiseBoost  = 1.2
	expertiseBoostThreshold = 0.8
	workloadPenaltyPerCase  = 0.1
	maxWorkloadPenalty      = 0.5
	minWorkloadScore        = 0.1
	lastResortAssignee      = "case.manager@dswd.gov.ph"
)

var errNoCandidates = errors.New("no routing candidates")

// CandidateScore records how one candidate was scored.
type CandidateScore struct {
	StaffID     string
	Expertise   float64
	Workload    int
	Performance float64
	Score       float64
}

// RoutingDecision is the outcome of routing a case. Routing never fails: when
// scoring is impossible the decision carries the fallback assignee and the reason.
type RoutingDecision struct {
	Assignee         string
	Method           string
	Scores           []CandidateScore
	DetectedCategory domain.GrievanceCategory
	FallbackReason   error
}

type priorityPattern struct {
	re       *regexp.Regexp
	priority domain.CasePriority
}

// RoutingScorerDependencies wires the scorer.
type RoutingScorerDependencies struct {
	Directory StaffDirectory
	Routing   config.RoutingConfig
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// RoutingScorer ranks staff for a case by expertise, workload and performance.
type RoutingScorer struct {
	directory StaffDirectory
	routing   config.RoutingConfig
	patterns  []priorityPattern
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewRoutingScorer compiles the keyword tables and builds the scorer.
func NewRoutingScorer(deps RoutingScorerDependencies) (*RoutingScorer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	patterns := make([]priorityPattern, 0, len(deps.Routing.PriorityKeywords))
	for _, kw := range deps.Routing.PriorityKeywords {
		re, err := regexp.Compile("(?i)" + kw.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile priority pattern %q: %w", kw.Pattern, err)
		}
		patterns = append(patterns, priorityPattern{re: re, priority: kw.Priority})
	}
	return &RoutingScorer{
		directory: deps.Directory,
		routing:   deps.Routing,
		patterns:  patterns,
		logger:    logger,
		metrics:   deps.Metrics,
	}, nil
}

func caseContent(c *domain.Case) string {
	return strings.ToLower(c.Subject + " " + c.Description)
}

// DetectPriority returns the most urgent priority implied by the case text. ok
// is false unless that priority outranks the current one.
func (r *RoutingScorer) DetectPriority(c *domain.Case) (domain.CasePriority, bool) {
	content := caseContent(c)
	var detected domain.CasePriority
	for _, p := range r.patterns {
		if p.re.MatchString(content) && (detected == "" || p.priority.Outranks(detected)) {
			detected = p.priority
		}
	}
	if detected == "" || !detected.Outranks(c.Priority) {
		return c.Priority, false
	}
	return detected, true
}

// DetectCategory returns the category whose keywords best match the case text.
func (r *RoutingScorer) DetectCategory(c *domain.Case) (domain.GrievanceCategory, bool) {
	content := caseContent(c)
	var (
		best      domain.GrievanceCategory
		bestScore int
	)
	for _, category := range domain.Categories {
		score := 0
		for _, keyword := range r.routing.CategoryKeywords[category] {
			if strings.Contains(content, strings.ToLower(keyword)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = category, score
		}
	}
	return best, bestScore > 0
}

// Route picks the assignee for c. It does not mutate the case.
func (r *RoutingScorer) Route(ctx context.Context, c *domain.Case) RoutingDecision {
	decision := RoutingDecision{}
	if detected, ok := r.DetectCategory(c); ok {
		decision.DetectedCategory = detected
		if detected != c.Category {
			r.logger.Info("content suggests a different category",
				zap.String("case_number", c.CaseNumber),
				zap.String("category", string(c.Category)),
				zap.String("suggested", string(detected)))
		}
	}

	scores, err := r.score(ctx, c)
	if err != nil {
		decision.Assignee = r.DefaultAssignee(c.Category, c.Priority)
		decision.Method = RoutingMethodFallback
		decision.FallbackReason = err
		r.logger.Warn("routing fell back to default assignee",
			zap.String("case_number", c.CaseNumber),
			zap.String("staff_id", decision.Assignee),
			zap.Error(err))
		r.metrics.RecordRouting(RoutingMethodFallback)
		return decision
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	decision.Assignee = best.StaffID
	decision.Method = RoutingMethodScored
	decision.Scores = scores
	r.logger.Info("routing decision",
		zap.String("case_number", c.CaseNumber),
		zap.String("staff_id", best.StaffID),
		zap.Float64("score", best.Score))
	r.metrics.RecordRouting(RoutingMethodScored)
	return decision
}

func (r *RoutingScorer) score(ctx context.Context, c *domain.Case) (scores []CandidateScore, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("routing panicked: %v", rec)
		}
	}()
	if r.directory == nil {
		return nil, errNoCandidates
	}
	candidates, err := r.directory.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, errNoCandidates
	}

	scores = make([]CandidateScore, 0, len(candidates))
	for _, staffID := range candidates {
		expertise := r.expertiseScore(ctx, staffID, c)
		workload, err := r.directory.WorkloadOf(ctx, staffID)
		if err != nil {
			return nil, fmt.Errorf("workload of %s: %w", staffID, err)
		}
		performance, ok := r.directory.Performance(ctx, staffID)
		if !ok {
			performance = r.routing.DefaultPerformance
		}
		scores = append(scores, CandidateScore{
			StaffID:     staffID,
			Expertise:   expertise,
			Workload:    workload,
			Performance: performance,
			Score:       adjustForWorkload(expertise, workload) * performance,
		})
	}
	return scores, nil
}

func (r *RoutingScorer) expertiseScore(ctx context.Context, staffID string, c *domain.Case) float64 {
	score, ok := r.directory.Expertise(ctx, staffID, c.Category)
	if !ok {
		score = r.routing.DefaultExpertise
	}
	if c.Priority == domain.CasePriorityCritical && score > expertiseBoostThreshold {
		score *= criticalExpertiseBoost
	}
	return math.Min(score, 1.0)
}

func adjustForWorkload(score float64, workload int) float64 {
	penalty := math.Min(float64(workload)*workloadPenaltyPerCase, maxWorkloadPenalty)
	return math.Max(score*(1.0-penalty), minWorkloadScore)
}

// DefaultAssignee picks the static fallback for a category: a senior expert
// for CRITICAL cases, otherwise the first expert.
func (r *RoutingScorer) DefaultAssignee(category domain.GrievanceCategory, priority domain.CasePriority) string {
	experts := r.routing.CategoryExperts[category]
	if len(experts) == 0 {
		experts = r.routing.CategoryExperts[domain.CategoryOther]
	}
	if len(experts) == 0 {
		return lastResortAssignee
	}
	if priority == domain.CasePriorityCritical {
		for _, expert := range experts {
			if domain.IsSenior(expert) {
				return expert
			}
		}
		return experts[len(experts)-1]
	}
	return experts[0]
}
