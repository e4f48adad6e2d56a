package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"github.com/maxaizer/placement-matcher/internal/clients/gemini"
	"github.com/maxaizer/placement-matcher/internal/domain/models"
	"github.com/maxaizer/placement-matcher/internal/logger"
	"github.com/maxaizer/placement-matcher/internal/matching"
	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"strconv"
	"strings"
	"time"
)

type aiClient interface {
	GenerateResponse(ctx context.Context, request string) (string, error)
}

type ReasonSource string

const (
	ReasonFromAI    ReasonSource = "ai"
	ReasonFromCache ReasonSource = "cache"
	// ReasonFromFallback means no AI client is configured.
	ReasonFromFallback ReasonSource = "fallback"
	// ReasonDegraded means the AI call failed or timed out and the template was used.
	ReasonDegraded ReasonSource = "degraded"
)

type JustificationOptions struct {
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	CacheTTL       time.Duration
	// Retryable decides whether a failed call is attempted again. Defaults to gemini.IsRetryable.
	Retryable func(error) bool
}

type JustificationService struct {
	aiClient aiClient
	options  JustificationOptions
	cache    *gocache.Cache
}

// NewJustificationService creates the reason writer. A nil client makes it template-only.
func NewJustificationService(aiClient aiClient, options JustificationOptions) *JustificationService {
	if options.MaxRetries < 1 {
		options.MaxRetries = 1
	}
	if options.RequestTimeout <= 0 {
		options.RequestTimeout = 15 * time.Second
	}
	if options.Retryable == nil {
		options.Retryable = gemini.IsRetryable
	}
	if options.CacheTTL <= 0 {
		options.CacheTTL = gocache.NoExpiration
	}

	return &JustificationService{
		aiClient: aiClient,
		options:  options,
		cache:    gocache.New(options.CacheTTL, time.Hour),
	}
}

// Generate never fails: any error, timeout or empty answer falls back to FallbackReason.
func (s *JustificationService) Generate(ctx context.Context, candidate models.Candidate, job models.Job,
	score matching.Score) (string, ReasonSource) {

	if s.aiClient == nil {
		return FallbackReason(candidate, job, score), ReasonFromFallback
	}

	cacheID := createReasonCacheID(candidate, job, score)
	if cached, found := s.cache.Get(cacheID); found {
		return cached.(string), ReasonFromCache
	}

	reason, err := s.generateWithRetry(ctx, justificationRequest(candidate, job, score))
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeAiApi).
			WithField(logger.JobIDField, job.ID).
			Warnf("failed to generate match reason for candidate %v, using template: %v", candidate.ID, err)
		return FallbackReason(candidate, job, score), ReasonDegraded
	}

	s.cache.Set(cacheID, reason, gocache.DefaultExpiration)
	return reason, ReasonFromAI
}

func (s *JustificationService) generateWithRetry(ctx context.Context, request string) (string, error) {
	var reply string
	var err error
	delay := s.options.RetryBackoff

	_, _ = lo.AttemptWhile(s.options.MaxRetries, func(i int) (error, bool) {
		if i > 0 {
			log.Debugf("retrying match reason generation in %v (attempt %d)", delay, i+1)
			if !sleepContext(ctx, delay) {
				err = ctx.Err()
				return err, false
			}
			delay *= 2
		}

		reply, err = s.tryGenerate(ctx, request)
		return err, err != nil && s.options.Retryable(err)
	})

	return reply, err
}

func (s *JustificationService) tryGenerate(ctx context.Context, request string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.options.RequestTimeout)
	defer cancel()

	response, err := s.aiClient.GenerateResponse(callCtx, request)
	if err != nil {
		return "", err
	}

	response = strings.Join(strings.Fields(strings.ReplaceAll(response, "*", "")), " ")
	if response == "" {
		return "", gemini.ErrEmptyResponse
	}
	return response, nil
}

func justificationRequest(candidate models.Candidate, job models.Job, score matching.Score) string {
	var sb strings.Builder

	sb.WriteString("Job title: " + job.Title)
	if job.Company != "" {
		sb.WriteString(" at " + job.Company)
	}
	sb.WriteString(". Required skills: " + joinOrNone(matching.DedupSkills(job.RequiredSkills)))
	sb.WriteString(". Preferred skills: " + joinOrNone(matching.DedupSkills(job.PreferredSkills)))
	sb.WriteString(". Candidate match score: " + strconv.Itoa(score.Total) + "/100")
	sb.WriteString(". Matched required skills: " + joinOrNone(score.SkillsMatched))
	sb.WriteString(". Missing required skills: " + joinOrNone(score.SkillsMissing))
	sb.WriteString(fmt.Sprintf(". Relevant projects: %d of %d", score.RelevantProjects, len(candidate.Projects)))
	sb.WriteString(". Readiness score: " + strconv.Itoa(candidate.ReadinessScore) + "/100")
	if candidate.CGPA != nil {
		sb.WriteString(fmt.Sprintf(". CGPA: %.2f/10", *candidate.CGPA))
	}
	sb.WriteString(". You help a recruiter shortlist students. In 2-3 plain sentences explain why this " +
		"candidate fits the job and what they lack. Do not invent facts, do not use markdown.")

	return sb.String()
}

// FallbackReason builds the explanation from local data only, tiered by score.
func FallbackReason(candidate models.Candidate, job models.Job, score matching.Score) string {
	required := len(matching.DedupSkills(job.RequiredSkills))
	matched := len(score.SkillsMatched)
	missing := firstN(score.SkillsMissing, 2)

	var reason string
	switch {
	case score.Total >= 80:
		reason = fmt.Sprintf("Strong match: has %d of %d required skills, %d relevant %s and a readiness score of %d.",
			matched, required, score.RelevantProjects, plural(score.RelevantProjects, "project", "projects"),
			candidate.ReadinessScore)
		if len(missing) > 0 {
			reason += " Could still strengthen " + strings.Join(missing, ", ") + "."
		}
	case score.Total >= 60:
		top := firstN(score.SkillsMatched, 3)
		reason = fmt.Sprintf("Good match with skills in %s. Has %d relevant %s and a readiness score of %d.",
			joinOrNone(top), score.RelevantProjects, plural(score.RelevantProjects, "project", "projects"),
			candidate.ReadinessScore)
		if len(missing) > 0 {
			reason += " Missing " + strings.Join(missing, ", ") + "."
		}
	default:
		reason = fmt.Sprintf("Partial match covering %d required %s.", matched, plural(matched, "skill", "skills"))
		if len(missing) > 0 {
			reason += " Growth areas: " + strings.Join(missing, ", ") + "."
		}
	}
	return reason
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func createReasonCacheID(candidate models.Candidate, job models.Job, score matching.Score) string {
	key := strings.Join([]string{
		candidate.ID,
		strconv.Itoa(job.ID),
		strconv.Itoa(score.Total),
		strings.Join(score.SkillsMatched, ","),
		strings.Join(score.SkillsMissing, ","),
		strconv.Itoa(score.RelevantProjects),
		strconv.Itoa(len(candidate.Projects)),
		strconv.Itoa(candidate.ReadinessScore),
		cgpaKey(candidate.CGPA),
	}, "|")
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func cgpaKey(cgpa *float64) string {
	if cgpa == nil {
		return "-"
	}
	return strconv.FormatFloat(*cgpa, 'f', 2, 64)
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
