// Package detector accumulates claims about named entities and raises a
// contradiction alert the first time conflicting claims about an entity pass
// verification. Each entity gets at most one alert; once alerted (or once
// verification fails for it) the entity's claims are cleared.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crisiscore-hq/crisiscore/pkg/analyzer"
	"github.com/crisiscore-hq/crisiscore/pkg/models"
)

// Verifier renders a verdict over a claim set. Implemented by
// analyzer.Verification.
type Verifier interface {
	Analyze(ctx context.Context, in analyzer.VerificationInput) (*analyzer.Output, error)
}

// Detector tracks claims per entity and decides when to raise alerts
type Detector struct {
	mu       sync.Mutex
	verifier Verifier
	claims   map[string][]models.Claim
	handled  map[string]bool
}

// New creates a detector backed by the given verifier
func New(verifier Verifier) *Detector {
	return &Detector{
		verifier: verifier,
		claims:   make(map[string][]models.Claim),
		handled:  make(map[string]bool),
	}
}

// Reset drops all accumulated claims and handled entities
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claims = make(map[string][]models.Claim)
	d.handled = make(map[string]bool)
}

// AddClaim records one claim about an entity. Claims for entities that
// already have an alert are dropped.
func (d *Detector) AddClaim(entityName string, claim models.Claim) {
	if entityName == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handled[entityName] {
		return
	}
	d.claims[entityName] = append(d.claims[entityName], claim)
}

// ClaimCount reports how many claims are pending for an entity
func (d *Detector) ClaimCount(entityName string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.claims[entityName])
}

// Handled reports whether an entity already has an alert
func (d *Detector) Handled(entityName string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handled[entityName]
}

// Check verifies the first entity holding two or more claims and returns an
// alert when the verdict is a contradiction or temporal gap. At most one
// alert is produced per call. When verification fails for an entity its
// claims are cleared so the failure is not retried on every signal.
func (d *Detector) Check(ctx context.Context) (*models.ContradictionAlert, error) {
	d.mu.Lock()
	entities := make([]string, 0, len(d.claims))
	for name, claims := range d.claims {
		if !d.handled[name] && len(claims) >= 2 {
			entities = append(entities, name)
		}
	}
	sort.Strings(entities)
	d.mu.Unlock()

	for _, name := range entities {
		d.mu.Lock()
		claims := append([]models.Claim(nil), d.claims[name]...)
		d.mu.Unlock()
		if len(claims) < 2 {
			continue
		}

		out, err := d.verifier.Analyze(ctx, analyzer.VerificationInput{
			Entity:     name,
			EntityType: "infrastructure",
			Claims:     claims,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Contradiction check failed, clearing claims",
				"entity", name, "error", err)
			d.mu.Lock()
			delete(d.claims, name)
			d.mu.Unlock()
			continue
		}

		verdict := getString(out.Data, "verdict")
		if verdict != "CONTRADICTION" && verdict != "TEMPORAL_GAP" {
			continue
		}

		// Prefer the verifier's own claim view when it reports one
		alertClaims := claimsFromData(out.Data)
		if len(alertClaims) == 0 {
			alertClaims = claims
			if len(alertClaims) > 2 {
				alertClaims = alertClaims[:2]
			}
		}
		alert := buildAlert(name, "infrastructure", alertClaims, out.Data, verdict,
			"", models.RecommendFlagForHuman, time.Now().UTC())

		d.mu.Lock()
		d.handled[name] = true
		delete(d.claims, name)
		d.mu.Unlock()

		slog.Info("Contradiction alert created",
			"alert_id", alert.ID, "entity", name, "verdict", verdict)
		return alert, nil
	}
	return nil, nil
}

// InjectInput is a scripted contradiction: claims plus an optional forced
// verdict used when the verifier declines to name one
type InjectInput struct {
	Entity           string
	EntityType       string
	Claims           []models.Claim
	ForceVerdict     string
	TemporalAnalysis string
}

// Inject runs verification over scripted claims and always produces an
// alert, falling back to the forced verdict. Used by the simulation driver.
func (d *Detector) Inject(ctx context.Context, in InjectInput, simTime time.Time) (*models.ContradictionAlert, error) {
	if in.Entity == "" {
		in.Entity = "Unknown"
	}
	if in.EntityType == "" {
		in.EntityType = "infrastructure"
	}

	d.mu.Lock()
	if d.handled[in.Entity] {
		d.mu.Unlock()
		return nil, nil
	}
	claims := append(d.claims[in.Entity], in.Claims...)
	d.claims[in.Entity] = claims
	d.mu.Unlock()

	if len(claims) < 2 {
		return nil, nil
	}

	out, err := d.verifier.Analyze(ctx, analyzer.VerificationInput{
		Entity:     in.Entity,
		EntityType: in.EntityType,
		Claims:     claims,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.mu.Lock()
		delete(d.claims, in.Entity)
		d.mu.Unlock()
		return nil, fmt.Errorf("inject contradiction for %s: %w", in.Entity, err)
	}

	verdict := getString(out.Data, "verdict")
	if verdict == "" {
		verdict = in.ForceVerdict
	}
	// Scripted injections always raise an alert, so an unknown verdict
	// resolves to a contradiction instead of uncertain
	if models.ParseVerdict(verdict) == models.VerdictUncertain && !strings.EqualFold(strings.TrimSpace(verdict), "uncertain") {
		verdict = "CONTRADICTION"
	}

	alert := buildAlert(in.Entity, in.EntityType, claims, out.Data, verdict,
		in.TemporalAnalysis, models.RecommendRequestVerify, simTime)
	alert.Severity = models.SeverityHigh
	alert.Urgency = models.UrgencyHigh
	if alert.RecommendedActionDetails == "" {
		alert.RecommendedActionDetails = "Deploy aerial verification"
	}

	d.mu.Lock()
	d.handled[in.Entity] = true
	delete(d.claims, in.Entity)
	d.mu.Unlock()

	slog.Info("Contradiction injected",
		"alert_id", alert.ID, "entity", in.Entity, "verdict", verdict)
	return alert, nil
}

func buildAlert(entity, entityType string, claims []models.Claim, data map[string]any, verdict, temporalFallback string, defaultAction models.RecommendedAction, createdAt time.Time) *models.ContradictionAlert {
	severity := models.SeverityHigh
	if contradictions := getSlice(data, "contradictions"); len(contradictions) > 0 {
		if first, ok := contradictions[0].(map[string]any); ok {
			if s := getString(first, "severity"); s != "" {
				severity = models.Severity(s)
			}
		}
	}

	temporal := getString(data, "temporal_analysis")
	if temporal == "" {
		temporal = temporalFallback
	}

	urgency := models.UrgencyHigh
	if u := getString(data, "urgency"); u != "" {
		urgency = models.ParseUrgency(u)
	}

	return &models.ContradictionAlert{
		ID:                       "alert_" + uuid.NewString()[:8],
		EntityID:                 strings.ReplaceAll(strings.ToLower(entity), " ", "_"),
		EntityType:               entityType,
		EntityName:               entity,
		Claims:                   claims,
		Verdict:                  models.ParseVerdict(verdict),
		Severity:                 severity,
		TemporalAnalysis:         temporal,
		RecommendedAction:        parseRecommendedAction(getString(data, "recommended_action"), defaultAction),
		RecommendedActionDetails: getString(data, "recommended_action_details"),
		Urgency:                  urgency,
		CreatedAt:                createdAt,
	}
}

func parseRecommendedAction(s string, def models.RecommendedAction) models.RecommendedAction {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ACCEPT":
		return models.RecommendAccept
	case "REQUEST_VERIFICATION":
		return models.RecommendRequestVerify
	case "WAIT":
		return models.RecommendWait
	case "FLAG_FOR_HUMAN":
		return models.RecommendFlagForHuman
	default:
		return def
	}
}

// claimsFromData decodes the verifier's claims_analyzed list
func claimsFromData(data map[string]any) []models.Claim {
	var out []models.Claim
	for _, raw := range getSlice(data, "claims_analyzed") {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, models.Claim{
			Source:     getString(m, "source"),
			SourceType: models.SourceType(getString(m, "source_type")),
			Claim:      getString(m, "claim"),
			Confidence: getFloat(m, "confidence"),
			Timestamp:  getString(m, "timestamp"),
		})
	}
	return out
}

func getString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func getSlice(m map[string]any, key string) []any {
	s, _ := m[key].([]any)
	return s
}

func getFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
