package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// DefaultTopLevelHandler receives CRITICAL_BREACH cases.
const DefaultTopLevelHandler = "director@dswd.gov.ph"

// StaffProfile describes one routing candidate.
type StaffProfile struct {
	ID          string                               `yaml:"id"`
	Name        string                               `yaml:"name"`
	Expertise   map[domain.GrievanceCategory]float64 `yaml:"expertise"`
	Performance *float64                             `yaml:"performance,omitempty"`
}

// PriorityKeywords maps a case-insensitive regex onto the priority it implies.
type PriorityKeywords struct {
	Pattern  string              `yaml:"pattern"`
	Priority domain.CasePriority `yaml:"priority"`
}

// RoutingConfig holds the static tables used by routing and escalation.
type RoutingConfig struct {
	Hierarchies        map[domain.GrievanceCategory][]string `yaml:"hierarchies"`
	DefaultHierarchy   []string                              `yaml:"default_hierarchy"`
	Staff              []StaffProfile                        `yaml:"staff"`
	DefaultPerformance float64                               `yaml:"default_performance"`
	DefaultExpertise   float64                               `yaml:"default_expertise"`
	CategoryExperts    map[domain.GrievanceCategory][]string `yaml:"category_experts"`
	PriorityKeywords   []PriorityKeywords                    `yaml:"priority_keywords"`
	CategoryKeywords   map[domain.GrievanceCategory][]string `yaml:"category_keywords"`
}

func ptr(v float64) *float64 { return &v }

// DefaultRoutingConfig returns the registry's built-in routing tables.
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		Hierarchies: map[domain.GrievanceCategory][]string{
			domain.CategoryCorruption: {
				"integrity.officer@dswd.gov.ph",
				"senior.integrity.officer@dswd.gov.ph",
				"regional.director@dswd.gov.ph",
				"national.director@dswd.gov.ph",
			},
			domain.CategorySystemError: {
				"it.support@dswd.gov.ph",
				"senior.it.manager@dswd.gov.ph",
				"it.director@dswd.gov.ph",
				"cto@dswd.gov.ph",
			},
			domain.CategoryPaymentIssue: {
				"payment.specialist@dswd.gov.ph",
				"payment.supervisor@dswd.gov.ph",
				"finance.manager@dswd.gov.ph",
				"finance.director@dswd.gov.ph",
			},
			domain.CategoryStaffConduct: {
				"hr.specialist@dswd.gov.ph",
				"hr.manager@dswd.gov.ph",
				"regional.director@dswd.gov.ph",
				"national.director@dswd.gov.ph",
			},
			domain.CategoryEligibilityDispute: {
				"eligibility.specialist@dswd.gov.ph",
				"eligibility.supervisor@dswd.gov.ph",
				"program.manager@dswd.gov.ph",
				"regional.director@dswd.gov.ph",
			},
		},
		DefaultHierarchy: []string{
			"case.manager@dswd.gov.ph",
			"senior.case.manager@dswd.gov.ph",
			"operations.manager@dswd.gov.ph",
			"regional.director@dswd.gov.ph",
		},
		Staff: []StaffProfile{
			{
				ID: "integrity.officer@dswd.gov.ph", Name: "Integrity Officer",
				Expertise: map[domain.GrievanceCategory]float64{
					domain.CategoryCorruption:   0.95,
					domain.CategoryStaffConduct: 0.85,
					domain.CategoryDataPrivacy:  0.75,
				},
				Performance: ptr(0.95),
			},
			{
				ID: "it.support@dswd.gov.ph", Name: "IT Support",
				Expertise: map[domain.GrievanceCategory]float64{
					domain.CategorySystemError: 0.95,
					domain.CategoryAccessIssue: 0.85,
					domain.CategoryDataPrivacy: 0.80,
				},
				Performance: ptr(0.90),
			},
			{
				ID: "payment.specialist@dswd.gov.ph", Name: "Payment Specialist",
				Expertise: map[domain.GrievanceCategory]float64{
					domain.CategoryPaymentIssue:       0.95,
					domain.CategoryEligibilityDispute: 0.75,
					domain.CategoryServiceDelivery:    0.70,
				},
				Performance: ptr(0.92),
			},
			{
				ID: "case.manager@dswd.gov.ph", Name: "Case Manager",
				Expertise: map[domain.GrievanceCategory]float64{
					domain.CategoryServiceDelivery: 0.90,
					domain.CategoryQualityConcern:  0.85,
					domain.CategoryAccessIssue:     0.80,
				},
				Performance: ptr(0.88),
			},
			{
				ID: "eligibility.specialist@dswd.gov.ph", Name: "Eligibility Specialist",
				Expertise: map[domain.GrievanceCategory]float64{
					domain.CategoryEligibilityDispute: 0.95,
					domain.CategoryServiceDelivery:    0.75,
					domain.CategoryQualityConcern:     0.70,
				},
				Performance: ptr(0.91),
			},
		},
		DefaultPerformance: 0.85,
		DefaultExpertise:   0.5,
		CategoryExperts: map[domain.GrievanceCategory][]string{
			domain.CategoryServiceDelivery:    {"service.specialist@dswd.gov.ph", "operations.manager@dswd.gov.ph"},
			domain.CategoryPaymentIssue:       {"payment.specialist@dswd.gov.ph", "finance.officer@dswd.gov.ph"},
			domain.CategoryEligibilityDispute: {"eligibility.officer@dswd.gov.ph", "assessment.specialist@dswd.gov.ph"},
			domain.CategoryStaffConduct:       {"hr.manager@dswd.gov.ph", "ethics.officer@dswd.gov.ph"},
			domain.CategorySystemError:        {"it.support@dswd.gov.ph", "system.admin@dswd.gov.ph"},
			domain.CategoryDataPrivacy:        {"privacy.officer@dswd.gov.ph", "legal.counsel@dswd.gov.ph"},
			domain.CategoryDiscrimination:     {"legal.counsel@dswd.gov.ph", "ethics.officer@dswd.gov.ph"},
			domain.CategoryCorruption:         {"integrity.officer@dswd.gov.ph", "legal.counsel@dswd.gov.ph"},
			domain.CategoryAccessIssue:        {"accessibility.officer@dswd.gov.ph", "service.specialist@dswd.gov.ph"},
			domain.CategoryQualityConcern:     {"quality.assurance@dswd.gov.ph", "operations.manager@dswd.gov.ph"},
			domain.CategoryOther:              {"general.officer@dswd.gov.ph", "case.manager@dswd.gov.ph"},
		},
		PriorityKeywords: []PriorityKeywords{
			{Pattern: "urgent|emergency|critical|immediate|asap", Priority: domain.CasePriorityCritical},
			{Pattern: "important|high|priority|escalate", Priority: domain.CasePriorityHigh},
			{Pattern: "normal|standard|regular", Priority: domain.CasePriorityMedium},
			{Pattern: "minor|low|routine", Priority: domain.CasePriorityLow},
		},
		CategoryKeywords: map[domain.GrievanceCategory][]string{
			domain.CategoryCorruption:         {"corruption", "bribery", "fraud", "kickback", "embezzlement", "misuse"},
			domain.CategorySystemError:        {"system", "error", "bug", "crash", "down", "not working", "technical"},
			domain.CategoryPaymentIssue:       {"payment", "money", "cash", "transfer", "amount", "disbursement"},
			domain.CategoryStaffConduct:       {"staff", "employee", "rude", "unprofessional", "misconduct", "behavior"},
			domain.CategoryEligibilityDispute: {"eligibility", "qualify", "criteria", "requirements", "assessment"},
			domain.CategoryServiceDelivery:    {"service", "delivery", "delay", "quality", "access", "availability"},
		},
	}
}

// LoadRouting reads a YAML routing file over the built-in defaults. An empty
// path returns the defaults unchanged.
func LoadRouting(path string) (RoutingConfig, error) {
	cfg := DefaultRoutingConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RoutingConfig{}, fmt.Errorf("read routing config: %w", err)
	}
	return ParseRouting(data)
}

// ParseRouting decodes YAML routing tables over the built-in defaults and validates them.
func ParseRouting(data []byte) (RoutingConfig, error) {
	cfg := DefaultRoutingConfig()
	var overlay RoutingConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return RoutingConfig{}, fmt.Errorf("parse routing config: %w", err)
	}
	for category, chain := range overlay.Hierarchies {
		cfg.Hierarchies[category] = chain
	}
	if len(overlay.DefaultHierarchy) > 0 {
		cfg.DefaultHierarchy = overlay.DefaultHierarchy
	}
	if len(overlay.Staff) > 0 {
		cfg.Staff = overlay.Staff
	}
	if overlay.DefaultPerformance > 0 {
		cfg.DefaultPerformance = overlay.DefaultPerformance
	}
	if overlay.DefaultExpertise > 0 {
		cfg.DefaultExpertise = overlay.DefaultExpertise
	}
	for category, experts := range overlay.CategoryExperts {
		cfg.CategoryExperts[category] = experts
	}
	if len(overlay.PriorityKeywords) > 0 {
		cfg.PriorityKeywords = overlay.PriorityKeywords
	}
	for category, keywords := range overlay.CategoryKeywords {
		cfg.CategoryKeywords[category] = keywords
	}
	if err := cfg.Validate(); err != nil {
		return RoutingConfig{}, err
	}
	return cfg, nil
}

// Validate checks the tables for unknown enums and malformed patterns.
func (c RoutingConfig) Validate() error {
	if len(c.DefaultHierarchy) == 0 {
		return fmt.Errorf("routing config: default_hierarchy is empty")
	}
	for category, chain := range c.Hierarchies {
		if !category.Valid() {
			return fmt.Errorf("routing config: unknown category %q in hierarchies", category)
		}
		if len(chain) == 0 {
			return fmt.Errorf("routing config: empty hierarchy for %s", category)
		}
	}
	for _, staff := range c.Staff {
		if staff.ID == "" {
			return fmt.Errorf("routing config: staff entry without id")
		}
		for category, score := range staff.Expertise {
			if !category.Valid() {
				return fmt.Errorf("routing config: unknown category %q for %s", category, staff.ID)
			}
			if score < 0 || score > 1 {
				return fmt.Errorf("routing config: expertise %.2f out of range for %s", score, staff.ID)
			}
		}
	}
	for _, keywords := range c.PriorityKeywords {
		if !keywords.Priority.Valid() {
			return fmt.Errorf("routing config: unknown priority %q", keywords.Priority)
		}
		if _, err := regexp.Compile("(?i)" + keywords.Pattern); err != nil {
			return fmt.Errorf("routing config: pattern %q: %w", keywords.Pattern, err)
		}
	}
	return nil
}

// HierarchyFor returns the escalation chain for a category, or the default chain.
func (c RoutingConfig) HierarchyFor(category domain.GrievanceCategory) []string {
	if chain, ok := c.Hierarchies[category]; ok && len(chain) > 0 {
		return chain
	}
	return c.DefaultHierarchy
}
