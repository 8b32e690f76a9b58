package screening

import (
	"fmt"
	"strings"
	"time"
)

// TestType identifies one of the supported questionnaires.
type TestType string

const (
	MCHAT TestType = "mchat"
	ASSQ  TestType = "assq"
	AQ10  TestType = "aq10"
)

// TestTypes lists the supported questionnaires in presentation order.
var TestTypes = []TestType{MCHAT, ASSQ, AQ10}

// ParseTestType accepts the canonical keys plus the labels used by the
// screening forms ("M-CHAT-R/F", "mchat-rf", "AQ-10").
func ParseTestType(s string) (TestType, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer("-", "", "/", "", "_", "", " ", "").Replace(k)
	switch k {
	case "mchat", "mchatrf", "mchatr":
		return MCHAT, nil
	case "assq":
		return ASSQ, nil
	case "aq10":
		return AQ10, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTestType, s)
}

// RiskCategory is the closed set of classifications a raw score maps to.
// AQ-10 uses the two-valued Negative/Positive pair.
type RiskCategory string

const (
	RiskLow      RiskCategory = "low"
	RiskModerate RiskCategory = "moderate"
	RiskHigh     RiskCategory = "high"
	RiskNegative RiskCategory = "negative"
	RiskPositive RiskCategory = "positive"
)

// Rank orders categories by severity. Negative ranks with Low and Positive
// with High. Unknown values rank below everything.
func (r RiskCategory) Rank() int {
	switch r {
	case RiskLow, RiskNegative:
		return 0
	case RiskModerate:
		return 1
	case RiskHigh, RiskPositive:
		return 2
	}
	return -1
}

// Level collapses the category onto the three-level scale used by dashboards.
func (r RiskCategory) Level() RiskCategory {
	switch r {
	case RiskNegative:
		return RiskLow
	case RiskPositive:
		return RiskHigh
	}
	return r
}

func (r RiskCategory) Valid() bool { return r.Rank() >= 0 }

// ParseRiskCategory normalizes persisted labels, including the Portuguese
// free text written by older clients, into a RiskCategory.
func ParseRiskCategory(s string) (RiskCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "baixo", "baixo risco", "risco baixo":
		return RiskLow, nil
	case "moderate", "moderado", "risco moderado", "medio", "médio":
		return RiskModerate, nil
	case "high", "alto", "alto risco", "risco alto":
		return RiskHigh, nil
	case "negative", "negativo", "triagem negativa", "false":
		return RiskNegative, nil
	case "positive", "positivo", "triagem positiva", "true":
		return RiskPositive, nil
	}
	return "", fmt.Errorf("unknown risk category %q", s)
}

// Role is supplied by the session boundary and gates reporting access.
type Role string

const (
	RoleUser       Role = "user"
	RoleSpecialist Role = "specialist"
)

// ParseRole accepts the English names and the account types of the sign-up form.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "usuario", "usuário", "":
		return RoleUser, nil
	case "specialist", "especialista":
		return RoleSpecialist, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Session carries the authenticated submitter explicitly into core calls.
type Session struct {
	OwnerID string
	Role    Role
}

func (s Session) IsSpecialist() bool { return s.Role == RoleSpecialist }

// Subject is the individual being screened. It is keyed by (OwnerID, NationalID).
type Subject struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	FullName        string    `json:"full_name"`
	NationalID      string    `json:"national_id"`
	Region          string    `json:"region"`
	Phone           string    `json:"phone"`
	Email           string    `json:"email"`
	ResearchConsent bool      `json:"research_consent"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ResultRecord is the persisted outcome of scoring one AnswerSet. It is
// written once and never mutated.
type ResultRecord struct {
	ID                string       `json:"id"`
	SubjectID         string       `json:"subject_id"`
	OwnerID           string       `json:"owner_id"`
	Test              TestType     `json:"test_type"`
	DefinitionVersion string       `json:"definition_version"`
	RawScore          int          `json:"raw_score"`
	Risk              RiskCategory `json:"risk_category"`
	ResearchConsent   bool         `json:"research_consent"`
	Age               int          `json:"age,omitempty"`
	Respondent        string       `json:"respondent,omitempty"`
	Answers           AnswerSet    `json:"answers,omitempty"`
	Items             []ItemScore  `json:"items,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

// ResearchRecord is the anonymised copy of a result kept for population
// statistics. It never carries name or national id.
type ResearchRecord struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Test            TestType  `json:"test_type"`
	AgeBand         string    `json:"age_band"`
	Region          string    `json:"region"`
	RawScore        int       `json:"raw_score"`
	ResearchConsent bool      `json:"research_consent"`
	CreatedAt       time.Time `json:"created_at"`
}
