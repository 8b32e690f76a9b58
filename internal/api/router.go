package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/plataa/triagem/internal/middleware"
	"github.com/plataa/triagem/internal/screening"
	"github.com/plataa/triagem/internal/services"
)

type Router struct {
	store       Store
	engine      *screening.Engine
	issuer      *middleware.TokenIssuer
	log         zerolog.Logger
	subjects    *services.SubjectService
	submissions *services.SubmissionService
	dashboard   *services.DashboardService
	research    *services.ResearchService
	analytics   *services.AnalyticsService
	consent     *services.ConsentService
	auth        *services.AuthService
}

func NewRouter(store Store, engine *screening.Engine, issuer *middleware.TokenIssuer, tokenTTL time.Duration, log zerolog.Logger) *Router {
	return &Router{
		store:       store,
		engine:      engine,
		issuer:      issuer,
		log:         log,
		subjects:    services.NewSubjectService(store),
		submissions: services.NewSubmissionService(store, engine, log),
		dashboard:   services.NewDashboardService(store),
		research:    services.NewResearchService(store),
		analytics:   services.NewAnalyticsService(store, engine),
		consent:     services.NewConsentService(store),
		auth:        services.NewAuthService(store, issuer.Sign, tokenTTL),
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", rt.handleRegister)
	mux.HandleFunc("POST /api/auth/login", rt.handleLogin)

	mux.HandleFunc("GET /api/questionnaires", rt.handleQuestionnaires)
	mux.HandleFunc("GET /api/questionnaires/{test}", rt.handleQuestionnaire)

	mux.Handle("POST /api/subjects", rt.authed(rt.handleRegisterSubject))
	mux.Handle("GET /api/subjects/{id}", rt.authed(rt.handleGetSubject))
	mux.Handle("GET /api/subjects/{id}/eligibility", rt.authed(rt.handleEligibility))
	mux.Handle("GET /api/subjects/{id}/results", rt.authed(rt.handleSubjectResults))
	mux.Handle("PUT /api/subjects/{id}/consent", rt.authed(rt.handleConsent))

	mux.Handle("POST /api/screenings/{test}", rt.authed(rt.handleSubmit))

	mux.Handle("GET /api/dashboard", rt.authed(rt.handleDashboard))
	mux.Handle("GET /api/dashboard/export", rt.authed(rt.handleDashboardExport))
	mux.Handle("GET /api/research/summary", rt.authed(rt.handleResearchSummary))
	mux.Handle("GET /api/research/export", rt.authed(rt.handleResearchExport))
	mux.Handle("GET /api/analytics/{test}", rt.authed(rt.handleAnalytics))
	mux.Handle("GET /api/analytics/{test}/export", rt.authed(rt.handleAnalyticsExport))
	mux.Handle("GET /api/audit", rt.authed(rt.handleAudit))
}

// authed requires a valid bearer token. Role checks stay in the services.
func (rt *Router) authed(h http.HandlerFunc) http.Handler {
	return rt.issuer.WithAuth(middleware.RequireAuth(h))
}

// POST /api/auth/register
func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.auth.Register(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	res, err := rt.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type questionnaireInfo struct {
	Test        screening.TestType `json:"test_type"`
	Name        string             `json:"name"`
	Version     string             `json:"version"`
	Items       int                `json:"items"`
	MaxScore    int                `json:"max_score"`
	Respondents []string           `json:"respondents,omitempty"`
}

// GET /api/questionnaires
func (rt *Router) handleQuestionnaires(w http.ResponseWriter, r *http.Request) {
	defs := rt.engine.Definitions()
	out := make([]questionnaireInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, questionnaireInfo{
			Test:        d.Test,
			Name:        d.Name,
			Version:     d.Version,
			Items:       len(d.Items),
			MaxScore:    d.MaxScore(),
			Respondents: d.Respondents,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"questionnaires": out})
}

// GET /api/questionnaires/{test}
func (rt *Router) handleQuestionnaire(w http.ResponseWriter, r *http.Request) {
	test, err := screening.ParseTestType(r.PathValue("test"))
	if err != nil {
		rt.writeError(w, r, services.NewNotFoundError(err.Error()))
		return
	}
	def, err := rt.engine.Definition(test)
	if err != nil {
		rt.writeError(w, r, services.NewNotFoundError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// POST /api/subjects
func (rt *Router) handleRegisterSubject(w http.ResponseWriter, r *http.Request) {
	var in services.SubjectInput
	if err := decodeBody(w, r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}
	subj, err := rt.subjects.RegisterOrFetchSubject(r.Context(), middleware.SessionFromContext(r.Context()), in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subj)
}

// GET /api/subjects/{id}
func (rt *Router) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	subj, err := rt.subjects.Subject(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subj)
}

// GET /api/subjects/{id}/eligibility?test=assq
func (rt *Router) handleEligibility(w http.ResponseWriter, r *http.Request) {
	test, err := screening.ParseTestType(r.URL.Query().Get("test"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	out, err := rt.subjects.Eligibility(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), test)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/subjects/{id}/results
func (rt *Router) handleSubjectResults(w http.ResponseWriter, r *http.Request) {
	results, err := rt.dashboard.SubjectResults(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// PUT /api/subjects/{id}/consent {"research_consent": true}
func (rt *Router) handleConsent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ResearchConsent *bool `json:"research_consent"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if req.ResearchConsent == nil {
		rt.writeError(w, r, services.NewInvalidError("research_consent required"))
		return
	}
	subj, err := rt.consent.SetResearchConsent(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), *req.ResearchConsent)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subj)
}

// POST /api/screenings/{test}
// {subject_id, answers: {"1": "yes", ...}, age, respondent}
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	test, err := screening.ParseTestType(r.PathValue("test"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req struct {
		SubjectID  string          `json:"subject_id"`
		Answers    json.RawMessage `json:"answers"`
		Age        int             `json:"age"`
		Respondent string          `json:"respondent"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	if req.SubjectID == "" {
		rt.writeError(w, r, services.NewInvalidError("subject_id required"))
		return
	}
	answers := screening.AnswerSet{}
	if len(req.Answers) > 0 {
		if answers, err = screening.DecodeAnswers(req.Answers); err != nil {
			rt.writeError(w, r, err)
			return
		}
	}
	rec, err := rt.submissions.Submit(r.Context(), middleware.SessionFromContext(r.Context()), services.SubmissionRequest{
		SubjectID:  req.SubjectID,
		Test:       test,
		Answers:    answers,
		Age:        req.Age,
		Respondent: req.Respondent,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func dashboardQuery(r *http.Request) services.DashboardQuery {
	q := r.URL.Query()
	return services.DashboardQuery{
		Risk:   q.Get("risk"),
		Region: q.Get("region"),
		Search: q.Get("q"),
	}
}

// GET /api/dashboard?risk=&region=&q=
func (rt *Router) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := rt.dashboard.Overview(r.Context(), middleware.SessionFromContext(r.Context()), dashboardQuery(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GET /api/dashboard/export?risk=&region=&q=
func (rt *Router) handleDashboardExport(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if !sess.IsSpecialist() {
		rt.writeError(w, r, services.NewForbiddenError("specialist role required"))
		return
	}
	d, err := rt.dashboard.Overview(r.Context(), sess, dashboardQuery(r))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	b, err := services.ExportDashboardCSV(d.Rows)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeCSV(w, "dashboard.csv", b)
}

// GET /api/research/summary
func (rt *Router) handleResearchSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := rt.research.Summary(r.Context(), middleware.SessionFromContext(r.Context()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

// GET /api/research/export
func (rt *Router) handleResearchExport(w http.ResponseWriter, r *http.Request) {
	recs, err := rt.research.Consented(r.Context(), middleware.SessionFromContext(r.Context()))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	b, err := services.ExportResearchCSV(recs)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeCSV(w, "research.csv", b)
}

// GET /api/analytics/{test}
func (rt *Router) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	test, err := screening.ParseTestType(r.PathValue("test"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	sum, err := rt.analytics.Summary(r.Context(), middleware.SessionFromContext(r.Context()), test)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/analytics/{test}/export
func (rt *Router) handleAnalyticsExport(w http.ResponseWriter, r *http.Request) {
	test, err := screening.ParseTestType(r.PathValue("test"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	b, err := rt.analytics.ItemsCSV(r.Context(), middleware.SessionFromContext(r.Context()), test)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeCSV(w, string(test)+"_items.csv", b)
}

// GET /api/audit?limit=100
func (rt *Router) handleAudit(w http.ResponseWriter, r *http.Request) {
	if !middleware.SessionFromContext(r.Context()).IsSpecialist() {
		rt.writeError(w, r, services.NewForbiddenError("specialist role required"))
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			rt.writeError(w, r, services.NewInvalidError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	entries, err := rt.store.ListAudit(r.Context(), limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
