package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"dus-exam-service/internal/app"
	"dus-exam-service/internal/domain"
	"github.com/rs/zerolog"
)

// AdminTokenHeader carries the shared secret that grants the admin capability.
const AdminTokenHeader = "X-Admin-Token"

const maxParseBody = 64 << 10

// RESTHandler serves the read-side endpoints (leaderboard, results) and the
// admin authoring helpers.
type RESTHandler struct {
	service    *app.ExamService
	adminToken string
	log        zerolog.Logger
}

func NewRESTHandler(service *app.ExamService, adminToken string, log zerolog.Logger) *RESTHandler {
	return &RESTHandler{
		service:    service,
		adminToken: adminToken,
		log:        log.With().Str("component", "rest_handler").Logger(),
	}
}

// Register mounts the REST routes on mux.
func (h *RESTHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /exams/{id}/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /results/{id}", h.result)
	mux.HandleFunc("GET /results/{id}/rank", h.rank)
	mux.HandleFunc("GET /results/{id}/review", h.review)
	mux.HandleFunc("GET /lessons", h.lessons)
	mux.HandleFunc("POST /admin/parse", h.parse)
	mux.HandleFunc("GET /admin/results", h.recent)
}

type rankResponse struct {
	ResultID string `json:"resultId"`
	Rank     int    `json:"rank"`
	Total    int    `json:"total"`
}

type parseRequest struct {
	Text string `json:"text"`
}

type lessonsResponse struct {
	Category domain.Category `json:"category"`
	Lessons  []string        `json:"lessons"`
}

type errorResponse struct {
	Kind  domain.Kind `json:"kind"`
	Error string      `json:"error"`
}

func (h *RESTHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context(), r.PathValue("id"), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *RESTHandler) result(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *RESTHandler) rank(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rank, total, err := h.service.MyRank(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{ResultID: id, Rank: rank, Total: total})
}

func (h *RESTHandler) review(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Review(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *RESTHandler) lessons(w http.ResponseWriter, r *http.Request) {
	categories := []domain.Category{domain.CategoryFoundational, domain.CategoryClinical}
	if raw := r.URL.Query().Get("category"); raw != "" {
		c := domain.Category(raw)
		if !domain.ValidCategory(c) {
			h.writeError(w, domain.NewError(domain.KindValidation, "lessons", errors.New("unknown category "+raw)))
			return
		}
		categories = []domain.Category{c}
	}
	out := make([]lessonsResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, lessonsResponse{Category: c, Lessons: domain.LessonsFor(c)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RESTHandler) parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxParseBody))
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		h.writeError(w, domain.NewError(domain.KindValidation, "parse", err))
		return
	}
	draft, err := h.service.ParseQuestion(h.actor(r), req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (h *RESTHandler) recent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, domain.NewError(domain.KindValidation, "list results", errors.New("limit must be a non-negative integer")))
			return
		}
		limit = n
	}
	results, err := h.service.RecentResults(r.Context(), h.actor(r), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// actor resolves the caller. Without a configured token nobody is an admin.
func (h *RESTHandler) actor(r *http.Request) domain.Actor {
	token := r.Header.Get(AdminTokenHeader)
	if h.adminToken != "" && token != "" &&
		subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1 {
		return domain.Actor{Name: "admin", Role: domain.RoleAdmin}
	}
	return domain.Actor{Role: domain.RoleStudent}
}

func (h *RESTHandler) writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("kind", string(kind)).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Kind: kind, Error: err.Error()})
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindExpiredAccess, domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindPersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
