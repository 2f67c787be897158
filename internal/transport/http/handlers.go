package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"daily-trivia-service/internal/app"
	"daily-trivia-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// API serves the REST surface of the trivia service.
type API struct {
	service     *app.TriviaService
	validate    *validator.Validate
	adminSecret string
	logger      *zap.Logger
}

func NewAPI(service *app.TriviaService, adminSecret string, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:     service,
		validate:    validator.New(),
		adminSecret: adminSecret,
		logger:      logger,
	}
}

type submitRequest struct {
	Username string          `json:"username" validate:"required,max=64"`
	Answers  []answerRequest `json:"answers" validate:"required"`
}

// answerRequest accepts both camelCase and snake_case field names.
type answerRequest struct {
	QuestionID int
	Selected   string
}

func (a *answerRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		QuestionID     json.RawMessage `json:"questionId"`
		QuestionIDAlt  json.RawMessage `json:"question_id"`
		Selected       *string         `json:"selected"`
		SelectedOption *string         `json:"selected_option"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	idRaw := raw.QuestionID
	if len(idRaw) == 0 {
		idRaw = raw.QuestionIDAlt
	}
	id, err := parseQuestionID(idRaw)
	if err != nil {
		return err
	}
	a.QuestionID = id
	switch {
	case raw.Selected != nil:
		a.Selected = *raw.Selected
	case raw.SelectedOption != nil:
		a.Selected = *raw.SelectedOption
	}
	return nil
}

// parseQuestionID takes a JSON number or a numeric string.
func parseQuestionID(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("questionId is required")
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("questionId: %w", err)
	}
	return strconv.Atoi(strings.TrimSpace(s))
}

type resetRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	DayIndex int    `json:"dayIndex" validate:"omitempty,min=1"`
}

type submitResponse struct {
	Success        bool                      `json:"success"`
	DayIndex       int                       `json:"dayIndex"`
	Score          int                       `json:"score"`
	Results        []domain.AnswerResult     `json:"results"`
	CorrectAnswers map[int]domain.Option     `json:"correctAnswers"`
	Explanations   map[int]string            `json:"explanations"`
	Leaderboard    []domain.LeaderboardEntry `json:"leaderboard"`
}

type leaderboardResponse struct {
	DayIndex    int                       `json:"dayIndex"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

type questionsResponse struct {
	DayIndex  int                     `json:"dayIndex"`
	Questions []domain.PublicQuestion `json:"questions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "dayIndex": a.service.DayIndex()})
}

func (a *API) Day(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"dayIndex": a.service.DayIndex()})
}

func (a *API) DailyStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.service.Status(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		a.writeError(w, r, err, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) Questions(w http.ResponseWriter, r *http.Request) {
	day, questions, err := a.service.QuestionsForUser(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		a.writeError(w, r, err, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, questionsResponse{DayIndex: day, Questions: questions})
}

func (a *API) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err, "")
		return
	}

	answers := make([]domain.Answer, 0, len(req.Answers))
	for _, ans := range req.Answers {
		answers = append(answers, domain.Answer{QuestionID: ans.QuestionID, Selected: domain.Option(ans.Selected)})
	}

	result, err := a.service.Submit(r.Context(), req.Username, answers)
	if err != nil {
		a.writeError(w, r, err, "Submission failed")
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		Success:        true,
		DayIndex:       result.DayIndex,
		Score:          result.Score,
		Results:        result.Results,
		CorrectAnswers: result.CorrectAnswers,
		Explanations:   result.Explanations,
		Leaderboard:    result.Leaderboard.Entries,
	})
}

func (a *API) Leaderboard(w http.ResponseWriter, r *http.Request) {
	day := a.service.DayIndex()
	if raw := r.URL.Query().Get("day"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			a.writeError(w, r, domain.ErrInvalidInput, "")
			return
		}
		day = n
	}
	lb, err := a.service.LeaderboardFor(r.Context(), day)
	if err != nil {
		a.writeError(w, r, err, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{DayIndex: lb.DayIndex, Leaderboard: lb.Entries})
}

func (a *API) ResetUser(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		a.writeError(w, r, domain.ErrUnauthorized, "")
		return
	}
	var req resetRequest
	if err := a.decode(w, r, &req); err != nil {
		a.writeError(w, r, err, "")
		return
	}
	if req.DayIndex == 0 {
		req.DayIndex = a.service.DayIndex()
	}
	summary, err := a.service.ResetAttempt(r.Context(), req.Username, req.DayIndex)
	if err != nil {
		a.writeError(w, r, err, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Reset complete for %s on day %d", summary.Username, summary.DayIndex),
		"summary": summary,
	})
}

func (a *API) authorized(r *http.Request) bool {
	if a.adminSecret == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.adminSecret)) == 1
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if err := a.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

// writeError maps domain errors to fixed public messages; internal details
// only go to the log.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, message := http.StatusInternalServerError, fallback
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status, message = http.StatusBadRequest, "Invalid payload"
	case errors.Is(err, domain.ErrAlreadyPlayed):
		status, message = http.StatusForbidden, "You have already played today"
	case errors.Is(err, domain.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, domain.ErrStoreUnavailable):
		status, message = http.StatusServiceUnavailable, "Service temporarily unavailable, please retry"
	}
	if message == "" {
		message = "Internal server error"
	}

	logger := a.logger.With(zap.String("path", r.URL.Path), zap.String("request_id", RequestID(r.Context())))
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
