package handler

import (
	"net/http"

	"github.com/pavelanni/examhall/internal/exam"
)

type submitRequest struct {
	ExamID  int64              `json:"examId" validate:"required,gt=0"`
	Answers []exam.AnswerInput `json:"answers"`
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var draft exam.ExamDraft
	if !decodeJSON(w, r, &draft) {
		return
	}
	id, err := h.exams.Create(r.Context(), principal(r), draft)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (h *Handler) handleListCreated(w http.ResponseWriter, r *http.Request) {
	items, err := h.exams.ListCreated(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleListAvailable(w http.ResponseWriter, r *http.Request) {
	items, err := h.exams.ListAvailable(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleTake(w http.ResponseWriter, r *http.Request) {
	examID, ok := pathID(w, r, "examID")
	if !ok {
		return
	}
	view, err := h.exams.GetForTaking(r.Context(), principal(r), examID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleBegin(w http.ResponseWriter, r *http.Request) {
	examID, ok := pathID(w, r, "examID")
	if !ok {
		return
	}
	attempt, err := h.exams.Begin(r.Context(), principal(r), examID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := exam.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}
	score, err := h.exams.Submit(r.Context(), principal(r), req.ExamID, req.Answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	examID, ok := pathID(w, r, "examID")
	if !ok {
		return
	}
	rows, err := h.exams.GetResults(r.Context(), principal(r), examID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	resultID, ok := pathID(w, r, "resultID")
	if !ok {
		return
	}
	detail, err := h.exams.GetResult(r.Context(), principal(r), resultID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) handleReviewAnswer(w http.ResponseWriter, r *http.Request) {
	resultID, ok := pathID(w, r, "resultID")
	if !ok {
		return
	}
	answerID, ok := pathID(w, r, "answerID")
	if !ok {
		return
	}
	var in exam.ReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}
	answer, err := h.exams.ReviewAnswer(r.Context(), principal(r), resultID, answerID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *Handler) handleSuggestReview(w http.ResponseWriter, r *http.Request) {
	resultID, ok := pathID(w, r, "resultID")
	if !ok {
		return
	}
	answerID, ok := pathID(w, r, "answerID")
	if !ok {
		return
	}
	suggestion, err := h.exams.SuggestReview(r.Context(), principal(r), resultID, answerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}
