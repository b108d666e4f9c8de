package http

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/analysis"
	"interview-analyzer/pkg/correlation"
	"interview-analyzer/pkg/errors"
	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/speech"
)

// ScoreTextRequest is the body of POST /api/v1/score/text. Question may be
// omitted when response.question_id names a question in the loaded bank.
type ScoreTextRequest struct {
	Response interview.Response  `json:"response"`
	Question *interview.Question `json:"question,omitempty"`
}

// ScoreSpeechRequest is the body of POST /api/v1/score/speech. Without volume
// samples the metrics are estimated from the transcript and response time.
type ScoreSpeechRequest struct {
	Transcript          string    `json:"transcript"`
	VolumeSamples       []float64 `json:"volume_samples,omitempty"`
	DurationSeconds     float64   `json:"duration_seconds"`
	ResponseTimeSeconds float64   `json:"response_time_seconds,omitempty"`
}

// SubmitRequest is the body of POST /api/v1/responses
type SubmitRequest struct {
	Response interview.Response  `json:"response"`
	Question *interview.Question `json:"question,omitempty"`
	Priority string              `json:"priority,omitempty"`
}

// SubmitResponse carries the immediate analysis and where the response now
// sits in the pipeline
type SubmitResponse struct {
	ResponseID string                     `json:"response_id"`
	State      string                     `json:"state"`
	Analysis   interview.ResponseAnalysis `json:"analysis"`
}

func (s *Server) handleScoreText(w http.ResponseWriter, r *http.Request) {
	var req ScoreTextRequest
	if err := s.decode(w, r, &req); err != nil {
		s.ErrorResponse(w, r, err)
		return
	}

	question, err := s.resolveQuestion(req.Question, req.Response.QuestionID)
	if err != nil {
		s.ErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.text.Score(req.Response, question))
}

func (s *Server) handleScoreSpeech(w http.ResponseWriter, r *http.Request) {
	var req ScoreSpeechRequest
	if err := s.decode(w, r, &req); err != nil {
		s.ErrorResponse(w, r, err)
		return
	}
	if req.DurationSeconds < 0 || req.ResponseTimeSeconds < 0 {
		s.ErrorResponse(w, r, errors.NewInvalidInput("durations must not be negative"))
		return
	}

	var result speech.Analysis
	if len(req.VolumeSamples) == 0 {
		responseTime := req.ResponseTimeSeconds
		if responseTime == 0 {
			responseTime = req.DurationSeconds
		}
		result = s.speech.Fallback(req.Transcript, responseTime)
	} else {
		result = s.speech.Score(req.Transcript, req.VolumeSamples, req.DurationSeconds)
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := s.decode(w, r, &req); err != nil {
		s.ErrorResponse(w, r, err)
		return
	}

	question, err := s.resolveQuestion(req.Question, req.Response.QuestionID)
	if err != nil {
		s.ErrorResponse(w, r, err)
		return
	}
	if req.Response.QuestionID == "" {
		req.Response.QuestionID = question.ID
	}

	result, err := s.orchestrator.Submit(r.Context(), req.Response, question, analysis.ParsePriority(req.Priority))
	if err != nil {
		s.ErrorResponse(w, r, err)
		return
	}

	state, _ := s.orchestrator.State(result.ResponseID)
	correlation.LoggerFromContext(r.Context(), s.logger).WithFields(logrus.Fields{
		"response_id": result.ResponseID,
		"stage":       result.Stage,
		"state":       state.String(),
	}).Debug("Response submitted over HTTP")

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		ResponseID: result.ResponseID,
		State:      state.String(),
		Analysis:   result,
	})
}

func (s *Server) handleResponseState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, ok := s.orchestrator.State(id)
	if !ok {
		s.ErrorResponse(w, r, errors.NewNotFound("response not tracked", map[string]interface{}{"response_id": id}))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"response_id": id,
		"state":       state.String(),
		"terminal":    state.Terminal(),
	})
}

func (s *Server) handleAnalyzeSession(w http.ResponseWriter, r *http.Request) {
	var session interview.Session
	if err := s.decode(w, r, &session); err != nil {
		s.ErrorResponse(w, r, err)
		return
	}
	if session.ID == "" {
		s.ErrorResponse(w, r, errors.NewInvalidInput("session id is required"))
		return
	}
	s.completeQuestions(&session)

	writeJSON(w, http.StatusOK, s.orchestrator.AnalyzeSession(r.Context(), &session))
}

// completeQuestions adds bank questions for responses whose question the
// client did not send
func (s *Server) completeQuestions(session *interview.Session) {
	if s.bank == nil {
		return
	}
	for _, resp := range session.Responses {
		if resp.QuestionID == "" {
			continue
		}
		if _, ok := session.Question(resp.QuestionID); ok {
			continue
		}
		if q, err := s.bank.Find(resp.QuestionID); err == nil {
			session.Questions = append(session.Questions, q)
		}
	}
}

func (s *Server) resolveQuestion(inline *interview.Question, questionID string) (interview.Question, error) {
	if inline != nil && inline.Text != "" {
		q := *inline
		if q.Type == "" {
			q.Type = interview.QuestionGeneral
		}
		return q, nil
	}
	if s.bank != nil && questionID != "" {
		return s.bank.Find(questionID)
	}
	return interview.Question{}, errors.NewInvalidInput("question text or a known question_id is required",
		map[string]interface{}{"question_id": questionID})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errors.Wrap(errors.ErrInvalidInput, "invalid request body: "+err.Error())
	}
	return nil
}
