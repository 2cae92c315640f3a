package http

import (
	"net/http"

	"carteira/internal/middleware/owner"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	const op = "create_goal"

	var req goalRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, s.record(op, err))
		return
	}

	goal, err := s.svc.Goals.CreateGoal(r.Context(), owner.FromContext(r.Context()), req.input())
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	CreatedResponse(newGoalView(goal)).Write(w)
}

// handleListGoals lists active goals unless ?active=false.
func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	const op = "list_goals"

	activeOnly, err := ParseBool(r.URL.Query(), "active", true)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}

	goals, err := s.svc.Goals.ListGoals(r.Context(), owner.FromContext(r.Context()), activeOnly)
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newGoalViews(goals)).Write(w)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	const op = "get_goal"

	goal, err := s.svc.Goals.GetGoal(r.Context(), owner.FromContext(r.Context()), chi.URLParam(r, "id"))
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newGoalView(goal)).Write(w)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	const op = "update_goal"

	var req goalPatchRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, s.record(op, err))
		return
	}

	goal, err := s.svc.Goals.UpdateGoal(r.Context(), owner.FromContext(r.Context()), chi.URLParam(r, "id"), req.patch())
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newGoalView(goal)).Write(w)
}

// handleDeactivateGoal soft-deletes: the goal stays readable but inactive.
func (s *Server) handleDeactivateGoal(w http.ResponseWriter, r *http.Request) {
	const op = "deactivate_goal"
	id := chi.URLParam(r, "id")

	err := s.svc.Goals.DeactivateGoal(r.Context(), owner.FromContext(r.Context()), id)
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(deletedView{ID: id, Deleted: true}).Write(w)
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	const op = "contribute"

	var req contributionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, s.record(op, err))
		return
	}

	goal, err := s.svc.Goals.Contribute(r.Context(), owner.FromContext(r.Context()), chi.URLParam(r, "id"), req.Amount)
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newGoalView(goal)).Write(w)
}

func (s *Server) handleGoalProgress(w http.ResponseWriter, r *http.Request) {
	const op = "goal_progress"

	p, err := s.svc.Goals.Progress(r.Context(), owner.FromContext(r.Context()), chi.URLParam(r, "id"))
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newGoalProgressView(p)).Write(w)
}

func (s *Server) handleGoalsStats(w http.ResponseWriter, r *http.Request) {
	const op = "goals_stats"

	stats, err := s.svc.Reports.GoalsStats(r.Context(), owner.FromContext(r.Context()))
	if s.record(op, err) != nil {
		s.fail(w, r, op, err)
		return
	}
	DataResponse(newGoalsStatsView(stats)).Write(w)
}
