package adapthttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"parkgate/internal/app"
	"parkgate/internal/domain"
)

const (
	actionEntry           = "entry"
	actionExit            = "exit"
	actionAddMonthly      = "addMonthly"
	actionAddBlacklist    = "addBlacklist"
	actionRemoveBlacklist = "removeBlacklist"
)

var adminActions = map[string]domain.Operation{
	actionEntry:           domain.OpEntry,
	actionExit:            domain.OpExit,
	actionAddMonthly:      domain.OpMonthly,
	actionAddBlacklist:    domain.OpBlacklist,
	actionRemoveBlacklist: domain.OpUnblacklist,
}

type vehicleRequest struct {
	Token     string `json:"token,omitempty"`
	Plate     string `json:"license_plate"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp,omitempty"`
	Days      int    `json:"days,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := parseJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.botPrincipal(r.Context(), req.Token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Action != actionEntry && req.Action != actionExit {
		s.writeError(w, r, fmt.Errorf("%w: invalid action %q", errBadRequest, req.Action))
		return
	}
	s.dispatch(w, r.WithContext(app.WithPrincipal(r.Context(), p)), p, req)
}

// botPrincipal accepts a bot session token or a bot's shared key.
func (s *Server) botPrincipal(ctx context.Context, token string) (domain.Principal, error) {
	p, err := s.auth.Validate(ctx, token)
	if errors.Is(err, app.ErrInvalidToken) {
		p, err = s.auth.AuthenticateBotKey(ctx, token)
	}
	if err != nil {
		return domain.Principal{}, err
	}
	if p.Role != domain.RoleBot {
		return domain.Principal{}, fmt.Errorf("%w: bot access required", app.ErrForbidden)
	}
	return p, nil
}

func (s *Server) handleAdminVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := parseJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, _ := app.PrincipalFromContext(r.Context())
	if _, ok := adminActions[req.Action]; !ok {
		s.writeError(w, r, fmt.Errorf("%w: invalid action %q", errBadRequest, req.Action))
		return
	}
	s.dispatch(w, r, p, req)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, p domain.Principal, req vehicleRequest) {
	if err := s.auth.Authorize(p, adminActions[req.Action]); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()

	switch req.Action {
	case actionEntry, actionExit:
		at, err := s.requestTime(req.Timestamp)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Action == actionEntry {
			res, err := s.lifecycle.Entry(ctx, req.Plate, at)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			writeSuccess(w, map[string]any{"message": res.Message})
			return
		}
		res, err := s.lifecycle.Exit(ctx, req.Plate, at)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeSuccess(w, map[string]any{
			"message":          res.Message,
			"parking_duration": res.Duration,
			"fee":              res.Fee,
		})
	case actionAddMonthly:
		res, err := s.lifecycle.GrantMonthly(ctx, req.Plate, req.Days)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeSuccess(w, map[string]any{"message": res.Message, "monthly_expiry": res.Expiry})
	case actionAddBlacklist, actionRemoveBlacklist:
		op := s.lifecycle.Blacklist
		if req.Action == actionRemoveBlacklist {
			op = s.lifecycle.Unblacklist
		}
		msg, err := op(ctx, req.Plate)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeSuccess(w, map[string]any{"message": msg})
	}
}

func (s *Server) handleListPlates(w http.ResponseWriter, r *http.Request) {
	s.listPlates(w, r, s.reports.ListPlates)
}

func (s *Server) handleListInside(w http.ResponseWriter, r *http.Request) {
	s.listPlates(w, r, s.reports.ListInside)
}

func (s *Server) listPlates(w http.ResponseWriter, r *http.Request, list func(context.Context) ([]string, error)) {
	if !s.authorized(w, r, domain.OpList) {
		return
	}
	plates, err := list(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if plates == nil {
		plates = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"plates": plates})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r, domain.OpQuery) {
		return
	}
	report, err := s.reports.Lookup(r.Context(), r.PathValue("plate"), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDuration(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r, domain.OpQuery) {
		return
	}
	at, err := s.requestTime(r.URL.Query().Get("at"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.lifecycle.QueryDuration(r.Context(), r.PathValue("plate"), at)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, map[string]any{"parking_duration": res.Duration, "fee": res.Fee})
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request, op domain.Operation) bool {
	p, _ := app.PrincipalFromContext(r.Context())
	if err := s.auth.Authorize(p, op); err != nil {
		s.writeError(w, r, err)
		return false
	}
	return true
}
