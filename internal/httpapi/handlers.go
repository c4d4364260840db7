package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/park285/Cheese-Chess-Arena/internal/adapter/chesspresenter"
	"github.com/park285/Cheese-Chess-Arena/internal/auth"
	"github.com/park285/Cheese-Chess-Arena/internal/history"
	"github.com/park285/Cheese-Chess-Arena/internal/obslog"
	"github.com/park285/Cheese-Chess-Arena/internal/session"
	"github.com/park285/Cheese-Chess-Arena/pkg/chessdto"
	"go.uber.org/zap"
)

const maxBodyBytes = 16 << 10

func (a *api) createGame(w http.ResponseWriter, r *http.Request) {
	var req chessdto.CreateGameRequest
	if !a.decode(w, r, &req, true) {
		return
	}
	a.exec(w, r, http.StatusCreated, chessdto.Command{Type: chessdto.CmdCreate, Create: &req})
}

func (a *api) listLobby(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Lobby.List(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chessdto.LobbyResponse{Games: chesspresenter.ToLobbyEntries(entries)})
}

func (a *api) getGame(w http.ResponseWriter, r *http.Request) {
	a.exec(w, r, http.StatusOK, a.command(r, chessdto.CmdGet))
}

func (a *api) join(w http.ResponseWriter, r *http.Request) {
	a.exec(w, r, http.StatusOK, a.command(r, chessdto.CmdJoin))
}

func (a *api) accept(w http.ResponseWriter, r *http.Request) {
	a.exec(w, r, http.StatusOK, a.command(r, chessdto.CmdAccept))
}

func (a *api) decline(w http.ResponseWriter, r *http.Request) {
	a.exec(w, r, http.StatusOK, a.command(r, chessdto.CmdDecline))
}

func (a *api) offerDraw(w http.ResponseWriter, r *http.Request) {
	a.exec(w, r, http.StatusOK, a.command(r, chessdto.CmdOfferDraw))
}

func (a *api) resign(w http.ResponseWriter, r *http.Request) {
	a.exec(w, r, http.StatusOK, a.command(r, chessdto.CmdResign))
}

func (a *api) move(w http.ResponseWriter, r *http.Request) {
	var req chessdto.MoveRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	cmd := a.command(r, chessdto.CmdMove)
	cmd.Move = &req
	a.exec(w, r, http.StatusOK, cmd)
}

func (a *api) respondDraw(w http.ResponseWriter, r *http.Request) {
	var req chessdto.DrawResponseRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	cmd := a.command(r, chessdto.CmdRespondDraw)
	cmd.Accepted = req.Accepted
	a.exec(w, r, http.StatusOK, cmd)
}

// pgn exports the live session, or the stored record once the session has
// expired from the store.
func (a *api) pgn(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	sid := chi.URLParam(r, "id")
	var text string
	s, err := a.Router.View(r.Context(), sid, id.UserID)
	switch {
	case err == nil:
		text = history.FromSession(s).PGN
	case errors.Is(err, session.ErrNotFound) && a.History != nil:
		rec, rerr := a.History.Record(r.Context(), sid)
		if rerr != nil {
			a.fail(w, rerr)
			return
		}
		if rec == nil || (rec.WhiteID != id.UserID && rec.BlackID != id.UserID) {
			a.fail(w, err)
			return
		}
		text = rec.PGN
	default:
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-chess-pgn; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+sid+`.pgn"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

func (a *api) history(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.fail(w, session.Errorf(session.KindInvalidArgument, "", "invalid limit %q", raw))
			return
		}
		limit = n
	}
	entries, err := a.History.History(r.Context(), id.UserID, limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chessdto.HistoryResponse{Games: chesspresenter.ToHistoryEntries(entries)})
}

func (a *api) suggest(w http.ResponseWriter, r *http.Request) {
	var req chessdto.SuggestRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	s, err := a.Suggester.Suggest(r.Context(), req.FEN)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chessdto.Suggestion{MoveUCI: s.UCI, MoveSAN: s.SAN, Source: s.Source, EvalCP: s.EvalCP, Mate: s.Mate})
}

func (a *api) command(r *http.Request, typ string) chessdto.Command {
	return chessdto.Command{Type: typ, SessionID: chi.URLParam(r, "id"), RequestID: r.Header.Get("X-Request-Id")}
}

func (a *api) exec(w http.ResponseWriter, r *http.Request, okStatus int, cmd chessdto.Command) {
	id, _ := auth.FromContext(r.Context())
	s, err := a.Router.Execute(r.Context(), id.UserID, cmd)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, okStatus, chessdto.SessionResponse{Session: *chesspresenter.ToSessionView(s)})
}

// decode reads a JSON body into v. An empty body is accepted when
// allowEmpty is set.
func (a *api) decode(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	a.fail(w, session.Errorf(session.KindInvalidArgument, "", "invalid request body: %v", err))
	return false
}

func (a *api) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		obslog.L().Error("http_internal_error", zap.Error(err))
	}
	writeJSON(w, status, chessdto.ErrorResponse{Error: a.Presenter.Error(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
