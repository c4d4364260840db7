package httpapi

import (
	"net/http"

	"github.com/park285/Cheese-Chess-Arena/internal/session"
)

var kindStatus = map[session.Kind]int{
	session.KindNotFound:                http.StatusNotFound,
	session.KindInvalidInvitee:          http.StatusNotFound,
	session.KindNotInvited:              http.StatusForbidden,
	session.KindPlayerNotInSession:      http.StatusForbidden,
	session.KindNotYourTurn:             http.StatusForbidden,
	session.KindCannotRespondToOwnOffer: http.StatusForbidden,
	session.KindGameOver:                http.StatusConflict,
	session.KindNotJoinable:             http.StatusConflict,
	session.KindGameFull:                http.StatusConflict,
	session.KindAlreadyJoined:           http.StatusConflict,
	session.KindInvalidState:            http.StatusConflict,
	session.KindNoPendingOffer:          http.StatusConflict,
	session.KindIllegalMove:             http.StatusUnprocessableEntity,
	session.KindUnauthorized:            http.StatusUnauthorized,
	session.KindInvalidArgument:         http.StatusBadRequest,
}

func statusFor(err error) int {
	if kind, ok := session.KindOf(err); ok {
		if st, ok := kindStatus[kind]; ok {
			return st
		}
	}
	return http.StatusInternalServerError
}
