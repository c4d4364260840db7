package chessdto

// Command is a client frame on the websocket, also built by the HTTP API.
// RequestID is echoed on the ack or error that answers it.
type Command struct {
	Type      string             `json:"type"`
	RequestID string             `json:"requestId,omitempty"`
	SessionID string             `json:"sessionId,omitempty"`
	Create    *CreateGameRequest `json:"create,omitempty"`
	Move      *MoveRequest       `json:"move,omitempty"`
	Accepted  *bool              `json:"accepted,omitempty"`
}

const (
	CmdCreate           = "create"
	CmdJoin             = "join"
	CmdAccept           = "accept_invitation"
	CmdDecline          = "decline_invitation"
	CmdMove             = "move"
	CmdOfferDraw        = "offer_draw"
	CmdRespondDraw      = "respond_draw"
	CmdResign           = "resign"
	CmdGet              = "get"
	CmdSubscribeLobby   = "subscribe_lobby"
	CmdUnsubscribeLobby = "unsubscribe_lobby"
	CmdPing             = "ping"
)

// Envelope is every server frame. Session carries the full state for
// session events; Lobby carries the snapshot for lobby_updated.
type Envelope struct {
	Type      string       `json:"type"`
	RequestID string       `json:"requestId,omitempty"`
	SessionID string       `json:"sessionId,omitempty"`
	Version   int64        `json:"version,omitempty"`
	Actor     string       `json:"actor,omitempty"`
	Session   *SessionView `json:"session,omitempty"`
	Lobby     []LobbyEntry `json:"lobby,omitempty"`
	Accepted  *bool        `json:"accepted,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Winner    string       `json:"winner,omitempty"`
	Message   string       `json:"message,omitempty"`
	Error     *DomainError `json:"error,omitempty"`
}

const (
	EnvLobbyUpdated = "lobby_updated"
	EnvAck          = "ack"
	EnvError        = "error"
	EnvPong         = "pong"
)
