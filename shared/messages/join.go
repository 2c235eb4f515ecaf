package messages

// JoinRequest is sent by a client after connecting to request joining the
// session. ParticipantID is the client's stable identity.
type JoinRequest struct {
	Version       string
	ParticipantID string
}

// JoinAccepted is sent by the host when a client's join request is accepted.
type JoinAccepted struct {
	ParticipantID string
	HostID        string
	ServerName    string
	TickRate      int
}

// JoinRejected is sent by the host when a client's join request is rejected.
type JoinRejected struct {
	Reason string
}
