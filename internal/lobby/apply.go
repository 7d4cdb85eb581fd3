package lobby

import (
	"fmt"
	"strings"
	"time"

	"github.com/DoyleJ11/tourney/internal/protocol"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

var ErrImpersonation = fmt.Errorf("%w: message names a different player than the connection", tournament.ErrRejected)
var ErrNotJoined = fmt.Errorf("%w: connection has not joined", tournament.ErrRejected)
var ErrUnexpectedMessage = fmt.Errorf("%w: message is not accepted by the host", tournament.ErrRejected)
var ErrAlreadyJoined = fmt.Errorf("%w: connection already joined", tournament.ErrRejected)

type Snapshot struct {
	Version int
	State   tournament.State
}

func (s Snapshot) Update() protocol.StateUpdate {
	return protocol.StateUpdate{Version: s.Version, State: s.State}
}

// ApplyAndBroadcast is the host's whole mutation step: it applies one inbound
// message from the player bound to the sending connection (sender is empty
// before a join) and returns what must go out to every participant. A
// rejected message returns cur and nothing to send.
func ApplyAndBroadcast(cur Snapshot, sender string, msg protocol.Message) (Snapshot, []protocol.Message, error) {
	switch m := msg.(type) {
	case protocol.JoinRequest:
		// one player per connection; a second name would outlive the connection
		if sender != "" {
			return cur, nil, ErrAlreadyJoined
		}
		return applyCommand(cur, tournament.Command{Type: tournament.CmdJoin, PlayerID: m.Name})

	case protocol.StartRequest:
		if err := checkSender(sender, m.PlayerID); err != nil {
			return cur, nil, err
		}
		return applyCommand(cur, tournament.Command{Type: tournament.CmdStart, PlayerID: m.PlayerID})

	case protocol.SubmitAnswer:
		if err := checkSender(sender, m.PlayerID); err != nil {
			return cur, nil, err
		}
		return applyCommand(cur, tournament.Command{
			Type:        tournament.CmdSubmitAnswer,
			PlayerID:    m.PlayerID,
			Answer:      m.Answer,
			TimeTakenMs: m.TimeTakenMs,
		})

	case protocol.ChatMessage:
		if sender == "" {
			return cur, nil, ErrNotJoined
		}
		text := strings.TrimSpace(m.Message)
		if text == "" {
			return cur, nil, fmt.Errorf("%w: empty chat message", tournament.ErrValidation)
		}
		if m.Timestamp == 0 {
			m.Timestamp = time.Now().UnixMilli()
		}
		return cur, []protocol.Message{protocol.ChatMessage{Name: sender, Message: text, Timestamp: m.Timestamp}}, nil

	default:
		return cur, nil, fmt.Errorf("%w: %s", ErrUnexpectedMessage, msg.Kind())
	}
}

// applyCommand runs cmd and, when it is accepted, bumps the version and
// produces exactly one state update.
func applyCommand(cur Snapshot, cmd tournament.Command) (Snapshot, []protocol.Message, error) {
	_, newState, err := tournament.Apply(cur.State, cmd)
	if err != nil {
		return cur, nil, err
	}
	next := Snapshot{Version: cur.Version + 1, State: newState}
	return next, []protocol.Message{next.Update()}, nil
}

func checkSender(sender, playerID string) error {
	if sender == "" {
		return ErrNotJoined
	}
	if sender != playerID {
		return ErrImpersonation
	}
	return nil
}
