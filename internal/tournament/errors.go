package tournament

import (
	"errors"
	"fmt"
)

var ErrConnection = errors.New("connection error")
var ErrValidation = errors.New("validation error")
var ErrNotFound = errors.New("tournament not found")

// ErrRejected is the category of every mutation refused by Apply.
var ErrRejected = errors.New("rejected mutation")

var (
	ErrJoinClosed         = fmt.Errorf("%w: tournament is no longer accepting players", ErrRejected)
	ErrNotCreator         = fmt.Errorf("%w: only the creator can start the tournament", ErrRejected)
	ErrNotWaiting         = fmt.Errorf("%w: tournament already started", ErrRejected)
	ErrNotPlaying         = fmt.Errorf("%w: tournament is not being played", ErrRejected)
	ErrUnknownPlayer      = fmt.Errorf("%w: unknown player", ErrRejected)
	ErrCreatorStays       = fmt.Errorf("%w: the creator stays until the tournament starts", ErrRejected)
	ErrPlayerFinished     = fmt.Errorf("%w: player already answered every question", ErrRejected)
	ErrTournamentFinished = fmt.Errorf("%w: tournament is finished", ErrRejected)
	ErrUnsupportedCommand = fmt.Errorf("%w: unsupported command", ErrRejected)
)
