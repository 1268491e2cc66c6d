package intake

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageConnect  Stage = "connect"
	StageList     Stage = "list"
	StageFetch    Stage = "fetch"
	StageParse    Stage = "parse"
	StageCard     Stage = "create_card"
	StageNotify   Stage = "notify"
	StageMarkSeen Stage = "mark_seen"
)

// Fatal stages end the run; the rest are logged and the run continues.
func (s Stage) Fatal() bool {
	switch s {
	case StageConnect, StageList, StageFetch:
		return true
	}
	return false
}

type StageError struct {
	Stage Stage
	UID   uint32 // 0 when not tied to a message
	Err   error
}

func (e *StageError) Error() string {
	if e.UID != 0 {
		return fmt.Sprintf("%s uid %d: %v", e.Stage, e.UID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsFatal reports whether err came from a stage that aborts the run.
func IsFatal(err error) bool {
	var se *StageError
	return errors.As(err, &se) && se.Stage.Fatal()
}
