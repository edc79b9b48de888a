package model

import (
	"errors"
)

var (
	ErrNoMatch        = errors.New("no match")
	ErrInvalidTarget  = errors.New("invalid target")
	ErrNotRTSP        = errors.New("not an rtsp service")
	ErrBudgetExceeded = errors.New("time budget exceeded")
	ErrAborted        = errors.New("aborted by operator")
)
