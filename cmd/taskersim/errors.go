package main

import "errors"

var (
	ErrScenario       = errors.New("invalid scenario")
	ErrNoTasks        = errors.New("scenario has no tasks")
	ErrTooManyTasks   = errors.New("too many tasks for target")
	ErrSpinningTask   = errors.New("task neither works nor sleeps")
	ErrUnboundedRun   = errors.New("scenario must limit the number of ticks")
	ErrTargetTableBad = errors.New("failed to load target table")
)
