package domain

import "errors"

var (
	// Common domain errors
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// Research job errors
	ErrJobNotFound = errors.New("research job not found in cluster")
	ErrNoPodForJob = errors.New("no pod found for research job")
	ErrNoResult    = errors.New("research job produced no result")
	ErrRateLimited = errors.New("too many research requests")
)
