package domain

import "errors"

var (
	// ErrUpstreamExhausted is returned when an upstream call still fails
	// after the retry policy is exhausted
	ErrUpstreamExhausted = errors.New("upstream request failed after retries")

	// ErrRateLimited is returned when the upstream rejects a request for
	// rate-limit reasons
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrScoreConfigNotFound is returned when the named score config does
	// not exist; callers fall back to the shipped defaults
	ErrScoreConfigNotFound = errors.New("score config not found")

	// ErrScoreNotFound is returned when no score has been calculated yet
	ErrScoreNotFound = errors.New("score not calculated")

	// ErrWorthNotFound is returned when no worth has been calculated yet
	ErrWorthNotFound = errors.New("developer worth not calculated")
)
