package domain

import "errors"

var (
	// ErrCandidateMissingTitle is returned when a candidate has no title
	ErrCandidateMissingTitle = errors.New("candidate missing title")

	// ErrCandidateMissingOrg is returned when a candidate has neither an
	// organization name nor a title to derive one from
	ErrCandidateMissingOrg = errors.New("candidate missing organization name")

	// ErrCandidateMissingSourceURL is returned when a candidate has no
	// source URL to de-duplicate on
	ErrCandidateMissingSourceURL = errors.New("candidate missing source URL")

	// ErrCandidateInvalidTier is returned when a candidate carries a tier
	// outside the 1-4 range
	ErrCandidateInvalidTier = errors.New("candidate tier out of range")

	// ErrReviewNotFound is returned when a review state is not found
	ErrReviewNotFound = errors.New("review not found")

	// ErrReviewAlreadyResolved is returned when approving or rejecting a
	// review that is no longer pending
	ErrReviewAlreadyResolved = errors.New("review already resolved")
)
