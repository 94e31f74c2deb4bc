package simplex

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFormat    = errors.New("invalid signature format")
	ErrInvalidSignature = errors.New("invalid signature")
)

// InvalidVoteError indicates a vote that violates the protocol: bad
// signature, out-of-range validator index, malformed target. It marks a
// protocol violation by the sender and is never fatal locally.
type InvalidVoteError struct {
	Vote *SignedVote
	Err  error
}

func NewInvalidVoteErrorf(vote *SignedVote, msg string, args ...interface{}) error {
	return InvalidVoteError{Vote: vote, Err: fmt.Errorf(msg, args...)}
}

func (e InvalidVoteError) Error() string {
	return fmt.Sprintf("invalid vote from validator %d for slot %d: %s", e.Vote.ValidatorIndex, e.Vote.Vote.Slot, e.Err.Error())
}

func (e InvalidVoteError) Unwrap() error { return e.Err }

// IsInvalidVoteError returns whether an error is InvalidVoteError.
func IsInvalidVoteError(err error) bool {
	var e InvalidVoteError
	return errors.As(err, &e)
}

// DoubleVoteError indicates that a validator has equivocated: it cast
// two conflicting votes for the same slot. It carries both signed votes
// as a self-contained misbehavior proof.
type DoubleVoteError struct {
	FirstVote       *SignedVote
	ConflictingVote *SignedVote
	err             error
}

func NewDoubleVoteErrorf(firstVote, conflictingVote *SignedVote, msg string, args ...interface{}) error {
	return DoubleVoteError{
		FirstVote:       firstVote,
		ConflictingVote: conflictingVote,
		err:             fmt.Errorf(msg, args...),
	}
}

func (e DoubleVoteError) Error() string { return e.err.Error() }
func (e DoubleVoteError) Unwrap() error { return e.err }

// IsDoubleVoteError returns whether an error is DoubleVoteError.
func IsDoubleVoteError(err error) bool {
	var e DoubleVoteError
	return errors.As(err, &e)
}

// AsDoubleVoteError determines whether the given error is a
// DoubleVoteError (potentially wrapped). It follows the same semantics
// as a checked type cast.
func AsDoubleVoteError(err error) (*DoubleVoteError, bool) {
	var e DoubleVoteError
	ok := errors.As(err, &e)
	if ok {
		return &e, true
	}
	return nil, false
}

// InvalidSignerError indicates that a signer index is not a member of
// the current validator set.
type InvalidSignerError struct {
	err error
}

func NewInvalidSignerErrorf(msg string, args ...interface{}) error {
	return InvalidSignerError{err: fmt.Errorf(msg, args...)}
}

func (e InvalidSignerError) Error() string { return e.err.Error() }
func (e InvalidSignerError) Unwrap() error { return e.err }

// IsInvalidSignerError returns whether err is an InvalidSignerError.
func IsInvalidSignerError(err error) bool {
	var e InvalidSignerError
	return errors.As(err, &e)
}

// DuplicatedSignerError indicates that a signature from the same
// validator index has already been included.
type DuplicatedSignerError struct {
	err error
}

func NewDuplicatedSignerErrorf(msg string, args ...interface{}) error {
	return DuplicatedSignerError{err: fmt.Errorf(msg, args...)}
}

func (e DuplicatedSignerError) Error() string { return e.err.Error() }
func (e DuplicatedSignerError) Unwrap() error { return e.err }

// IsDuplicatedSignerError returns whether err is a DuplicatedSignerError.
func IsDuplicatedSignerError(err error) bool {
	var e DuplicatedSignerError
	return errors.As(err, &e)
}

// InsufficientWeightError indicates that the accumulated weight of
// verified signatures is below the quorum threshold.
type InsufficientWeightError struct {
	err error
}

func NewInsufficientWeightErrorf(msg string, args ...interface{}) error {
	return InsufficientWeightError{err: fmt.Errorf(msg, args...)}
}

func (e InsufficientWeightError) Error() string { return e.err.Error() }
func (e InsufficientWeightError) Unwrap() error { return e.err }

// IsInsufficientWeightError returns whether err is an InsufficientWeightError.
func IsInsufficientWeightError(err error) bool {
	var e InsufficientWeightError
	return errors.As(err, &e)
}

// InvalidCertificateError indicates a certificate that fails
// verification: malformed signatures, duplicated or out-of-range signer
// indices, or sub-quorum weight.
type InvalidCertificateError struct {
	Vote Vote
	Err  error
}

func NewInvalidCertificateErrorf(vote Vote, msg string, args ...interface{}) error {
	return InvalidCertificateError{Vote: vote, Err: fmt.Errorf(msg, args...)}
}

func (e InvalidCertificateError) Error() string {
	return fmt.Sprintf("invalid certificate for %v: %s", e.Vote, e.Err.Error())
}

func (e InvalidCertificateError) Unwrap() error { return e.Err }

// IsInvalidCertificateError returns whether err is an InvalidCertificateError.
func IsInvalidCertificateError(err error) bool {
	var e InvalidCertificateError
	return errors.As(err, &e)
}

// InvalidCandidateError indicates that a received candidate is invalid:
// structurally malformed, or rejected by the validation collaborator.
type InvalidCandidateError struct {
	CandidateID CandidateID
	Err         error
}

func NewInvalidCandidateErrorf(id CandidateID, msg string, args ...interface{}) error {
	return InvalidCandidateError{CandidateID: id, Err: fmt.Errorf(msg, args...)}
}

func (e InvalidCandidateError) Error() string {
	return fmt.Sprintf("invalid candidate %v: %s", e.CandidateID, e.Err.Error())
}

func (e InvalidCandidateError) Unwrap() error { return e.Err }

// IsInvalidCandidateError returns whether err is an InvalidCandidateError.
func IsInvalidCandidateError(err error) bool {
	var e InvalidCandidateError
	return errors.As(err, &e)
}

// SlotAlreadyFinalizedError indicates an input targeting a slot below
// the first non-finalized slot, whose state has already been pruned.
// Such inputs are expected under retransmission and are rejected, not
// silently dropped.
type SlotAlreadyFinalizedError struct {
	Slot              Slot
	FirstNonFinalized Slot
}

func (e SlotAlreadyFinalizedError) Error() string {
	return fmt.Sprintf("slot %d is already finalized (first non-finalized slot is %d)", e.Slot, e.FirstNonFinalized)
}

// IsSlotAlreadyFinalizedError returns whether err is a SlotAlreadyFinalizedError.
func IsSlotAlreadyFinalizedError(err error) bool {
	var e SlotAlreadyFinalizedError
	return errors.As(err, &e)
}

// ByzantineThresholdExceededError is raised if the core detects
// conditions which prove that the Byzantine weight bound of the
// validator set has been exceeded, e.g. two finalization certificates
// for different candidates in the same slot. This indicates a broken
// trust assumption or a modeling bug and is fatal.
type ByzantineThresholdExceededError struct {
	Evidence string
}

func (e ByzantineThresholdExceededError) Error() string {
	return e.Evidence
}

// IsByzantineThresholdExceededError returns whether err is a
// ByzantineThresholdExceededError.
func IsByzantineThresholdExceededError(err error) bool {
	var e ByzantineThresholdExceededError
	return errors.As(err, &e)
}
