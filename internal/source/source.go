package source

import (
	"context"
	"errors"
	"fmt"
)

// Candidate describes a photo offered by a remote provider.
type Candidate struct {
	ID           string // Stable provider ID
	DownloadURL  string // Empty when the provider did not supply one
	Photographer string
	ProfileURL   string
}

// Fetcher defines the interface for remote photo providers.
type Fetcher interface {
	// GetSourceID returns the unique identifier for this provider.
	GetSourceID() string

	// FetchCandidates asks the provider for a batch of photos.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - batchSize: number of candidates to request.
	// Returns:
	//   - []Candidate: candidates in provider order.
	//   - error: a *FetchError describing why the batch could not be fetched.
	FetchCandidates(ctx context.Context, batchSize int) ([]Candidate, error)

	// Download retrieves the raw payload of one candidate.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - url: candidate download URL.
	// Returns:
	//   - []byte: payload bytes.
	//   - error: a *FetchError; failures concern this item only.
	Download(ctx context.Context, url string) ([]byte, error)
}

// ErrorKind classifies fetch failures.
type ErrorKind int

const (
	// KindConfig means the provider is not configured (e.g. no credential).
	KindConfig ErrorKind = iota + 1
	// KindNetwork covers transport failures and unexpected HTTP statuses.
	KindNetwork
	// KindMalformed means a response could not be decoded.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindNetwork:
		return "network"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a *FetchError's kind.
var (
	ErrConfig    = errors.New("provider not configured")
	ErrNetwork   = errors.New("provider unreachable")
	ErrMalformed = errors.New("malformed provider response")
)

// FetchError is returned by Fetcher implementations.
type FetchError struct {
	Kind ErrorKind
	Op   string // "fetch" or "download"
	Err  error
}

// NewFetchError builds a FetchError.
func NewFetchError(kind ErrorKind, op string, err error) *FetchError {
	return &FetchError{Kind: kind, Op: op, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNetwork) and friends match on kind.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrConfig:
		return e.Kind == KindConfig
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrMalformed:
		return e.Kind == KindMalformed
	}
	return false
}

// KindOf returns the kind of a FetchError anywhere in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
