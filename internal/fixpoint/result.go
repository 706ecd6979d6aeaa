package fixpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedResult is returned when solver output is not a verdict
	ErrMalformedResult = errors.New("malformed solver result")

	// ErrBadTag is returned when a failure carries a tag the caller cannot
	// parse
	ErrBadTag = errors.New("unparseable constraint tag")
)

// Status is the solver's verdict
type Status uint8

const (
	StatusSafe Status = iota
	StatusUnsafe
	StatusCrash
)

func (s Status) String() string {
	switch s {
	case StatusSafe:
		return "Safe"
	case StatusUnsafe:
		return "Unsafe"
	default:
		return "Crash"
	}
}

// Stats are the counters the solver reports with every verdict
type Stats struct {
	NumCstr int `json:"numCstr"`
	NumIter int `json:"numIter"`
	NumChck int `json:"numChck"`
	NumVald int `json:"numVald"`
}

// Error is one failed obligation: the solver's constraint id and the
// caller's tag
type Error[T any] struct {
	ID  int
	Tag T
}

// CrashInfo is the solver's diagnostic payload for a crash. It is opaque.
type CrashInfo []json.RawMessage

func (c CrashInfo) String() string {
	parts := make([][]byte, len(c))
	for i, raw := range c {
		parts[i] = raw
	}
	return string(bytes.Join(parts, []byte(", ")))
}

// Result is a decoded verdict
type Result[T any] struct {
	Status Status
	Stats  Stats
	Errors []Error[T]
	Crash  CrashInfo
}

// IsSafe reports whether every obligation holds
func (r *Result[T]) IsSafe() bool {
	return r.Status == StatusSafe
}

type envelope struct {
	Tag      string          `json:"tag"`
	Contents json.RawMessage `json:"contents"`
}

// ParseResult decodes the solver's JSON output. Failure tags are converted
// with parseTag; a tag it rejects fails the whole parse with ErrBadTag.
func ParseResult[T any](data []byte, parseTag func(string) (T, error)) (*Result[T], error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if len(env.Contents) == 0 {
		return nil, fmt.Errorf("%w: missing contents", ErrMalformedResult)
	}

	switch env.Tag {
	case "Safe":
		stats, err := decodeStats(env.Contents)
		if err != nil {
			return nil, fmt.Errorf("%w: safe stats: %v", ErrMalformedResult, err)
		}
		return &Result[T]{Status: StatusSafe, Stats: stats}, nil

	case "Unsafe":
		var parts []json.RawMessage
		if err := json.Unmarshal(env.Contents, &parts); err != nil || len(parts) != 2 {
			return nil, fmt.Errorf("%w: unsafe contents must be [stats, errors]", ErrMalformedResult)
		}
		stats, err := decodeStats(parts[0])
		if err != nil {
			return nil, fmt.Errorf("%w: unsafe stats: %v", ErrMalformedResult, err)
		}
		var raw [][]json.RawMessage
		if err := json.Unmarshal(parts[1], &raw); err != nil {
			return nil, fmt.Errorf("%w: unsafe errors: %v", ErrMalformedResult, err)
		}
		errs := make([]Error[T], 0, len(raw))
		for _, pair := range raw {
			e, err := parseError(pair, parseTag)
			if err != nil {
				return nil, err
			}
			errs = append(errs, e)
		}
		return &Result[T]{Status: StatusUnsafe, Stats: stats, Errors: errs}, nil

	case "Crash":
		var info CrashInfo
		if err := json.Unmarshal(env.Contents, &info); err != nil {
			return nil, fmt.Errorf("%w: crash info: %v", ErrMalformedResult, err)
		}
		return &Result[T]{Status: StatusCrash, Crash: info}, nil
	}
	return nil, fmt.Errorf("%w: unknown tag %q", ErrMalformedResult, env.Tag)
}

// decodeStats requires all four counters to be present
func decodeStats(data []byte) (Stats, error) {
	var raw struct {
		NumCstr *int `json:"numCstr"`
		NumIter *int `json:"numIter"`
		NumChck *int `json:"numChck"`
		NumVald *int `json:"numVald"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Stats{}, err
	}
	if raw.NumCstr == nil || raw.NumIter == nil || raw.NumChck == nil || raw.NumVald == nil {
		return Stats{}, errors.New("missing counter")
	}
	return Stats{NumCstr: *raw.NumCstr, NumIter: *raw.NumIter, NumChck: *raw.NumChck, NumVald: *raw.NumVald}, nil
}

func parseError[T any](pair []json.RawMessage, parseTag func(string) (T, error)) (Error[T], error) {
	var zero Error[T]
	if len(pair) != 2 {
		return zero, fmt.Errorf("%w: error entry must be [id, tag]", ErrMalformedResult)
	}
	var id int
	if err := json.Unmarshal(pair[0], &id); err != nil {
		return zero, fmt.Errorf("%w: error id: %v", ErrMalformedResult, err)
	}
	var text string
	if err := json.Unmarshal(pair[1], &text); err != nil {
		return zero, fmt.Errorf("%w: error tag: %v", ErrMalformedResult, err)
	}
	tag, err := parseTag(text)
	if err != nil {
		return zero, fmt.Errorf("%w %q: %v", ErrBadTag, text, err)
	}
	return Error[T]{ID: id, Tag: tag}, nil
}
