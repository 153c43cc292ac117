package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Fetcher is one transcript acquisition strategy.
type Fetcher interface {
	// Name identifies the strategy in logs and TranscriptResult.Source.
	Name() string
	// FetchTranscript downloads a subtitle track for id.
	FetchTranscript(ctx context.Context, id VideoID) FetchOutcome
}

// TitleLookup resolves a video title. MetadataClient implements it.
type TitleLookup interface {
	VideoTitle(ctx context.Context, id VideoID) (string, error)
}

// State is a step of a transcript request.
type State int

const (
	StateInit State = iota
	StateNormalizing
	StateFetching
	StateDecoding
	StateValidating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateNormalizing:
		return "normalizing"
	case StateFetching:
		return "fetching"
	case StateDecoding:
		return "decoding"
	case StateValidating:
		return "validating"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// TranscriptResult is a validated transcript.
type TranscriptResult struct {
	VideoID     VideoID
	URL         string
	Text        string
	Language    string
	IsGenerated bool
	// Source is the Name of the fetcher that produced the transcript.
	Source string
	Format SubtitleFormat
	// Title is empty unless a fetcher or the TitleLookup reported one.
	Title string
}

// Orchestrator tries each Fetcher in order until one yields text that
// passes the Gate.
type Orchestrator struct {
	Fetchers []Fetcher
	Gate     Gate
	// Titles is optional.
	Titles TitleLookup
	Logger *slog.Logger
	// OnTransition is called on every state change.
	OnTransition func(from, to State)
}

// NewOrchestrator creates an orchestrator that tries fetchers in order.
func NewOrchestrator(fetchers ...Fetcher) *Orchestrator {
	return &Orchestrator{
		Fetchers: fetchers,
		Gate:     DefaultGate,
		Logger:   slog.Default(),
	}
}

// run carries the state of one Transcript call.
type run struct {
	o     *Orchestrator
	state State
}

func (r *run) to(next State) {
	if r.o.OnTransition != nil {
		r.o.OnTransition(r.state, next)
	}
	r.state = next
}

// fail ends the run and returns err.
func (r *run) fail(err error) error {
	r.to(StateDone)
	return err
}

// Transcript returns the transcript of the video rawURL points to.
//
// A soft failure moves on to the next fetcher, as does a track that fails
// to decode or validate. A hard failure whose reason means the video has no
// captions stops the chain. Context errors are returned unwrapped. Every
// call ends in StateDone, whether or not it succeeds.
func (o *Orchestrator) Transcript(ctx context.Context, rawURL string) (*TranscriptResult, error) {
	r := &run{o: o, state: StateInit}
	log := o.logger()

	r.to(StateNormalizing)
	id, watchURL, err := Normalize(rawURL)
	if err != nil {
		return nil, r.fail(&TranscriptError{Reason: ReasonInvalidURL, Err: err})
	}
	log = log.With(slog.String("video_id", string(id)))

	if len(o.Fetchers) == 0 {
		return nil, r.fail(&TranscriptError{VideoID: id, Reason: ReasonFetchFailed, Err: ErrNoFetchers})
	}

	var attempts []Attempt
	fail := func(name string, kind OutcomeKind, reason FailureReason, err error) {
		attempts = append(attempts, Attempt{Fetcher: name, Kind: kind, Reason: reason, Err: err})
	}

	for _, f := range o.Fetchers {
		if err := ctx.Err(); err != nil {
			return nil, r.fail(err)
		}

		r.to(StateFetching)
		start := time.Now()
		out := f.FetchTranscript(ctx, id)
		if err := ctx.Err(); err != nil {
			return nil, r.fail(err)
		}

		if out.Kind != Success || out.Track == nil {
			kind, reason := out.Kind, out.Reason
			if kind == Success {
				kind, reason = SoftFailure, ReasonEmptyContent
			}
			log.Info("youtube: fetcher failed",
				slog.String("fetcher", f.Name()),
				slog.String("outcome", kind.String()),
				slog.String("reason", string(reason)),
				slog.Duration("elapsed", time.Since(start)))
			fail(f.Name(), kind, reason, out.Err)
			if kind == HardFailure && reason.IsCaptionAbsence() {
				return nil, r.fail(&TranscriptError{VideoID: id, Reason: reason, Attempts: attempts, Err: out.Err})
			}
			continue
		}

		r.to(StateDecoding)
		text, err := Decode(*out.Track)
		if err != nil {
			reason := gateReason(err)
			log.Info("youtube: decode failed", slog.String("fetcher", f.Name()), slog.String("error", err.Error()))
			fail(f.Name(), SoftFailure, reason, err)
			continue
		}

		r.to(StateValidating)
		if err := o.Gate.Validate(text); err != nil {
			log.Info("youtube: transcript rejected", slog.String("fetcher", f.Name()), slog.String("error", err.Error()))
			fail(f.Name(), SoftFailure, gateReason(err), err)
			continue
		}

		r.to(StateDone)
		result := &TranscriptResult{
			VideoID:     id,
			URL:         watchURL,
			Text:        text,
			Language:    out.Track.Language,
			IsGenerated: out.Track.IsGenerated,
			Source:      f.Name(),
			Format:      out.Track.Format,
			Title:       out.Title,
		}
		o.lookupTitle(ctx, log, result)
		log.Info("youtube: transcript extracted",
			slog.String("fetcher", f.Name()),
			slog.String("lang", result.Language),
			slog.Int("chars", len(result.Text)),
			slog.Duration("elapsed", time.Since(start)))
		return result, nil
	}

	last := attempts[len(attempts)-1]
	cause := last.Err
	if cause == nil {
		cause = errors.New(last.Reason.Message())
	}
	return nil, r.fail(&TranscriptError{
		VideoID:  id,
		Reason:   last.Reason,
		Attempts: attempts,
		Err:      fmt.Errorf("all %d strategies failed: %w", len(attempts), cause),
	})
}

// lookupTitle fills in the title when no fetcher reported one. Failures
// are logged and ignored.
func (o *Orchestrator) lookupTitle(ctx context.Context, log *slog.Logger, result *TranscriptResult) {
	if result.Title != "" || o.Titles == nil {
		return
	}
	title, err := o.Titles.VideoTitle(ctx, result.VideoID)
	if err != nil {
		log.Warn("youtube: title lookup failed", slog.String("error", err.Error()))
		return
	}
	result.Title = title
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
