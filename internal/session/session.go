// Package session is the public library surface: a Session ties a
// trace matrix to the synthesis driver, with a constructor that
// validates its Config up front rather than letting bad tuning
// parameters surface as a panic mid-run.
package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	synerr "github.com/xermicus/r2deob/internal/errors"
	"github.com/xermicus/r2deob/internal/kernel"
	"github.com/xermicus/r2deob/internal/synth"
	"github.com/xermicus/r2deob/internal/trace"
)

// Config is the session's tuning surface. Registers and OutputReg name
// the input/output columns the caller will feed via AddTrace; Ops
// restricts the grammar to a subset of the four arithmetic operators.
type Config struct {
	Registers []string
	OutputReg string
	NRuns     int
	NThreads  int
	BatchSize int
	Ops       []kernel.Operator
	WordBits  int
}

// Default returns a Config with a generous search budget, a full
// operator set, and 64-bit words.
func Default(registers []string, outputReg string) Config {
	return Config{
		Registers: registers,
		OutputReg: outputReg,
		NRuns:     8192,
		NThreads:  8,
		BatchSize: 32,
		Ops:       append([]kernel.Operator(nil), kernel.Operators...),
		WordBits:  64,
	}
}

// Session is the engine's public handle: a trace matrix under
// construction, plus the fixed tuning parameters Synthesize will run
// with once the matrix is populated.
type Session struct {
	id  string
	cfg Config
	t   *trace.Matrix
	log *logrus.Entry
}

// NewSession validates cfg and returns a Session ready for AddTrace
// calls. A bad config is returned as an error, never a panic.
func NewSession(cfg Config) (*Session, error) {
	if len(cfg.Registers) == 0 {
		return nil, synerr.New(synerr.BadConfig, "registers must be non-empty")
	}
	if cfg.NThreads < 1 {
		return nil, synerr.New(synerr.BadConfig, "nThreads must be >= 1").
			WithField("nThreads", cfg.NThreads)
	}
	if cfg.BatchSize < 1 {
		return nil, synerr.New(synerr.BadConfig, "batchSize must be >= 1").
			WithField("batchSize", cfg.BatchSize)
	}
	if cfg.WordBits != 32 && cfg.WordBits != 64 {
		return nil, synerr.New(synerr.BadConfig, "wordBits must be 32 or 64").
			WithField("wordBits", cfg.WordBits)
	}
	if cfg.NRuns < 0 {
		return nil, synerr.New(synerr.BadConfig, "nRuns must be >= 0").
			WithField("nRuns", cfg.NRuns)
	}

	id := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{
		"session_id": id,
		"n_runs":     cfg.NRuns,
		"n_threads":  cfg.NThreads,
	})

	return &Session{
		id:  id,
		cfg: cfg,
		t:   trace.NewMatrix(cfg.Registers),
		log: log,
	}, nil
}

// ID returns the session's correlation ID, as attached to every log
// line this session emits.
func (s *Session) ID() string {
	return s.id
}

// AddTrace records one observation. inputs must cover exactly the
// session's registers; BadTrace is returned otherwise, or if
// Synthesize has already been called (the matrix is frozen then).
// When the session's WordBits is 32, every value is truncated to a
// signed 32-bit range before being stored — the kernel itself always
// operates on 64-bit words, so narrower words are modeled as a
// boundary conversion rather than a distinct arithmetic type.
func (s *Session) AddTrace(inputs map[string]kernel.Word, output kernel.Word) error {
	if s.cfg.WordBits == 32 {
		narrowed := make(map[string]kernel.Word, len(inputs))
		for r, v := range inputs {
			narrowed[r] = kernel.Word(int32(v))
		}
		inputs = narrowed
		output = kernel.Word(int32(output))
	}
	return s.t.AddTrace(inputs, output)
}

// Result is what Synthesize returns: the best candidate found, plus a
// Winner pointer set only when a perfectly-scoring expression was
// found before the search budget ran out.
type Result = synth.Result

// Synthesize runs the search to completion: select, derive, evaluate,
// propagate, rebuild, repeat, until a perfect candidate is found or
// the run budget is exhausted. Budget exhaustion is a regular outcome,
// not an error: it is reported as a nil error with result.Winner nil
// and result.Best/BestScore populated with the closest candidate
// found. Callers that want to treat "no exact match" as an error
// condition of their own should check result.Winner == nil themselves.
func (s *Session) Synthesize(ctx context.Context) (Result, error) {
	s.log.WithField("n_observations", s.t.Len()).Info("starting synthesis")

	cfg := synth.Config{
		NRuns:     s.cfg.NRuns,
		NThreads:  s.cfg.NThreads,
		BatchSize: s.cfg.BatchSize,
		Registers: s.cfg.Registers,
		Ops:       s.cfg.Ops,
		WordBits:  s.cfg.WordBits,
	}
	result := synth.Run(ctx, cfg, s.t, s.log)

	if result.Winner == nil {
		s.log.WithFields(logrus.Fields{
			"expanded_nodes": result.ExpandedNodes,
			"best_score":     result.BestScore,
		}).Info("search budget exhausted without a perfect candidate")
		return result, nil
	}

	s.log.WithField("expanded_nodes", result.ExpandedNodes).Info("found perfect candidate")
	return result, nil
}
