package approval

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ishanwen-byte/songevolve-go/internal/constants"
	"github.com/ishanwen-byte/songevolve-go/internal/types"
	"github.com/ishanwen-byte/songevolve-go/pkg/genome"
)

// ErrNoProposal is returned when a session has no genome awaiting a decision
var ErrNoProposal = errors.New("no genome proposed")

// Session holds the founder genome proposed to a user until it is accepted.
// Proposals replace each other; the last writer wins.
type Session struct {
	ID string

	config types.GenomeConfig
	rng    *rand.Rand
	logger *logrus.Logger

	mu       sync.Mutex
	proposed *genome.Genome
	rejected int
}

// NewSession creates a session drawing founders from the genome config. A nil
// rng is seeded from the clock.
func NewSession(config types.GenomeConfig, rng *rand.Rand, logger *logrus.Logger) *Session {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Session{
		ID:     uuid.New().String(),
		config: config,
		rng:    rng,
		logger: logger,
	}
}

// Propose draws a fresh random founder, replacing any pending proposal, and
// returns a copy of it. Its mutation rate is uniform in [0.00125, 0.07).
func (s *Session) Propose() *genome.Genome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proposeLocked()
}

func (s *Session) proposeLocked() *genome.Genome {
	c := s.config
	g := genome.Random(s.rng, c.LargeChromosomeMin, c.LargeChromosomeMax, c.SmallChromosomeMin, c.SmallChromosomeMax)
	rate := constants.MinProposedMutationRate +
		s.rng.Float64()*(constants.MaxProposedMutationRate-constants.MinProposedMutationRate)
	g.SetMutationRate(rate)
	s.proposed = g

	s.logger.WithFields(logrus.Fields{
		"session":       s.ID,
		"mutation_rate": g.MutationRate(),
	}).Debug("Proposed founder")

	return g.Clone()
}

// Current returns a copy of the pending proposal
func (s *Session) Current() (*genome.Genome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proposed == nil {
		return nil, ErrNoProposal
	}
	return s.proposed.Clone(), nil
}

// Accept hands over the pending proposal and clears it
func (s *Session) Accept() (*genome.Genome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proposed == nil {
		return nil, ErrNoProposal
	}
	g := s.proposed
	s.proposed = nil

	s.logger.WithFields(logrus.Fields{
		"session":  s.ID,
		"rejected": s.rejected,
	}).Info("Founder accepted")
	return g, nil
}

// Reject discards the pending proposal and proposes a new one under a single
// lock. It fails once the proposal has been accepted.
func (s *Session) Reject() (*genome.Genome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proposed == nil {
		return nil, ErrNoProposal
	}
	s.rejected++
	return s.proposeLocked(), nil
}

// Rejected reports how many proposals were turned down
func (s *Session) Rejected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}
