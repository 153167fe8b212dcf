package approval

import (
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishanwen-byte/songevolve-go/internal/constants"
	"github.com/ishanwen-byte/songevolve-go/internal/types"
	"github.com/ishanwen-byte/songevolve-go/pkg/genome"
)

func newSession(seed int64) *Session {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	config := types.GenomeConfig{
		LargeChromosomeMin: 16,
		LargeChromosomeMax: 32,
		SmallChromosomeMin: 4,
		SmallChromosomeMax: 6,
	}
	return NewSession(config, rand.New(rand.NewSource(seed)), logger)
}

func TestNewSession(t *testing.T) {
	a := newSession(1)
	b := newSession(1)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	_, err := a.Current()
	assert.ErrorIs(t, err, ErrNoProposal)
}

func TestProposeShape(t *testing.T) {
	s := newSession(2)
	step := 1 / constants.MutationRateScale

	for i := 0; i < 50; i++ {
		g := s.Propose()
		assert.GreaterOrEqual(t, len(g.Notes().Left), 16)
		assert.LessOrEqual(t, len(g.Notes().Left), 32)
		assert.GreaterOrEqual(t, len(g.SineCodon().Left), 4)
		assert.LessOrEqual(t, len(g.SineCodon().Left), 6)
		assert.GreaterOrEqual(t, g.MutationRate(), constants.MinProposedMutationRate-step)
		assert.LessOrEqual(t, g.MutationRate(), constants.MaxProposedMutationRate+step)
		_, ok := g.ID()
		assert.False(t, ok)
	}
}

func TestProposeReplacesPending(t *testing.T) {
	s := newSession(3)
	first := s.Propose()
	second := s.Propose()

	current, err := s.Current()
	require.NoError(t, err)
	assert.True(t, second.Equal(current))
	assert.False(t, first.Equal(current))
}

func TestCurrentReturnsCopy(t *testing.T) {
	s := newSession(4)
	s.Propose()

	g, err := s.Current()
	require.NoError(t, err)
	g.SetChromosome(genome.Notes, genome.NewChromosome(nil, nil))

	again, err := s.Current()
	require.NoError(t, err)
	assert.NotEmpty(t, again.Notes().Left)
}

func TestAccept(t *testing.T) {
	s := newSession(5)

	_, err := s.Accept()
	assert.ErrorIs(t, err, ErrNoProposal)

	proposed := s.Propose()
	accepted, err := s.Accept()
	require.NoError(t, err)
	assert.True(t, proposed.Equal(accepted))

	_, err = s.Current()
	assert.ErrorIs(t, err, ErrNoProposal)
	_, err = s.Accept()
	assert.ErrorIs(t, err, ErrNoProposal)
}

func TestReject(t *testing.T) {
	s := newSession(6)

	_, err := s.Reject()
	assert.ErrorIs(t, err, ErrNoProposal)

	first := s.Propose()
	next, err := s.Reject()
	require.NoError(t, err)
	assert.False(t, first.Equal(next))
	assert.Equal(t, 1, s.Rejected())

	current, err := s.Current()
	require.NoError(t, err)
	assert.True(t, next.Equal(current))
}

func TestConcurrentProposals(t *testing.T) {
	s := newSession(7)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Propose()
			_, _ = s.Current()
		}()
	}
	wg.Wait()

	_, err := s.Accept()
	assert.NoError(t, err)
}

func TestRejectAfterAccept(t *testing.T) {
	s := newSession(8)
	s.Propose()

	_, err := s.Accept()
	require.NoError(t, err)

	_, err = s.Reject()
	assert.ErrorIs(t, err, ErrNoProposal)
	assert.Equal(t, 0, s.Rejected())

	_, err = s.Current()
	assert.ErrorIs(t, err, ErrNoProposal, "rejecting after accept must not propose again")
}

func TestConcurrentAcceptAndReject(t *testing.T) {
	for i := 0; i < 200; i++ {
		s := newSession(int64(100 + i))
		s.Propose()

		var (
			wg                   sync.WaitGroup
			accepted, replaced   *genome.Genome
			acceptErr, rejectErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			accepted, acceptErr = s.Accept()
		}()
		go func() {
			defer wg.Done()
			replaced, rejectErr = s.Reject()
		}()
		wg.Wait()

		require.NoError(t, acceptErr)
		if rejectErr != nil {
			require.ErrorIs(t, rejectErr, ErrNoProposal)
			assert.Equal(t, 0, s.Rejected())
		} else {
			assert.Equal(t, 1, s.Rejected())
			assert.True(t, replaced.Equal(accepted), "accept ran after the replacement")
		}

		_, err := s.Current()
		require.ErrorIs(t, err, ErrNoProposal)
	}
}
