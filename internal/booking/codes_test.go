package booking

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func never(context.Context, string) (bool, error) { return false, nil }

func TestCodeGenerator_Formats(t *testing.T) {
	g := NewCodeGenerator(nil)
	ctx := context.Background()

	pnr, err := g.PNR(ctx, never)
	require.NoError(t, err)
	assert.Regexp(t, `^[A-HJ-NP-Z2-9]{6}$`, pnr)

	ref, err := g.BookingReference(ctx, never)
	require.NoError(t, err)
	assert.Regexp(t, `^BK[A-HJ-NP-Z2-9]{8}$`, ref)

	num, err := g.TicketNumber(ctx, never)
	require.NoError(t, err)
	assert.Regexp(t, `^TKT[0-9A-F]{12}$`, num)
}

func TestCodeGenerator_RetriesCollisions(t *testing.T) {
	// Zero bytes always produce "AAAAAA"; the third call sees a free code
	// because the reader has run past the zeros.
	r := bytes.NewReader(append(make([]byte, 12), bytes.Repeat([]byte{1}, 6)...))
	g := NewCodeGenerator(r)

	calls := 0
	pnr, err := g.PNR(context.Background(), func(_ context.Context, code string) (bool, error) {
		calls++
		return code == "AAAAAA", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", pnr)
	assert.Equal(t, 3, calls)
}

func TestCodeGenerator_FallsBackAfterPersistentCollisions(t *testing.T) {
	g := NewCodeGenerator(bytes.NewReader(make([]byte, 1024)))

	calls := 0
	pnr, err := g.PNR(context.Background(), func(_ context.Context, code string) (bool, error) {
		calls++
		return code == "AAAAAA", nil
	})

	require.NoError(t, err)
	assert.Len(t, pnr, 10)
	assert.Equal(t, maxCodeAttempts+1, calls)
}

func TestCodeGenerator_GivesUpWhenFallbackTaken(t *testing.T) {
	g := NewCodeGenerator(bytes.NewReader(make([]byte, 1024)))

	_, err := g.BookingReference(context.Background(), func(context.Context, string) (bool, error) { return true, nil })

	assert.ErrorIs(t, err, ErrInternal)
}

func TestCodeGenerator_Errors(t *testing.T) {
	_, err := NewCodeGenerator(bytes.NewReader(nil)).PNR(context.Background(), never)
	assert.ErrorContains(t, err, "failed to generate code")

	lookup := errors.New("connection reset")
	_, err = NewCodeGenerator(nil).TicketNumber(context.Background(), func(context.Context, string) (bool, error) {
		return false, lookup
	})
	assert.ErrorIs(t, err, lookup)
}
