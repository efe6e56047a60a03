package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

const (
	pnrLength       = 6
	referenceLength = 8
	ticketHexLength = 12
	maxCodeAttempts = 10

	referencePrefix = "BK"
	ticketPrefix    = "TKT"
)

// codeAlphabet has 32 symbols so a random byte maps onto it without bias.
// I, O, 0 and 1 are left out because they are misread on boarding passes.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ExistsFunc reports whether a code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// CodeGenerator issues booking references, PNRs and ticket numbers.
type CodeGenerator struct {
	rand io.Reader
}

// NewCodeGenerator reads randomness from r, or crypto/rand when r is nil.
func NewCodeGenerator(r io.Reader) *CodeGenerator {
	if r == nil {
		r = rand.Reader
	}
	return &CodeGenerator{rand: r}
}

// PNR returns a six character code not yet used by any booking. After
// repeated collisions it falls back to a longer uuid-derived code.
func (g *CodeGenerator) PNR(ctx context.Context, exists ExistsFunc) (string, error) {
	return g.unique(ctx, exists, func() (string, error) {
		return g.alphanumeric(pnrLength)
	}, func() string {
		return uuidHex(10)
	})
}

// BookingReference returns a provisional "BK" reference.
func (g *CodeGenerator) BookingReference(ctx context.Context, exists ExistsFunc) (string, error) {
	return g.unique(ctx, exists, func() (string, error) {
		code, err := g.alphanumeric(referenceLength)
		return referencePrefix + code, err
	}, func() string {
		return referencePrefix + uuidHex(16)
	})
}

// TicketNumber returns a "TKT" number unique across all tickets.
func (g *CodeGenerator) TicketNumber(ctx context.Context, exists ExistsFunc) (string, error) {
	return g.unique(ctx, exists, func() (string, error) {
		b := make([]byte, ticketHexLength/2)
		if _, err := io.ReadFull(g.rand, b); err != nil {
			return "", err
		}
		return ticketPrefix + strings.ToUpper(hex.EncodeToString(b)), nil
	}, func() string {
		return ticketPrefix + uuidHex(16)
	})
}

func (g *CodeGenerator) unique(ctx context.Context, exists ExistsFunc, next func() (string, error), fallback func() string) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := next()
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}

	code := fallback()
	taken, err := exists(ctx, code)
	if err != nil {
		return "", err
	}
	if taken {
		return "", ErrInternal.With("could not generate a unique code")
	}
	return code, nil
}

func (g *CodeGenerator) alphanumeric(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(g.rand, b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}

func uuidHex(n int) string {
	s := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return s[:n]
}
