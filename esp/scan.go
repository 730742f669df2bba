package esp

import (
	"context"

	"i4.energy/across/espgw/at"
)

// Literals awaited by the driver on every exchange, built once.
var (
	okLiteral     = at.MustAutomaton(at.OK)
	markerLiteral = at.MustAutomaton(at.DataMarker)
	headerLiteral = at.MustAutomaton(at.HeaderEnd)
)

// WaitFor consumes bytes from src until literal has been seen and returns the
// number of bytes consumed, the literal included. Everything read before the
// literal is discarded.
func WaitFor(ctx context.Context, src ByteSource, literal string) (int, error) {
	a, err := at.NewAutomaton(literal)
	if err != nil {
		return 0, err
	}
	return waitFor(ctx, src, a)
}

func waitFor(ctx context.Context, src ByteSource, a *at.Automaton) (int, error) {
	m := a.Matcher()
	return advance(ctx, src, &m)
}

// advance feeds bytes from src to m until it reports a match. On error m
// keeps its state, so a later call resumes a partial match.
func advance(ctx context.Context, src ByteSource, m *at.Matcher) (int, error) {
	for n := 1; ; n++ {
		b, err := src.Get(ctx)
		if err != nil {
			return n - 1, err
		}
		if _, ok := m.Step(b); ok {
			return n, nil
		}
	}
}

// WaitResponse consumes bytes until one of the terminal responses in
// at.Responses completes and returns its Status.
func WaitResponse(ctx context.Context, src ByteSource) (at.Status, error) {
	m := at.Responses.Matcher()
	for {
		b, err := src.Get(ctx)
		if err != nil {
			return at.StatusUnknown, err
		}
		if idx, ok := m.Step(b); ok {
			return at.StatusOf(idx), nil
		}
	}
}

// waitPrompt spins until the AT+CIPSEND input prompt arrives.
func waitPrompt(ctx context.Context, src ByteSource) error {
	for {
		b, err := src.Get(ctx)
		if err != nil {
			return err
		}
		if b == at.Prompt {
			return nil
		}
	}
}
