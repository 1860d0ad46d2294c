package main

import "testing"

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func diff(t *testing.T, beforeFEN, afterFEN string) moveFacts {
	t.Helper()
	before, white, err := parseFEN(beforeFEN)
	if err != nil {
		t.Fatalf("parse before: %v", err)
	}
	after, _, err := parseFEN(afterFEN)
	if err != nil {
		t.Fatalf("parse after: %v", err)
	}
	facts, err := diffMove(before, after, white)
	if err != nil {
		t.Fatalf("diffMove: %v", err)
	}
	return facts
}

func TestDiffMove(t *testing.T) {
	cases := []struct {
		name    string
		before  string
		after   string
		uci     string
		piece   byte
		capture bool
	}{
		{
			"pawn push",
			startFEN,
			"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
			"e2e4", 'P', false,
		},
		{
			"knight development",
			"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
			"rnbqkb1r/pppppppp/8/8/4P3/7n/PPPP1PPP/RNBQKBNR w KQkq - 1 2",
			"g8h3", 'N', false,
		},
		{
			"pawn capture",
			"rnbqkbnr/ppp1pppp/8/3p4/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2",
			"rnbqkbnr/ppp1pppp/8/3P4/8/8/PPPP1PPP/RNBQKBNR b KQkq - 0 2",
			"e4d5", 'P', true,
		},
		{
			"en passant",
			"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3",
			"rnbqkbnr/ppp1p1pp/5P2/3p4/8/8/PPPP1PPP/RNBQKBNR b KQkq - 0 3",
			"e5f6", 'P', true,
		},
		{
			"white kingside castle",
			"rnbqk2r/pppp1ppp/5n2/2b1p3/2B1P3/5N2/PPPP1PPP/RNBQK2R w KQkq - 4 4",
			"rnbqk2r/pppp1ppp/5n2/2b1p3/2B1P3/5N2/PPPP1PPP/RNBQ1RK1 b kq - 5 4",
			"e1g1", 'K', false,
		},
		{
			"promotion",
			"8/4P3/8/8/8/8/2k5/4K3 w - - 0 1",
			"4Q3/8/8/8/8/8/2k5/4K3 b - - 0 1",
			"e7e8q", 'P', false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			facts := diff(t, tc.before, tc.after)
			if facts.UCI != tc.uci {
				t.Errorf("UCI = %q, want %q", facts.UCI, tc.uci)
			}
			if facts.Piece != tc.piece {
				t.Errorf("Piece = %c, want %c", facts.Piece, tc.piece)
			}
			if facts.Capture != tc.capture {
				t.Errorf("Capture = %v, want %v", facts.Capture, tc.capture)
			}
		})
	}
}

func TestParseFENRejectsGarbage(t *testing.T) {
	for _, fen := range []string{
		"",
		"rnbqkbnr/pppppppp w",
		"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNRX w KQkq - 0 1",
	} {
		if _, _, err := parseFEN(fen); err == nil {
			t.Errorf("parseFEN(%q) accepted malformed input", fen)
		}
	}
}

func TestParseFENSideToMove(t *testing.T) {
	_, white, err := parseFEN(startFEN)
	if err != nil {
		t.Fatal(err)
	}
	if !white {
		t.Error("starting position should be white to move")
	}

	_, white, err = parseFEN("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if white {
		t.Error("after 1.e4 it should be black to move")
	}
}
