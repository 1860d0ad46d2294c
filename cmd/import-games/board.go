package main

import (
	"errors"
	"strings"
)

// board is piece placement indexed by square, a1=0 .. h8=63. Empty squares
// are zero.
type board [64]byte

var errBadFEN = errors.New("malformed FEN")

// parseFEN reads the placement and side-to-move fields of a FEN string.
func parseFEN(fen string) (board, bool, error) {
	var b board
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return b, false, errBadFEN
	}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return b, false, errBadFEN
	}
	for r, rank := range ranks {
		file := 0
		for i := 0; i < len(rank); i++ {
			c := rank[i]
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			if file > 7 {
				return b, false, errBadFEN
			}
			b[(7-r)*8+file] = c
			file++
		}
		if file != 8 {
			return b, false, errBadFEN
		}
	}
	return b, fields[1] == "w", nil
}

func isWhitePiece(p byte) bool { return p >= 'A' && p <= 'Z' }

func ownPiece(p byte, white bool) bool {
	return p != 0 && isWhitePiece(p) == white
}

func squareName(sq int) string {
	return string([]byte{byte('a' + sq%8), byte('1' + sq/8)})
}

// moveFacts are the stored per-move facts recovered from a position diff.
type moveFacts struct {
	UCI     string
	Piece   byte // upper-case mover letter
	Capture bool
}

// diffMove recovers the move played between two consecutive positions.
// white is the side that moved. Castling reports the king's from/to squares;
// promotions carry the promotion letter suffix in UCI form.
func diffMove(before, after board, white bool) (moveFacts, error) {
	var fromSquares, toSquares []int
	for sq := 0; sq < 64; sq++ {
		if before[sq] == after[sq] {
			continue
		}
		if ownPiece(before[sq], white) && !ownPiece(after[sq], white) {
			fromSquares = append(fromSquares, sq)
		}
		if ownPiece(after[sq], white) {
			toSquares = append(toSquares, sq)
		}
	}

	var from, to int
	switch {
	case len(fromSquares) == 1 && len(toSquares) == 1:
		from, to = fromSquares[0], toSquares[0]
	case len(fromSquares) == 2 && len(toSquares) == 2:
		// Castling: track the king.
		from, to = -1, -1
		for _, sq := range fromSquares {
			if before[sq] == 'K' || before[sq] == 'k' {
				from = sq
			}
		}
		for _, sq := range toSquares {
			if after[sq] == 'K' || after[sq] == 'k' {
				to = sq
			}
		}
		if from < 0 || to < 0 {
			return moveFacts{}, errors.New("two-piece diff without a king")
		}
	default:
		return moveFacts{}, errors.New("ambiguous position diff")
	}

	facts := moveFacts{
		UCI:   squareName(from) + squareName(to),
		Piece: upper(before[from]),
	}

	// Promotion: the arriving piece differs from the departing pawn.
	if facts.Piece == 'P' && upper(after[to]) != 'P' {
		facts.UCI += string(lower(after[to]))
	}

	// Capture shows up as an opponent piece count drop; this covers en
	// passant, where the target square itself was empty.
	var oppBefore, oppAfter int
	for sq := 0; sq < 64; sq++ {
		if ownPiece(before[sq], !white) {
			oppBefore++
		}
		if ownPiece(after[sq], !white) {
			oppAfter++
		}
	}
	facts.Capture = oppAfter < oppBefore
	return facts, nil
}

func upper(p byte) byte {
	if p >= 'a' && p <= 'z' {
		return p - 32
	}
	return p
}

func lower(p byte) byte {
	if p >= 'A' && p <= 'Z' {
		return p + 32
	}
	return p
}
