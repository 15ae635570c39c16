// Package notation explains standard cube move notation.
package notation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cubebuddy/cubebuddy/internal/domain"
)

// moveOrder fixes the order of the quick reference.
var moveOrder = []string{
	"R", "R'", "R2",
	"L", "L'", "L2",
	"U", "U'", "U2",
	"D", "D'", "D2",
	"F", "F'", "F2",
	"B", "B'", "B2",
}

var explanations = map[string]string{
	"R":  "Turn the Right face clockwise 90°.",
	"R'": "Turn the Right face counter-clockwise 90°.",
	"R2": "Right face 180°.",
	"L":  "Turn the Left face clockwise 90°.",
	"L'": "Turn the Left face counter-clockwise 90°.",
	"L2": "Left face 180°.",
	"U":  "Turn the Up (top) face clockwise 90°.",
	"U'": "Up face counter-clockwise 90°.",
	"U2": "Up face 180°.",
	"D":  "Turn the Down (bottom) face clockwise 90°.",
	"D'": "Down face counter-clockwise 90°.",
	"D2": "Down face 180°.",
	"F":  "Turn the Front face clockwise 90°.",
	"F'": "Front face counter-clockwise 90°.",
	"F2": "Front face 180°.",
	"B":  "Turn the Back face clockwise 90°.",
	"B'": "Back face counter-clockwise 90°.",
	"B2": "Back face 180°.",
}

var beginnerNotes = []string{
	"Perform each move slowly until you understand the mechanics.",
	"R means rotate the right face clockwise when facing the right side.",
	"Practice reversing an algorithm to regain your starting position.",
	"Cube orientation matters: always verify which face is front/up.",
}

// Tokenize splits an algorithm on whitespace and commas. It never returns nil.
func Tokenize(alg string) []string {
	out := strings.FieldsFunc(alg, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if out == nil {
		out = []string{}
	}
	return out
}

// Explain annotates each token, preserving order and length.
func Explain(tokens []string) []domain.MoveToken {
	out := make([]domain.MoveToken, len(tokens))
	for i, tok := range tokens {
		out[i] = domain.MoveToken{Symbol: tok, Explanation: explanation(tok), Tip: tip(tok)}
	}
	return out
}

// ExplainAlgorithm is Explain(Tokenize(alg)).
func ExplainAlgorithm(alg string) []domain.MoveToken {
	return Explain(Tokenize(alg))
}

func explanation(tok string) string {
	if s, ok := explanations[tok]; ok {
		return s
	}
	return fmt.Sprintf("Rotate the face indicated (%s).", tok)
}

func tip(tok string) string {
	switch {
	case tok == "":
		return "Execute the move slowly and steadily."
	case strings.HasSuffix(tok, "2"):
		return "Use a double flick to perform 180° turns efficiently."
	case strings.Contains(tok, "'"):
		return "Counter-clockwise moves require opposite finger tricks."
	case tok == "R":
		return "Use your right index/middle finger for smooth R turns."
	case tok == "U":
		return "Flick the top layer using your index finger."
	default:
		return "Keep the cube stable while executing the move."
	}
}

// Reference returns the explained basic moves in R, L, U, D, F, B order.
func Reference() []domain.MoveToken {
	return Explain(moveOrder)
}

func BeginnerNotes() []string {
	return append([]string(nil), beginnerNotes...)
}

// Inverse returns the algorithm that undoes alg: tokens reversed, quarter
// turns flipped, half turns kept.
func Inverse(alg string) string {
	toks := Tokenize(alg)
	out := make([]string, len(toks))
	for i, tok := range toks {
		out[len(toks)-1-i] = invert(tok)
	}
	return strings.Join(out, " ")
}

func invert(tok string) string {
	switch {
	case strings.HasSuffix(tok, "2'"):
		return strings.TrimSuffix(tok, "'")
	case strings.HasSuffix(tok, "2"):
		return tok
	case strings.HasSuffix(tok, "'"):
		return strings.TrimSuffix(tok, "'")
	default:
		return tok + "'"
	}
}
