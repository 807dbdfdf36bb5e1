package dimension

import (
	"strings"

	"github.com/pkg/errors"
)

// Token classes recognized by the tokenizer:
//
//  1. Grouping symbols "(", ")", "isparentof:(", "ischildof:(".
//  2. Operators "or" and "minus". Operators have equal precedence
//     and associate from left to right.
//  3. A final "with limit N" clause.
//  4. Any other run of words, which is passed through as an atomic
//     dimension expression.
const (
	tokOr       = "or"
	tokMinus    = "minus"
	limitClause = "with limit"
)

func isOpenScope(tok string) bool {
	return tok == "(" || tok == "isparentof:(" || tok == "ischildof:("
}

func isOperator(tok string) bool {
	return tok == tokOr || tok == tokMinus
}

// TokenizeRPN converts a dimension string into reverse polish
// notation: a list of atomic dimensions, "or"/"minus" operators, and
// possibly a trailing "with limit" clause. An "isparentof:(...)" or
// "ischildof:(...)" scope is folded back into a single atomic token
// wrapping the expression it closed over.
func TokenizeRPN(dim string) ([]string, error) {
	var temp, result []string
	exp := ""

	// Split off the final "with limit" clause, if any.
	head, tail := dim, ""
	if n := strings.Index(dim, limitClause); n >= 0 {
		head, tail = dim[:n], dim[n:]
	}

	// Space out parentheses, but keep "isparentof:(" and
	// "ischildof:(" glued to their open paren.
	head = strings.ReplaceAll(head, "(", " ( ")
	head = strings.ReplaceAll(head, ")", " ) ")
	head = strings.ReplaceAll(head, "isparentof: ", "isparentof:")
	head = strings.ReplaceAll(head, "ischildof: ", "ischildof:")

	flushExp := func() {
		if exp != "" {
			result = append(result, exp)
			exp = ""
		}
	}

	for _, word := range strings.Fields(head) {
		switch {
		case isOpenScope(word):
			flushExp()
			temp = append(temp, word)

		case isOperator(word):
			flushExp()
			// Pop previously seen operators down to the nearest
			// open scope; equal precedence, left associative.
			for len(temp) > 0 && !isOpenScope(temp[len(temp)-1]) {
				result = append(result, temp[len(temp)-1])
				temp = temp[:len(temp)-1]
			}
			temp = append(temp, word)

		case word == ")":
			flushExp()
			closed := false
			for len(temp) > 0 && !closed {
				last := temp[len(temp)-1]
				temp = temp[:len(temp)-1]
				switch last {
				case "(":
					closed = true
				case "isparentof:(", "ischildof:(":
					if len(result) == 0 || isOperator(result[len(result)-1]) {
						return nil, errors.Errorf("%s parse error in %q",
							strings.TrimSuffix(last, "("), dim)
					}
					result[len(result)-1] = last + " " + result[len(result)-1] + " )"
					closed = true
				default:
					result = append(result, last)
				}
			}
			if !closed {
				return nil, errors.Errorf("unbalanced parentheses in %q", dim)
			}

		default:
			if exp == "" {
				exp = word
			} else {
				exp += " " + word
			}
		}
	}

	// Clear remaining tokens.
	flushExp()
	for len(temp) > 0 {
		last := temp[len(temp)-1]
		temp = temp[:len(temp)-1]
		if isOpenScope(last) {
			return nil, errors.Errorf("unbalanced parentheses in %q", dim)
		}
		result = append(result, last)
	}

	if tail != "" {
		result = append(result, tail)
	}
	return result, nil
}
