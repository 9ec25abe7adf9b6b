// Package extract turns a raw accounting utterance into allocation tokens.
// It is a pure function of the utterance text and a category vocabulary
// snapshot; nothing here touches storage or the clock.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Token is one parsed allocation candidate. Tokens are ephemeral; they only
// live long enough to be merged into a draft record.
type Token struct {
	Quantity  decimal.Decimal
	Category  string
	Recipient string
	// Replace is set when the clause carried a correction marker
	// ("actually 5 to food"); the builder replaces instead of adding.
	Replace bool
	// NewCategory marks a phrase that matched nothing in the vocabulary.
	NewCategory bool
}

// Result is a successful extraction: allocation tokens in utterance order
// plus the declared total, when one was stated.
type Result struct {
	Tokens        []Token
	DeclaredTotal *decimal.Decimal
}

type FailureReason string

const (
	NoQuantityFound FailureReason = "no_quantity_found"
	AmbiguousClause FailureReason = "ambiguous_clause"
	UnknownUnit     FailureReason = "unknown_unit"
)

// Failure reports why a clause could not be parsed. Extraction never
// guesses: a clause with zero or several quantities fails instead.
type Failure struct {
	Reason      FailureReason
	ClauseIndex int
	Clause      string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("extraction failed (%s) at clause %d: %q", f.Reason, f.ClauseIndex, f.Clause)
}

var (
	numericRe    = regexp.MustCompile(`^\d+(?:\.\d+)?%?$`)
	totalRe      = regexp.MustCompile(`(?i)^\s*(?:out\s+of|(?:for\s+a\s+|grand\s+)?total(?:\s+of)?\s*:?|sum(?:\s+of)?\s*:?)\s*(\S.*)$`)
	inlineTotRe  = regexp.MustCompile(`(?i)\s+out\s+of\s+(\S.*)$`)
	notNumberRe  = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s+not\s+(\d+(?:\.\d+)?)\b`)
	correctionRe = regexp.MustCompile(`(?i)^\s*(?:actually|correction|scratch\s+that|no\s+wait|i\s+mean|make\s+that)\s*[,:]?\s*`)
	separatorRe  = regexp.MustCompile(`[,;\n]+`)
)

var conjunctions = map[string]bool{"and": true, "then": true, "plus": true}

var prepositions = map[string]bool{
	"to": true, "on": true, "for": true, "into": true,
	"toward": true, "towards": true, "in": true,
}

var unitFiller = map[string]bool{
	"unit": true, "units": true, "point": true, "points": true, "pts": true,
	"percent": true, "%": true, "hour": true, "hours": true, "hrs": true,
	"of": true, "energy": true, "my": true,
}

var leadIns = map[string]bool{
	"i": true, "we": true, "gave": true, "give": true, "put": true,
	"spent": true, "spend": true, "allocated": true, "allocate": true,
	"assigned": true, "logged": true, "sent": true, "did": true,
	"about": true, "around": true, "roughly": true, "another": true,
	"also": true, "went": true, "so": true,
}

var articles = map[string]bool{
	"the": true, "a": true, "an": true, "our": true, "my": true,
}

// Extract parses an utterance against a vocabulary snapshot. On failure the
// Result is nil and the Failure identifies the offending clause; malformed
// input never panics.
func Extract(text string, vocab Vocabulary) (*Result, *Failure) {
	clauses := splitClauses(text)
	if len(clauses) == 0 {
		return nil, &Failure{Reason: NoQuantityFound, ClauseIndex: 0, Clause: strings.TrimSpace(text)}
	}

	res := &Result{}
	carry := false
	for idx, clause := range clauses {
		if fail := parseClause(clause, idx, vocab, res, &carry); fail != nil {
			return nil, fail
		}
	}

	if len(res.Tokens) == 0 && res.DeclaredTotal == nil {
		return nil, &Failure{Reason: NoQuantityFound, ClauseIndex: 0, Clause: clauses[0]}
	}
	return res, nil
}

// parseClause consumes one clause into res, either as an allocation token
// or as the declared total. carry forwards a correction marker that stood
// alone in the previous clause ("actually, 5 to food").
func parseClause(clause string, idx int, vocab Vocabulary, res *Result, carry *bool) *Failure {
	replace := *carry
	*carry = false
	if correctionRe.MatchString(clause) {
		replace = true
		clause = correctionRe.ReplaceAllString(clause, "")
	}
	if notNumberRe.MatchString(clause) {
		// "5 not 10 to food" keeps the corrected figure
		replace = true
		clause = notNumberRe.ReplaceAllString(clause, "$1")
	}

	// A whole clause that declares the total ("total: 100", "out of 100").
	if m := totalRe.FindStringSubmatch(clause); m != nil {
		qty, _, ok := leadingQuantity(splitWords(m[1]))
		if !ok {
			return &Failure{Reason: NoQuantityFound, ClauseIndex: idx, Clause: clause}
		}
		res.DeclaredTotal = &qty
		return nil
	}
	// A trailing "... out of 100" inside an allocation clause.
	if m := inlineTotRe.FindStringSubmatch(clause); m != nil {
		if qty, _, ok := leadingQuantity(splitWords(m[1])); ok {
			res.DeclaredTotal = &qty
			clause = inlineTotRe.ReplaceAllString(clause, "")
		}
	}

	words := splitWords(clause)
	if len(words) == 0 {
		// nothing left after normalization; a bare correction marker
		// applies to the next clause
		if replace {
			*carry = true
		}
		return nil
	}

	qty, qtyStart, qtyLen, count := scanQuantities(words)
	if count == 0 {
		return &Failure{Reason: NoQuantityFound, ClauseIndex: idx, Clause: clause}
	}
	if count > 1 {
		return &Failure{Reason: AmbiguousClause, ClauseIndex: idx, Clause: clause}
	}

	category, recipient := phrasesAround(words, qtyStart, qtyLen)
	if category == "" {
		return &Failure{Reason: UnknownUnit, ClauseIndex: idx, Clause: clause}
	}

	matched, isNew := matchCategory(category, vocab)
	res.Tokens = append(res.Tokens, Token{
		Quantity:    qty,
		Category:    matched,
		Recipient:   recipient,
		Replace:     replace,
		NewCategory: isNew,
	})
	return nil
}

// splitClauses cuts the utterance on enumeration boundaries: punctuation,
// line breaks and bare conjunctions. A conjunction inside a spelled-out
// number ("one hundred and twenty") is not a boundary.
func splitClauses(text string) []string {
	var clauses []string
	for _, part := range strings.Split(separatorRe.ReplaceAllString(text, "\n"), "\n") {
		words := strings.Fields(part)
		var current []string
		flush := func() {
			if len(current) > 0 {
				clauses = append(clauses, strings.Join(current, " "))
				current = nil
			}
		}
		for i, w := range words {
			lw := strings.ToLower(w)
			if conjunctions[lw] {
				insideNumber := i > 0 && i+1 < len(words) &&
					isNumberWord(words[i-1]) && isNumberWord(words[i+1])
				if !insideNumber {
					flush()
					continue
				}
			}
			current = append(current, w)
		}
		flush()
	}
	return clauses
}

func splitWords(s string) []string {
	s = strings.ReplaceAll(s, "-", " ")
	raw := strings.Fields(s)
	words := make([]string, 0, len(raw))
	for _, w := range raw {
		w = strings.Trim(w, "()!?\"'.,")
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// scanQuantities finds every quantity expression in the clause. It returns
// the first quantity, its word position and span, and the total count so
// the caller can reject ambiguous clauses.
func scanQuantities(words []string) (qty decimal.Decimal, start, span, count int) {
	for i := 0; i < len(words); i++ {
		w := strings.TrimSuffix(strings.TrimSuffix(words[i], ":"), "%")
		if numericRe.MatchString(w) {
			v, err := decimal.NewFromString(strings.TrimSuffix(w, "%"))
			if err == nil {
				if count == 0 {
					qty, start, span = v, i, 1
				}
				count++
			}
			continue
		}
		if isNumberWord(words[i]) {
			v, consumed, ok := parseNumberWords(words, i)
			if ok {
				if count == 0 {
					qty, start, span = v, i, consumed
				}
				count++
				i += consumed - 1
			}
		}
	}
	return qty, start, span, count
}

func leadingQuantity(words []string) (decimal.Decimal, int, bool) {
	// tolerate "a hundred" style totals
	if len(words) > 0 && articles[strings.ToLower(words[0])] {
		words = words[1:]
	}
	qty, _, span, count := scanQuantities(words)
	if count == 0 || span == 0 {
		return decimal.Zero, 0, false
	}
	return qty, span, true
}

// phrasesAround recovers the category phrase and optional recipient phrase
// surrounding the quantity. The first prepositional phrase after the
// quantity is the category; a second "to"/"for" phrase is the recipient.
// With nothing after the quantity, the words before it form the category
// ("medical: 40").
func phrasesAround(words []string, qtyStart, qtyLen int) (category, recipient string) {
	post := words[qtyStart+qtyLen:]
	for len(post) > 0 && unitFiller[strings.ToLower(post[0])] {
		post = post[1:]
	}
	if len(post) > 0 && prepositions[strings.ToLower(post[0])] {
		post = post[1:]
	}
	for len(post) > 0 && articles[strings.ToLower(post[0])] {
		post = post[1:]
	}

	var catWords []string
	i := 0
	for ; i < len(post); i++ {
		lw := strings.ToLower(post[i])
		if (lw == "to" || lw == "for") && len(catWords) > 0 {
			break
		}
		catWords = append(catWords, strings.TrimSuffix(post[i], ":"))
	}
	if i < len(post) {
		rec := post[i+1:]
		for len(rec) > 0 && articles[strings.ToLower(rec[0])] {
			rec = rec[1:]
		}
		recipient = strings.Join(rec, " ")
	}

	if len(catWords) == 0 {
		pre := words[:qtyStart]
		for _, w := range pre {
			lw := strings.ToLower(strings.TrimSuffix(w, ":"))
			if leadIns[lw] || prepositions[lw] || articles[lw] || unitFiller[lw] {
				continue
			}
			catWords = append(catWords, strings.TrimSuffix(w, ":"))
		}
	}
	return strings.Join(catWords, " "), recipient
}
