package bagbuilder

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
)

const minSearchTokenLength = 2

// SearchTokens splits a search string on commas and white space and drops
// tokens shorter than two characters.
func SearchTokens(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minSearchTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(token string) string {
	return "%" + likeEscaper.Replace(token) + "%"
}

// searchSQL requires every token to occur in at least one searchable field of
// the event, its topic or a linked record. It returns "" when no token is
// long enough.
func searchSQL(alias string, text string) (string, pgx.NamedArgs) {
	tokens := SearchTokens(text)
	if len(tokens) == 0 {
		return "", nil
	}

	args := pgx.NamedArgs{}
	clauses := make([]string, 0, len(tokens))
	for i, token := range tokens {
		arg := fmt.Sprintf("search_%d", i)
		args[arg] = containsPattern(token)
		clauses = append(clauses, "("+tokenClause(alias, "@"+arg)+")")
	}
	return strings.Join(clauses, " AND "), args
}

func tokenClause(alias, p string) string {
	like := func(cols ...string) string {
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = c + " ILIKE " + p
		}
		return strings.Join(parts, " OR ")
	}

	ors := []string{
		topicColumns(alias, func(t string) string {
			return like(t+".title", t+".subtitle", t+".description")
		}),
		like(alias + ".accreditation_number"),
		topicColumns(alias, func(t string) string {
			return fmt.Sprintf("%s.event_type IN (SELECT et.uid FROM event_types et WHERE et.title ILIKE %s)", t, p)
		}),
		Places.Matching(alias, like("f.title", "f.address", "f.city")),
		Organizers.Matching(alias, like("f.title")),
		Categories.Matching(alias, like("f.title")),
		TargetGroups.Matching(alias, like("f.title")),
	}
	for _, role := range SpeakerRoles {
		ors = append(ors, role.Matching(alias, like("f.title", "f.organization", "f.description")))
	}

	for i, o := range ors {
		ors[i] = "(" + o + ")"
	}
	return strings.Join(ors, " OR ")
}
