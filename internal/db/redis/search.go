package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docvault/internal/db"
)

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
// Hits come back ordered by ascending distance; Score is cosine similarity.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("vector is required")
	case q.K <= 0:
		return nil, errors.New("k must be positive")
	}

	k := strconv.Itoa(q.K)
	args := []string{q.IndexName, "*=>[KNN " + k + " @vector $BLOB]"}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)+1))
		args = append(args, q.ReturnFields...)
		args = append(args, "__vector_score")
	}

	args = append(args,
		"SORTBY", "__vector_score",
		"LIMIT", "0", k,
		"PARAMS", "2", "BLOB", string(db.EncodeVector(q.Vector)),
		"DIALECT", "2",
	)

	raw, err := s.ftSearch(ctx, q.IndexName, args)
	if err != nil {
		return nil, err
	}
	return parseKNNResult(raw)
}

// SearchText runs a full-text search via FT.SEARCH with WITHSCORES and offset paging.
func (s *Store) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("index name is required")
	case q.Limit <= 0:
		return nil, errors.New("limit must be positive")
	case q.Offset < 0:
		return nil, errors.New("offset must not be negative")
	}

	queryStr := renderTextQuery(q.Clauses)
	if queryStr == "" {
		return nil, errors.New("query is required")
	}

	args := []string{q.IndexName, queryStr}

	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}

	args = append(args,
		"WITHSCORES",
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	raw, err := s.ftSearch(ctx, q.IndexName, args)
	if err != nil {
		return nil, err
	}
	return parseScoredResult(raw)
}

func (s *Store) ftSearch(ctx context.Context, index string, args []string) ([]rueidis.RedisMessage, error) {
	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		if isRedisErr(err, "no such index") || isRedisErr(err, "unknown index name") {
			return nil, db.ErrIndexNotFound
		}
		return nil, db.Wrap(db.OpSearch, index, err)
	}
	return raw, nil
}

// --- Query rendering ---

// renderTextQuery OR-s the clauses into one query-dialect-2 expression.
func renderTextQuery(clauses []db.TextClause) string {
	parts := make([]string, 0, len(clauses))
	for i := range clauses {
		if p := renderClause(&clauses[i]); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " | ")
}

func renderClause(c *db.TextClause) string {
	if len(c.Fields) == 0 || len(c.Terms) == 0 {
		return ""
	}

	var expr string
	switch c.Kind {
	case db.ClauseFuzzy:
		terms := make([]string, 0, len(c.Terms))
		for _, t := range c.Terms {
			d := min(max(t.Distance, 0), 3)
			pad := strings.Repeat("%", d)
			terms = append(terms, pad+escapeQuery(t.Text)+pad)
		}
		expr = fmt.Sprintf("@%s:(%s)", strings.Join(c.Fields, "|"), strings.Join(terms, " | "))

	case db.ClauseInfix:
		terms := make([]string, 0, len(c.Terms))
		for _, t := range c.Terms {
			terms = append(terms, "*"+escapeQuery(t.Text)+"*")
		}
		expr = fmt.Sprintf("@%s:(%s)", strings.Join(c.Fields, "|"), strings.Join(terms, " | "))

	case db.ClauseExact:
		values := make([]string, 0, len(c.Terms))
		for _, t := range c.Terms {
			values = append(values, tagEscaper.Replace(t.Text))
		}
		set := "{" + strings.Join(values, " | ") + "}"
		perField := make([]string, 0, len(c.Fields))
		for _, f := range c.Fields {
			perField = append(perField, "@"+f+":"+set)
		}
		expr = strings.Join(perField, " | ")

	default:
		return ""
	}

	if c.Weight > 0 {
		return fmt.Sprintf("(%s) => { $weight: %s; }", expr, strconv.FormatFloat(c.Weight, 'f', 1, 64))
	}
	return "(" + expr + ")"
}

// --- Result parsing ---

// searchReply describes the RESP2 FT.SEARCH layout:
// [total, key, (score,) fields, key, (score,) fields, ...].
type searchReply struct {
	withScores bool
	// scoreField, when set, is moved out of the field map into Score as
	// 1 - distance.
	scoreField string
}

func parseKNNResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	return searchReply{scoreField: "__vector_score"}.parse(raw)
}

func parseScoredResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	return searchReply{withScores: true}.parse(raw)
}

func (p searchReply) parse(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	stride := 2
	if p.withScores {
		stride = 3
	}
	entries := make([]db.SearchEntry, 0, (len(raw)-1)/stride)
	for i := 1; i+stride-1 < len(raw); i += stride {
		if entry, ok := p.entry(raw[i : i+stride]); ok {
			entries = append(entries, entry)
		}
	}
	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

// entry decodes one row; malformed rows are skipped.
func (p searchReply) entry(row []rueidis.RedisMessage) (db.SearchEntry, bool) {
	key, err := row[0].ToString()
	if err != nil {
		return db.SearchEntry{}, false
	}
	e := db.SearchEntry{Key: key}

	if p.withScores {
		s, err := row[1].ToString()
		if err != nil {
			return db.SearchEntry{}, false
		}
		if e.Score, err = strconv.ParseFloat(s, 64); err != nil {
			return db.SearchEntry{}, false
		}
	}

	fields, err := row[len(row)-1].ToArray()
	if err != nil {
		return db.SearchEntry{}, false
	}
	e.Fields = parseFieldPairs(fields)

	if p.scoreField != "" {
		if s, ok := e.Fields[p.scoreField]; ok {
			if d, err := strconv.ParseFloat(s, 64); err == nil {
				e.Score = 1.0 - d // cosine distance -> similarity
			}
			delete(e.Fields, p.scoreField)
		}
	}
	return e, true
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		if value, err := fields[j+1].ToString(); err == nil {
			m[name] = value
		}
	}
	return m
}

// --- Escaping ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
	`.`, `\.`,
	`,`, `\,`,
	` `, `\ `,
)
