package store

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/redis/go-redis/v9"
	"github.com/smallnest/kgqa/rag"
)

// cypherLiteral renders a Go value as a Cypher literal for the CYPHER
// parameter header.
func cypherLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
		return `"` + r.Replace(x) + `"`
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return cypherLiteral(fmt.Sprint(x))
	}
}

// withParams prefixes q with FalkorDB's "CYPHER k=v ..." parameter header.
// Keys are emitted in sorted order so the final query text is stable.
func withParams(q string, params map[string]any) string {
	if len(params) == 0 {
		return q
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("CYPHER")
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(cypherLiteral(params[k]))
	}
	b.WriteString(" ")
	b.WriteString(q)
	return b.String()
}

// Graph is a named FalkorDB graph reached through a Redis connection.
type Graph struct {
	Name string
	Conn redis.UniversalClient
}

// NewGraph creates a new graph handle.
func NewGraph(name string, conn redis.UniversalClient) Graph {
	return Graph{
		Name: name,
		Conn: conn,
	}
}

// QueryResult represents the results of a query.
type QueryResult struct {
	Header     []string
	Results    [][]any
	Statistics []string
}

// Records zips every row with the header.
func (qr *QueryResult) Records() []rag.Record {
	out := make([]rag.Record, 0, len(qr.Results))
	for _, row := range qr.Results {
		rec := make(rag.Record, len(qr.Header))
		for i, col := range qr.Header {
			if i < len(row) {
				rec[col] = normalizeValue(row[i])
			}
		}
		out = append(out, rec)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = normalizeValue(x[i])
		}
		return out
	default:
		return v
	}
}

// Query executes a read or write query with parameters. Results come back
// in FalkorDB's verbose format, so scalar columns arrive as plain values.
func (g *Graph) Query(ctx context.Context, q string, params map[string]any) (QueryResult, error) {
	qr := QueryResult{}

	res, err := g.Conn.Do(ctx, "GRAPH.QUERY", g.Name, withParams(q, params)).Result()
	if err != nil {
		return qr, err
	}

	r, ok := res.([]any)
	if !ok {
		return qr, fmt.Errorf("unexpected response type: %T", res)
	}

	switch len(r) {
	case 3:
		if header, ok := r[0].([]any); ok {
			qr.Header = make([]string, len(header))
			for i, h := range header {
				qr.Header[i] = headerName(h)
			}
		}
		qr.Results = parseRows(r[1])
		qr.Statistics = parseStats(r[2])
	case 1:
		// write-only queries return statistics alone
		qr.Statistics = parseStats(r[0])
	default:
		return qr, fmt.Errorf("unexpected response length: %d", len(r))
	}

	return qr, nil
}

// headerName accepts both the verbose form ("name") and the compact form
// ([type, "name"]).
func headerName(h any) string {
	if pair, ok := h.([]any); ok && len(pair) == 2 {
		return fmt.Sprint(normalizeValue(pair[1]))
	}
	return fmt.Sprint(normalizeValue(h))
}

func parseRows(v any) [][]any {
	rows, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		if vals, ok := row.([]any); ok {
			out = append(out, vals)
		}
	}
	return out
}

func parseStats(v any) []string {
	stats, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, len(stats))
	for i, s := range stats {
		out[i] = fmt.Sprint(normalizeValue(s))
	}
	return out
}

// PrettyPrint renders the result set as a table followed by statistics.
func (qr *QueryResult) PrettyPrint(w io.Writer) {
	if len(qr.Results) > 0 {
		table := tablewriter.NewWriter(w)
		table.SetAutoFormatHeaders(false)
		if len(qr.Header) > 0 {
			table.SetHeader(qr.Header)
		}

		for _, row := range qr.Results {
			sRow := make([]string, len(row))
			for i, v := range row {
				sRow[i] = fmt.Sprint(normalizeValue(v))
			}
			table.Append(sRow)
		}
		table.Render()
	}

	for _, stat := range qr.Statistics {
		fmt.Fprintf(w, "\n%s", stat)
	}
	fmt.Fprintf(w, "\n")
}
