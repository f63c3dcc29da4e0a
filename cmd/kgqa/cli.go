package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/smallnest/kgqa/assistant"
	"github.com/smallnest/kgqa/rag"
	ragstore "github.com/smallnest/kgqa/rag/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D9FF"))

	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(0, 1)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666680"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))
)

// runAsk answers one question and prints it with its debug trail.
func runAsk(ctx context.Context, w io.Writer, a *assistant.Assistant, question string, verbose bool) error {
	ans, err := a.AnswerQuestion(ctx, question)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, titleStyle.Render("Q: "+question))
	fmt.Fprintln(w, answerStyle.Render(ans.Answer))
	fmt.Fprintln(w, metaStyle.Render(fmt.Sprintf("tier=%s source=%s records=%d request=%s",
		ans.Tier, ans.Source, ans.Debug.ResultCount, ans.Debug.RequestID)))

	if verbose {
		fmt.Fprintln(w, metaStyle.Render("entities: "+matchSummary(ans.Debug.ExtractedEntities, ans.Debug.MatchedEntities)))
		fmt.Fprintln(w, metaStyle.Render("relationships: "+matchSummary(ans.Debug.ExtractedRelationships, ans.Debug.MatchedRelationships)))
	}
	for _, f := range ans.Debug.Faults {
		fmt.Fprintln(w, warnStyle.Render("fault: "+f))
	}
	for _, e := range ans.Debug.Errors {
		fmt.Fprintln(w, warnStyle.Render("error: "+e))
	}
	return nil
}

func matchSummary(extracted []string, matched []rag.MatchResult) string {
	parts := make([]string, 0, len(matched))
	for _, m := range matched {
		parts = append(parts, fmt.Sprintf("%s->%s (%.1f)", m.Original, m.Matched, m.Confidence))
	}
	return fmt.Sprintf("[%s] matched [%s]", strings.Join(extracted, ", "), strings.Join(parts, ", "))
}

// runStats prints graph and index statistics as tables.
func runStats(ctx context.Context, w io.Writer, a *assistant.Assistant) error {
	stats, err := a.Stats(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Nodes", strconv.FormatInt(stats.Graph.NodeCount, 10)})
	table.Append([]string{"Relationships", strconv.FormatInt(stats.Graph.RelationshipCount, 10)})
	table.Append([]string{"Labels", strings.Join(stats.Graph.Labels, ", ")})
	table.Append([]string{"Lexicon entities", strconv.Itoa(stats.LexiconEntities)})
	table.Append([]string{"Lexicon relationship types", strconv.Itoa(stats.LexiconRelationships)})
	table.Append([]string{"Index entries", strconv.Itoa(stats.IndexEntries)})
	table.Append([]string{"Index persisted", strconv.FormatBool(stats.IndexPersisted)})
	table.Append([]string{"Document chunks", strconv.Itoa(stats.DocumentChunks)})
	table.Render()

	if len(stats.PopularEntities) == 0 {
		return nil
	}
	fmt.Fprintln(w, titleStyle.Render("Most connected entities"))
	popular := tablewriter.NewWriter(w)
	popular.SetHeader([]string{"Entity", "Connections"})
	for _, e := range stats.PopularEntities {
		popular.Append([]string{e.Name, strconv.FormatInt(e.Connections, 10)})
	}
	popular.Render()
	return nil
}

// runIngest loads a JSON array of triplets from path into the graph.
func runIngest(ctx context.Context, w io.Writer, a *assistant.Assistant, path string, clearFirst bool) error {
	triplets, err := readTriplets(path)
	if err != nil {
		return err
	}

	stats, err := a.IngestTriplets(ctx, triplets, clearFirst)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Ingested %d triplets: graph now has %d nodes and %d relationships\n",
		len(triplets), stats.NodeCount, stats.RelationshipCount)
	return nil
}

func readTriplets(path string) ([]rag.Triplet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read triplets: %w", err)
	}
	var triplets []rag.Triplet
	if err := json.Unmarshal(data, &triplets); err != nil {
		return nil, fmt.Errorf("failed to parse triplets %s: %w", path, err)
	}
	return triplets, nil
}

// runRefresh rebuilds the lexicon and index once.
func runRefresh(ctx context.Context, w io.Writer, a *assistant.Assistant, force bool) error {
	status, err := a.RefreshIndex(ctx, force)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Index %s: %d entities, %d relationship types, %d entries in %s\n",
		status.Action, status.Entities, status.Relationships, status.IndexEntries, status.Duration)
	return nil
}

// rawQuerier is a graph that runs arbitrary Cypher.
type rawQuerier interface {
	Raw(ctx context.Context, q string, params map[string]any) (ragstore.QueryResult, error)
}

// runQuery runs one Cypher statement and prints the result table.
func runQuery(ctx context.Context, w io.Writer, g rag.KnowledgeGraph, cypher string) error {
	if strings.TrimSpace(cypher) == "" {
		return errors.New("-cypher is required")
	}
	rq, ok := g.(rawQuerier)
	if !ok {
		return fmt.Errorf("query mode needs a FalkorDB graph, got %T", g)
	}
	qr, err := rq.Raw(ctx, cypher, nil)
	if err != nil {
		return err
	}
	qr.PrettyPrint(w)
	return nil
}
