package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"docqa/internal/helper"
	"docqa/internal/models"
	"docqa/internal/rag"

	"github.com/spf13/cobra"
)

var (
	askHistory  string
	topK        int
	jsonOutput  bool
	explainFile string
)

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var explainCmd = &cobra.Command{
	Use:   "explain [text]",
	Short: "Explain a piece of text in simple terms",
	RunE:  runExplain,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the chunks most similar to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	askCmd.Flags().StringVar(&askHistory, "history", "", "JSON file with prior chat turns")
	for _, c := range []*cobra.Command{askCmd, searchCmd} {
		c.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	}
	explainCmd.Flags().StringVarP(&explainFile, "file", "f", "", "read the text to explain from a file")
	for _, c := range []*cobra.Command{askCmd, explainCmd, searchCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
		rootCmd.AddCommand(c)
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	if err := rag.ValidateQuery(query); err != nil {
		return err
	}
	history, err := readHistory(askHistory)
	if err != nil {
		return err
	}

	app, err := buildApp(cfg, false)
	if err != nil {
		return err
	}
	defer app.Close()

	resp := app.RAG(topK).Ask(cmd.Context(), query, history)
	return printResponse(cmd, resp)
}

func runExplain(cmd *cobra.Command, args []string) error {
	selection := strings.Join(args, " ")
	if explainFile != "" {
		data, err := os.ReadFile(explainFile)
		if err != nil {
			return err
		}
		selection = string(data)
	}
	if err := rag.ValidateSelection(selection); err != nil {
		return err
	}

	app, err := buildApp(cfg, false)
	if err != nil {
		return err
	}
	defer app.Close()

	resp := app.RAG(0).Explain(cmd.Context(), selection)
	return printResponse(cmd, resp)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	if err := rag.ValidateQuery(query); err != nil {
		return err
	}

	app, err := buildApp(cfg, false)
	if err != nil {
		return err
	}
	defer app.Close()

	results := app.RAG(topK).Search(cmd.Context(), query, topK)
	if jsonOutput {
		return helper.PrettyPrint(cmd.OutOrStdout(), results)
	}
	printSources(cmd, results)
	return nil
}

// readHistory loads chat turns from path. An empty path means no history.
func readHistory(path string) ([]models.ChatTurn, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var turns []models.ChatTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	return turns, nil
}

func printResponse(cmd *cobra.Command, resp models.Response) error {
	if jsonOutput {
		return helper.PrettyPrint(cmd.OutOrStdout(), resp)
	}
	cmd.Printf("Query:\n%s\n\n", resp.Query)
	cmd.Println("Sources:")
	printSources(cmd, resp.Sources)
	cmd.Printf("Assistant:\n%s\n", resp.Answer)
	return nil
}

func printSources(cmd *cobra.Command, results []models.ScoredResult) {
	if len(results) == 0 {
		cmd.Println("  (none)")
		cmd.Println()
		return
	}
	for i, r := range results {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, r.Source, r.Score)
		cmd.Printf("      %s\n", snippet(r.Text, 160))
	}
	cmd.Println()
}

func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
