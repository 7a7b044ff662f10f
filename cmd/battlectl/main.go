// Package main implements the battlectl CLI for querying a battled server.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/battled/internal/http"
)

var (
	// serverURL is the base URL for the battled HTTP server
	serverURL string
	// outputJSON prints raw response bodies instead of text
	outputJSON bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "battlectl",
	Short: "CLI for the battled prediction server",
	Long: `battlectl is a command-line interface for the battled HTTP server.
It asks the server who wins a battle and checks server health.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:5000", "battled server URL")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print the raw JSON response")
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(healthCmd)
}

// predictCmd asks the server for a winner
var predictCmd = &cobra.Command{
	Use:   "predict <pokemon 1> <pokemon 2>",
	Short: "Predict the winner of a battle",
	Long: `Predict which of two pokemon wins a battle.

Names are matched exactly, including case.

Examples:
  # Predict a battle
  battlectl predict Pikachu Bulbasaur

  # Names with spaces need quoting
  battlectl predict "Mr. Mime" Jynx

  # Use a different server
  battlectl predict --server http://localhost:8080 Pikachu Bulbasaur`,
	Args: cobra.ExactArgs(2),
	RunE: runPredict,
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check battled server health",
	Long: `Check the health status of the battled HTTP server.

Examples:
  # Check health
  battlectl health

  # Check health on a different server
  battlectl health --server http://localhost:8080`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

// predictRequest is the POST / body.
type predictRequest struct {
	First  string `json:"pokemon 1"`
	Second string `json:"pokemon 2"`
}

// runPredict handles the predict command
func runPredict(cmd *cobra.Command, args []string) error {
	reqJSON, err := json.Marshal(predictRequest{First: args[0], Second: args[1]})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := endpoint("/")
	httpReq, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, body)
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		fmt.Fprintln(out, string(bytes.TrimSpace(body)))
		return nil
	}

	var pred httpserver.PredictResponse
	if err := json.Unmarshal(body, &pred); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Fprintf(out, "%s vs %s\n", pred.First, pred.Second)
	fmt.Fprintf(out, "Winner:     %s\n", pred.Winner)
	fmt.Fprintf(out, "Confidence: %.1f%%\n", pred.Confidence*100)
	return nil
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	url := endpoint("/health")

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	httpReq, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, body)
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		fmt.Fprintln(out, string(bytes.TrimSpace(body)))
		return nil
	}

	var health httpserver.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Fprintf(out, "Server Status: %s\n", health.Status)
	fmt.Fprintf(out, "Server URL:    %s\n", serverURL)
	fmt.Fprintf(out, "Entities:      %d\n", health.Entities)
	fmt.Fprintf(out, "Model:         %s\n", health.Model)
	return nil
}

// endpoint joins path onto the configured server URL, which may carry
// trailing slashes.
func endpoint(path string) string {
	return strings.TrimRight(serverURL, "/") + path
}

// statusError turns a non-200 response into an error, preferring the
// server's {"error": ...} message.
func statusError(code int, body []byte) error {
	var e httpserver.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return fmt.Errorf("server returned status %d: %s", code, e.Error)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New(http.StatusText(code))
	}
	return fmt.Errorf("server returned status %d: %s", code, bytes.TrimSpace(body))
}
