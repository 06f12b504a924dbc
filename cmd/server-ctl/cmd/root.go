// Package cmd contains all CLI commands for server-ctl.
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	controlURL string
	token      string
	output     string
)

// Client talks to the control API of one local server. Every request carries
// the bearer token when one is set.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient returns a Client for the control API at baseURL
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Request sends body (if any) as JSON and returns the raw response body.
// Responses with status 400 and above become errors carrying the server's
// "error" field.
func (c *Client) Request(method, path string, body interface{}) ([]byte, error) {
	req, err := c.newRequest(method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("control API unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apiError(resp.StatusCode, data)
	}
	return data, nil
}

func (c *Client) newRequest(method, path string, body interface{}) (*http.Request, error) {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// apiError prefers the {"error": ...} envelope the control API answers with
func apiError(status int, data []byte) error {
	var envelope struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
		msg = envelope.Error
	}
	return fmt.Errorf("API error (%d): %s", status, msg)
}

// printJSON pretty-prints a response; non-JSON bodies are written unchanged
func printJSON(w io.Writer, data []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		_, werr := fmt.Fprintln(w, string(data))
		return werr
	}
	_, err := fmt.Fprintln(w, out.String())
	return err
}

// printTable writes rows under headers, columns padded to the widest cell
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], len(row[i]))
		}
	}

	writeRow := func(cells []string) {
		for i := 0; i < len(cells) && i < len(widths); i++ {
			fmt.Fprintf(w, "%-*s  ", widths[i], cells[i])
		}
		fmt.Fprintln(w)
	}

	rules := make([]string, len(widths))
	for i, width := range widths {
		rules[i] = strings.Repeat("-", width)
	}

	writeRow(headers)
	writeRow(rules)
	for _, row := range rows {
		writeRow(row)
	}
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "server-ctl",
	Short: "CLI tool for controlling a local server",
	Long: `server-ctl drives a running local server through its control API.

It provides commands for:
  - Server: show status, start and stop the listener
  - Network: push network changes when the server runs with network.source=push
  - Token: mint a control token from the shared secret

Examples:
  # Mint a token and show status
  export LOCALSRV_CTL_TOKEN=$(server-ctl token --secret s3cret)
  server-ctl status

  # Report a network and start the listener
  server-ctl network connect 192.168.1.20
  server-ctl start

Environment Variables:
  LOCALSRV_CTL_URL    Base URL of the control API (default: http://127.0.0.1:8090)
  LOCALSRV_CTL_TOKEN  Bearer token for the control API`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&controlURL, "url", "u", getEnvOrDefault("LOCALSRV_CTL_URL", "http://127.0.0.1:8090"), "Control API base URL")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", os.Getenv("LOCALSRV_CTL_TOKEN"), "Control API bearer token")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format: table, json")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
