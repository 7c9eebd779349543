// CLAUDE:SUMMARY Dev tool simulating an inbound WhatsApp webhook (form From/Body) against the workflow tool or the relay's /command route.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const (
	defaultBody    = "HELP"
	defaultFrom    = "whatsapp:+10000000000"
	defaultWebhook = "http://localhost:5678/webhook/whatsapp"
	webhookPath    = "/webhook/whatsapp"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds: sendtest [body] [from] [--url URL] [--timeout D].
func NewRootCmd() *cobra.Command {
	var (
		target  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sendtest [body] [from]",
		Short: "Post a simulated WhatsApp message to the workflow webhook",
		Long: `Posts the form fields From and Body the way the messaging provider does.

The target defaults to $N8N_WEBHOOK_URL + /webhook/whatsapp, or
` + defaultWebhook + ` when the variable is unset. Point --url at a
running relay's /command route to see the parsed command directly.`,
		Args:         cobra.MaximumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, from := defaultBody, defaultFrom
			if len(args) > 0 {
				body = args[0]
			}
			if len(args) > 1 {
				from = args[1]
			}
			if target == "" {
				target = webhookURL(os.Getenv("N8N_WEBHOOK_URL"))
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return send(ctx, http.DefaultClient, target, from, body, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&target, "url", "", "full target URL (overrides N8N_WEBHOOK_URL)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	return cmd
}

// webhookURL derives the inbound webhook from the workflow tool's base URL.
func webhookURL(base string) string {
	if base == "" {
		return defaultWebhook
	}
	return strings.TrimSuffix(base, "/") + webhookPath
}

func send(ctx context.Context, client *http.Client, target, from, body string, out io.Writer) error {
	form := url.Values{}
	form.Set("From", from)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", target, err)
	}
	defer resp.Body.Close()

	fmt.Fprintln(out, "Status:", resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintln(out, "No response body.")
		return nil
	}
	fmt.Fprintln(out, "Response:", string(data))
	return nil
}
