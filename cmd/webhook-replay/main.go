// Command webhook-replay signs processor events with the endpoint secret and
// posts them to a running server, for local testing and for replaying
// deliveries the processor gave up on.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "webhook-replay",
		Short:   "Sign and deliver payment processor webhook events",
		Version: Version,
	}

	rootCmd.PersistentFlags().String("secret", os.Getenv("STRIPE_WEBHOOK_SECRET"), "Webhook signing secret (default $STRIPE_WEBHOOK_SECRET)")

	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(signCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [event.json]",
		Short: "Sign an event and POST it to the webhook endpoint",
		Long: `Sign an event and POST it to the webhook endpoint.

The event is read from the given file, or built from --type and --object
when no file is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, _ := cmd.Flags().GetString("secret")
			url, _ := cmd.Flags().GetString("url")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			payload, err := loadEvent(cmd, args)
			if err != nil {
				return err
			}
			if secret == "" {
				return fmt.Errorf("--secret or STRIPE_WEBHOOK_SECRET is required")
			}

			res, err := deliver(cmd.Context(), url, payload, secret, timeout)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", res.StatusCode, res.Body)
			if res.StatusCode >= 300 {
				return fmt.Errorf("endpoint returned %d", res.StatusCode)
			}
			return nil
		},
	}

	cmd.Flags().String("url", "http://localhost:8080/webhook", "Webhook endpoint URL")
	cmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")
	addEventFlags(cmd)

	return cmd
}

func signCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign [event.json]",
		Short: "Print the Stripe-Signature header for an event",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, _ := cmd.Flags().GetString("secret")

			payload, err := loadEvent(cmd, args)
			if err != nil {
				return err
			}
			if secret == "" {
				return fmt.Errorf("--secret or STRIPE_WEBHOOK_SECRET is required")
			}

			fmt.Fprintln(cmd.OutOrStdout(), signatureHeader(payload, secret))
			return nil
		},
	}

	addEventFlags(cmd)
	return cmd
}

func addEventFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("type", "t", "checkout.session.completed", "Event type when building an event")
	cmd.Flags().StringP("object", "o", "", "Data object ID when building an event (cs_..., in_...)")
}

func loadEvent(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 1 {
		payload, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("reading event: %w", err)
		}
		return payload, nil
	}

	eventType, _ := cmd.Flags().GetString("type")
	objectID, _ := cmd.Flags().GetString("object")
	if objectID == "" {
		return nil, fmt.Errorf("an event file or --object is required")
	}
	return buildEvent(eventType, objectID)
}
