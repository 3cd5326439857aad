package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LeventeLantos/zenvia-go/client"
	"github.com/LeventeLantos/zenvia-go/model"
)

func subscriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subscriptions",
		Aliases: []string{"subs"},
		Short:   "Manage webhook subscriptions",
	}
	cmd.AddCommand(
		subscriptionsListCmd(),
		subscriptionsGetCmd(),
		subscriptionsDeleteCmd(),
		subscriptionsSetStatusCmd(),
	)
	return cmd
}

// withClient runs fn with a client that is closed afterwards.
func withClient(fn func(zc *client.Client) error) error {
	if err := checkOutputFormat(); err != nil {
		return err
	}
	zc, err := client.New(cfg.Zenvia.ClientConfig(logger))
	if err != nil {
		return err
	}
	defer zc.Close()
	return fn(zc)
}

func subscriptionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(zc *client.Client) error {
				subs, err := zc.ListSubscriptions(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), outputFormat, subs)
			})
		},
	}
}

func subscriptionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(zc *client.Client) error {
				sub, err := zc.GetSubscription(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), outputFormat, sub)
			})
		},
	}
}

func subscriptionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(zc *client.Client) error {
				if err := zc.DeleteSubscription(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "subscription %s deleted\n", args[0])
				return nil
			})
		},
	}
}

func subscriptionsSetStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set-status <id> <ACTIVE|INACTIVE>",
		Short:     "Activate or deactivate a subscription",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(model.StatusActive), string(model.StatusInactive)},
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parseSubscriptionStatus(args[1])
			if err != nil {
				return err
			}
			return withClient(func(zc *client.Client) error {
				sub, err := zc.UpdateSubscriptionByID(cmd.Context(), args[0], model.PartialSubscription{Status: status})
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), outputFormat, sub)
			})
		},
	}
}

func parseSubscriptionStatus(raw string) (model.SubscriptionStatus, error) {
	switch s := model.SubscriptionStatus(raw); s {
	case model.StatusActive, model.StatusInactive:
		return s, nil
	default:
		return "", fmt.Errorf("invalid subscription status %q: want %s or %s", raw, model.StatusActive, model.StatusInactive)
	}
}
