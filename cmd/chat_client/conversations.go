package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(conversationsCmd, searchCmd)
}

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List conversations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := authedClient()
		if err != nil {
			return err
		}
		convs, err := client.Conversations(cmd.Context())
		if err != nil {
			return err
		}
		if len(convs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No conversations yet. Start one with 'chat_client chat <member-id>'.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWITH\tUNREAD\tLAST MESSAGE")
		for _, c := range convs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.ID, c.Peer(cfg.Auth.MemberID), c.UnreadCount, summary(c.LastMessage, cfg.Auth.MemberID))
		}
		return w.Flush()
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Find members by name or email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := authedClient()
		if err != nil {
			return err
		}
		users, err := client.SearchUsers(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No members found.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.Name, u.Email)
		}
		return w.Flush()
	},
}
