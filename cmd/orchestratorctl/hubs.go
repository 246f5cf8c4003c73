package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHubsCmd() *cobra.Command {
	var sessionCookie string

	cmd := &cobra.Command{
		Use:   "hubs",
		Short: "Inspect per-user hub state over the dashboard RPC surface",
	}

	listCmd := &cobra.Command{
		Use:   "clients <user_id>",
		Short: "List clients registered to a user's hub",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := args[0]
			url := fmt.Sprintf("%s/internal/hubs/%s/clients", serverURL, userID)

			req, err := http.NewRequest(http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			if sessionCookie != "" {
				req.AddCookie(&http.Cookie{Name: "session", Value: sessionCookie})
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("request hub clients: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}

			var body struct {
				Clients []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
					Metadata struct {
						Hostname string `json:"hostname"`
						Project  string `json:"project"`
					} `json:"metadata"`
					LastSeen string `json:"last_seen"`
				} `json:"clients"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(body.Clients)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tHOSTNAME\tPROJECT\tLAST SEEN")
			for _, c := range body.Clients {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Status, c.Metadata.Hostname, c.Metadata.Project, c.LastSeen)
			}
			return tw.Flush()
		},
	}

	disconnectCmd := &cobra.Command{
		Use:   "disconnect <user_id> <client_id>",
		Short: "Forcibly disconnect a client from a user's hub",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, clientID := args[0], args[1]
			url := fmt.Sprintf("%s/internal/hubs/%s/clients/%s/disconnect", serverURL, userID, clientID)

			req, err := http.NewRequest(http.MethodPost, url, nil)
			if err != nil {
				return err
			}
			if sessionCookie != "" {
				req.AddCookie(&http.Cookie{Name: "session", Value: sessionCookie})
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("request disconnect: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusNoContent {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			fmt.Println("client disconnected")
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&sessionCookie, "session", "", "browser session cookie value")
	cmd.AddCommand(listCmd, disconnectCmd)
	return cmd
}
