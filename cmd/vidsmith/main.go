// Command vidsmith is the CLI companion to the orchestrator: submit video
// requests and inspect tasks from the terminal.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vidsmith/internal/domain"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vidsmith",
		Short:         "Submit and inspect video build tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("addr", "http://127.0.0.1:8085", "orchestrator base URL")
	root.PersistentFlags().Bool("json", false, "emit raw JSON instead of tables")
	_ = viper.BindPFlag("addr", root.PersistentFlags().Lookup("addr"))
	_ = viper.BindPFlag("json", root.PersistentFlags().Lookup("json"))
	viper.SetEnvPrefix("VIDSMITH")
	viper.AutomaticEnv()

	root.AddCommand(newSubmitCmd(), newTasksCmd(), newTaskCmd(), newArtifactsCmd(), newMessagesCmd())
	return root
}

func apiClient() *api {
	return &api{
		baseURL: strings.TrimRight(viper.GetString("addr"), "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type api struct {
	baseURL string
	http    *http.Client
}

func (a *api) get(path string, out any) error {
	resp, err := a.http.Get(a.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (a *api) post(path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := a.http.Post(a.baseURL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func newSubmitCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "submit <description>",
		Short: "Submit a new video request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var t domain.Task
			err := apiClient().post("/videos", map[string]string{
				"description": strings.Join(args, " "),
				"projectId":   projectID,
			}, &t)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(t)
			}
			fmt.Printf("submitted task %s (state %s)\n", t.ID, t.State)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project identifier")
	return cmd
}

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var tasks []domain.Task
			if err := apiClient().get("/tasks", &tasks); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(tasks)
			}
			tw := newTable("ID", "STATE", "STAGE", "STATUS", "UPDATED")
			for _, t := range tasks {
				tw.AppendRow(table.Row{t.ID, t.State, t.Stage, t.StatusMessage, t.UpdatedAt.Format(time.RFC3339)})
			}
			fmt.Println(tw.Render())
			return nil
		},
	}
}

func newTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "task <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var t domain.Task
			if err := apiClient().get("/tasks/"+args[0], &t); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(t)
			}
			tw := newTable("FIELD", "VALUE")
			tw.AppendRows([]table.Row{
				{"id", t.ID},
				{"project", t.ProjectID},
				{"state", t.State},
				{"stage", t.Stage},
				{"status", t.StatusMessage},
				{"repair attempts", t.RepairAttempts},
				{"created", t.CreatedAt.Format(time.RFC3339)},
				{"updated", t.UpdatedAt.Format(time.RFC3339)},
			})
			fmt.Println(tw.Render())
			return nil
		},
	}
}

func newArtifactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts <task-id>",
		Short: "List a task's artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arts []domain.Artifact
			if err := apiClient().get("/tasks/"+args[0]+"/artifacts", &arts); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(arts)
			}
			tw := newTable("NAME", "KIND", "MIME", "URL", "CREATED")
			for _, a := range arts {
				tw.AppendRow(table.Row{a.Name, a.Kind, a.MimeType, a.URL, a.CreatedAt.Format(time.RFC3339)})
			}
			fmt.Println(tw.Render())
			return nil
		},
	}
}

func newMessagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "messages <task-id>",
		Short: "Show a task's message log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var msgs []domain.AgentMessage
			if err := apiClient().get("/tasks/"+args[0]+"/messages", &msgs); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(msgs)
			}
			tw := newTable("TIME", "FROM", "TO", "TYPE", "TEXT")
			for _, m := range msgs {
				text := ""
				if m.Message != nil {
					text = m.Message.Text()
				}
				tw.AppendRow(table.Row{m.CreatedAt.Format("15:04:05"), m.From, m.To, m.Type, text})
			}
			fmt.Println(tw.Render())
			return nil
		},
	}
}

func newTable(headers ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row(headers))
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
