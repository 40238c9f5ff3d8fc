// Command monitor is a terminal dashboard for a running orchestrator. It
// polls the HTTP API and shows tasks on the left with artifacts and the
// message log for the selected task on the right.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"vidsmith/internal/domain"
)

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) get(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) tasks() ([]domain.Task, error) {
	var out []domain.Task
	err := c.get("/tasks", &out)
	return out, err
}

func (c *client) artifacts(taskID string) ([]domain.Artifact, error) {
	var out []domain.Artifact
	err := c.get("/tasks/"+taskID+"/artifacts", &out)
	return out, err
}

func (c *client) messages(taskID string) ([]domain.AgentMessage, error) {
	var out []domain.AgentMessage
	err := c.get("/tasks/"+taskID+"/messages", &out)
	return out, err
}

func main() {
	var (
		addr     = flag.String("addr", "http://127.0.0.1:8085", "orchestrator base URL")
		interval = flag.Duration("interval", 2*time.Second, "poll interval")
	)
	flag.Parse()

	c := &client{
		baseURL: strings.TrimRight(*addr, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}

	app := tview.NewApplication()

	table := tview.NewTable().SetSelectable(true, false).SetFixed(1, 0)
	table.SetBorder(true).SetTitle(" Tasks ")

	detail := tview.NewTextView().SetDynamicColors(true).SetWrap(true)
	detail.SetBorder(true).SetTitle(" Detail ")

	status := tview.NewTextView().SetDynamicColors(true)
	status.SetText("[gray]q quit · r refresh · arrows select")

	flex := tview.NewFlex().
		AddItem(table, 0, 1, true).
		AddItem(detail, 0, 1, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(flex, 0, 1, true).
		AddItem(status, 1, 0, false)

	var taskIDs []string

	refresh := func() {
		tasks, err := c.tasks()
		if err != nil {
			status.SetText(fmt.Sprintf("[red]poll failed: %v", err))
			return
		}
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })

		row, _ := table.GetSelection()
		table.Clear()
		for col, h := range []string{"ID", "STATE", "STAGE", "STATUS"} {
			table.SetCell(0, col, tview.NewTableCell("[yellow]"+h).SetSelectable(false))
		}
		taskIDs = taskIDs[:0]
		for i, t := range tasks {
			taskIDs = append(taskIDs, t.ID)
			table.SetCell(i+1, 0, tview.NewTableCell(shortID(t.ID)))
			table.SetCell(i+1, 1, tview.NewTableCell(stateColor(t.State)+string(t.State)))
			table.SetCell(i+1, 2, tview.NewTableCell(string(t.Stage)))
			table.SetCell(i+1, 3, tview.NewTableCell(t.StatusMessage))
		}
		if row >= table.GetRowCount() {
			row = table.GetRowCount() - 1
		}
		if row < 1 {
			row = 1
		}
		if table.GetRowCount() > 1 {
			table.Select(row, 0)
		}
		status.SetText(fmt.Sprintf("[gray]%d task(s) · refreshed %s · q quit", len(tasks), time.Now().Format("15:04:05")))
	}

	showDetail := func(row int) {
		idx := row - 1
		if idx < 0 || idx >= len(taskIDs) {
			detail.SetText("")
			return
		}
		id := taskIDs[idx]
		var sb strings.Builder
		fmt.Fprintf(&sb, "[yellow]Task[-] %s\n\n", id)
		if arts, err := c.artifacts(id); err == nil {
			fmt.Fprintf(&sb, "[yellow]Artifacts (%d)[-]\n", len(arts))
			for _, a := range arts {
				fmt.Fprintf(&sb, "  %-24s %s %s\n", a.Name, a.Kind, a.URL)
			}
		}
		if msgs, err := c.messages(id); err == nil {
			fmt.Fprintf(&sb, "\n[yellow]Messages (%d)[-]\n", len(msgs))
			for _, m := range msgs {
				fmt.Fprintf(&sb, "  %s %s -> %s  %s\n", m.CreatedAt.Format("15:04:05"), m.From, m.To, m.Type)
			}
		}
		detail.SetText(sb.String())
	}

	table.SetSelectionChangedFunc(func(row, _ int) { showDetail(row) })

	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch {
		case ev.Rune() == 'q':
			app.Stop()
			return nil
		case ev.Rune() == 'r':
			refresh()
			row, _ := table.GetSelection()
			showDetail(row)
			return nil
		}
		return ev
	})

	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		for range ticker.C {
			app.QueueUpdateDraw(func() {
				refresh()
				row, _ := table.GetSelection()
				showDetail(row)
			})
		}
	}()

	refresh()
	if err := app.SetRoot(root, true).Run(); err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("monitor: %v", err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func stateColor(state domain.TaskState) string {
	switch state {
	case domain.TaskStateCompleted:
		return "[green]"
	case domain.TaskStateFailed:
		return "[red]"
	case domain.TaskStateWorking:
		return "[aqua]"
	default:
		return "[white]"
	}
}
