package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	v1 "finch/api/v1"
	"finch/internal/delta"
	"finch/internal/gateway/handlers"
	"finch/internal/provider"
	"finch/internal/reducer"
)

// chatOptions are the chat command flags.
type chatOptions struct {
	ServerURL string
	Token     string
	ChatID    string
	ModelID   string
	Mode      string
	ProjectID string
	SkillID   string
}

// NewChatCmd creates the chat command.
func NewChatCmd() *cobra.Command {
	opts := chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with a running finch server",
		Long: `Send a message to a running finch server and render the streamed
answer. Without a message an interactive session starts; every line is
sent to the same chat.

The token is read from --token, then FINCH_TOKEN. When neither is set and
FINCH_JWT_SECRET is available, a token for --email is minted locally.`,
		Example: `  # One question
  finch chat "How did NVDA trade this week?"

  # Document mode with a saved skill
  finch chat --mode document --skill <skill-id> "Write an industry overview of semiconductors"

  # Interactive session
  finch chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := GetCLIContext(cmd)
			if cliCtx == nil {
				return fmt.Errorf("CLI context not initialized")
			}
			if opts.ServerURL == "" {
				opts.ServerURL = cliCtx.BaseURL()
			}
			if opts.Token == "" {
				opts.Token = os.Getenv("FINCH_TOKEN")
			}
			if opts.Token == "" {
				email, _ := cmd.Flags().GetString("email")
				iss, err := cliCtx.Issuer()
				if err != nil {
					return fmt.Errorf("no token: pass --token, set FINCH_TOKEN, or configure FINCH_JWT_SECRET: %w", err)
				}
				if opts.Token, err = iss.Mint(email); err != nil {
					return err
				}
			}
			if opts.ChatID == "" {
				opts.ChatID = uuid.NewString()
			}

			client := &http.Client{}
			if len(args) > 0 {
				msgs := []v1.ChatMessage{{Role: provider.RoleUser, Content: strings.Join(args, " ")}}
				_, err := streamChat(cmd.Context(), client, opts, msgs, cmd.OutOrStdout(), cmd.ErrOrStderr())
				return err
			}
			return interactiveChat(cmd.Context(), client, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.ServerURL, "url", "", "finch server URL (reads from config if not specified)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "API token")
	cmd.Flags().String("email", "cli@localhost", "user to mint a token for when no token is given")
	cmd.Flags().StringVar(&opts.ChatID, "chat", "", "chat id to continue (new chat if empty)")
	cmd.Flags().StringVarP(&opts.ModelID, "model", "m", "", "model id (server default if empty)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "general", "general or document")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id for document mode")
	cmd.Flags().StringVar(&opts.SkillID, "skill", "", "skill id for document mode")

	return cmd
}

func interactiveChat(ctx context.Context, client *http.Client, opts chatOptions, in io.Reader, out, errOut io.Writer) error {
	fmt.Fprintf(errOut, "Chat %s. Empty line or Ctrl-D to quit.\n", opts.ChatID)
	var history []v1.ChatMessage
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(errOut, "> ")
		if !sc.Scan() {
			fmt.Fprintln(errOut)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			return nil
		}
		history = append(history, v1.ChatMessage{Role: provider.RoleUser, Content: line})
		answer, err := streamChat(ctx, client, opts, history, out, errOut)
		if err != nil {
			return err
		}
		history = append(history, v1.ChatMessage{Role: provider.RoleAssistant, Content: answer})
	}
}

// streamChat posts one turn and renders its deltas. It returns the text of
// the answer.
func streamChat(ctx context.Context, client *http.Client, opts chatOptions, msgs []v1.ChatMessage, out, errOut io.Writer) (string, error) {
	body, err := json.Marshal(v1.ChatRequest{
		ID:        opts.ChatID,
		Messages:  msgs,
		ModelID:   opts.ModelID,
		Mode:      opts.Mode,
		ProjectID: opts.ProjectID,
		SkillID:   opts.SkillID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(opts.ServerURL, "/")+"/api/v1/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+opts.Token)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w\nIs the server running? Start it with: finch serve", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e handlers.ErrorResponse
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
			return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode, e.Error.Message)
		}
		return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	r := newRenderer(out, errOut)
	if err := delta.ReadSSE(ctx, resp.Body, r.reducer.Push); err != nil {
		return r.text.String(), fmt.Errorf("read stream: %w", err)
	}
	fmt.Fprintln(out)
	if msg := r.reducer.State().Error; msg != "" {
		return r.text.String(), fmt.Errorf("%s", msg)
	}
	return r.text.String(), nil
}

// renderer prints reducer changes: answer text to out, progress to errOut.
type renderer struct {
	reducer *reducer.Reducer
	text    strings.Builder
	out     io.Writer
	errOut  io.Writer
}

func newRenderer(out, errOut io.Writer) *renderer {
	r := &renderer{reducer: reducer.New(), out: out, errOut: errOut}
	r.reducer.Subscribe(r.render)
	return r
}

func (r *renderer) render(c reducer.Change) {
	switch d := c.Delta.(type) {
	case delta.TextDelta:
		r.text.WriteString(string(d))
		fmt.Fprint(r.out, string(d))
	case delta.QueryLoading:
		if d.IsLoading && len(d.TaskNames) > 0 {
			fmt.Fprintf(r.errOut, "[plan] %s\n", strings.Join(d.TaskNames, "; "))
		}
	case delta.ToolLoading:
		if d.IsLoading {
			msg := d.Tool
			if d.Message != nil && *d.Message != "" {
				msg = *d.Message
			}
			fmt.Fprintf(r.errOut, "[tool] %s\n", msg)
		}
	case delta.Error:
		fmt.Fprintf(r.errOut, "[error] %s\n", string(d))
	}
}
