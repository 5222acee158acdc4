package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"aria/internal/domain"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive tutoring session",
	Long: `Chat starts an interactive session. Conversation history feeds back into
each question so follow-ups stay in context.

Commands inside the session:
  /new   start a fresh session
  /quit  exit`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	responder, cleanup, err := newResponder(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("ARIA tutoring session %s\n", responder.SessionID())
	fmt.Println("Ask a question, /new for a fresh session, /quit to exit.")

	var history []domain.Turn
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/new":
			history = nil
			fmt.Printf("Started session %s\n", responder.NewSession())
			continue
		}

		answer := responder.Respond(line, history)
		fmt.Printf("\n%s\n", answer.Response)

		if answer.IsCourseRelevant {
			history = append(history,
				domain.Turn{Role: domain.RoleUser, Content: line},
				domain.Turn{Role: domain.RoleAssistant, Content: answer.Response},
			)
		}
	}

	return scanner.Err()
}
