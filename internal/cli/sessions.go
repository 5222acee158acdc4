package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"aria/internal/adapter/storage"
)

var (
	sessionsLimit    int
	sessionsID       string
	sessionsStats    bool
	feedbackValue    string
	feedbackConvID   string
	feedbackClearing bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect logged conversations",
	RunE:  runSessions,
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <conversation-id>",
	Short: "Record feedback on a logged conversation",
	Long: `Feedback marks a conversation as helpful, not_helpful or
partially_helpful, or clears an earlier mark with --clear.`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "number of recent conversations to show")
	sessionsCmd.Flags().StringVar(&sessionsID, "session", "", "show all conversations for one session")
	sessionsCmd.Flags().BoolVar(&sessionsStats, "stats", false, "show aggregate statistics")
	rootCmd.AddCommand(sessionsCmd)

	feedbackCmd.Flags().StringVar(&feedbackValue, "value", storage.FeedbackHelpful,
		"feedback value: helpful, not_helpful or partially_helpful")
	feedbackCmd.Flags().BoolVar(&feedbackClearing, "clear", false, "clear existing feedback")
	rootCmd.AddCommand(feedbackCmd)
}

func openStore() (*storage.BoltConversationStore, error) {
	return storage.NewBoltConversationStore(cfg.ConversationDBPath(rootDir))
}

func runSessions(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if sessionsStats {
		stats, err := store.ConversationStats()
		if err != nil {
			return err
		}
		fmt.Printf("Total conversations:  %d\n", stats.TotalConversations)
		fmt.Printf("Avg response time:    %.2fs\n", stats.AvgResponseTime)
		fmt.Printf("Avg question length:  %.1f chars\n", stats.AvgQuestionLength)
		fmt.Printf("Avg response length:  %.1f chars\n", stats.AvgResponseLength)
		fmt.Printf("Recent sample size:   %d\n", stats.RecentSampleSize)
		return nil
	}

	if sessionsID != "" {
		recs, err := store.SessionConversations(sessionsID)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			printRecord(rec.CreatedAt, rec.ID, rec.Question, rec.Feedback)
		}
		if len(recs) == 0 {
			fmt.Println("No conversations for that session.")
		}
		return nil
	}

	recs, err := store.RecentConversations(sessionsLimit)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		printRecord(rec.CreatedAt, rec.ID, rec.Question, rec.Feedback)
	}
	if len(recs) == 0 {
		fmt.Println("No conversations logged yet.")
	}
	return nil
}

func printRecord(ts time.Time, id, question, feedback string) {
	line := fmt.Sprintf("%s  %s  %s", ts.Format("2006-01-02 15:04"), id, question)
	if feedback != "" {
		line += fmt.Sprintf("  [%s]", feedback)
	}
	fmt.Println(line)
}

func runFeedback(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	feedbackConvID = args[0]
	if feedbackClearing {
		if err := store.ClearFeedback(feedbackConvID); err != nil {
			return err
		}
		fmt.Println("Feedback cleared.")
		return nil
	}

	if err := store.UpdateFeedback(feedbackConvID, feedbackValue); err != nil {
		return err
	}
	fmt.Printf("Feedback recorded: %s\n", feedbackValue)
	return nil
}
