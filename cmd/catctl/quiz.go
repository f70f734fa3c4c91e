package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/catengine/cat/internal/domain"
	"github.com/catengine/cat/internal/irt"
)

func init() {
	rootCmd.AddCommand(quizCmd)
	quizCmd.AddCommand(quizStartCmd)
	quizCmd.AddCommand(quizRunCmd)
	quizCmd.AddCommand(quizStatusCmd)

	quizStartCmd.Flags().String("learner", "", "learner ID")
	quizStartCmd.Flags().StringSlice("cells", nil, "content cells to draw from")
	quizStartCmd.Flags().Int("max-questions", 30, "hard cap on items administered")
	quizStartCmd.Flags().String("quiz-type", string(domain.QuizRegular), "baseline|regular|practice-new|practice-review")
	quizStartCmd.MarkFlagRequired("learner")
	quizStartCmd.MarkFlagRequired("cells")

	quizRunCmd.Flags().String("learner", "", "learner ID")
	quizRunCmd.Flags().Float64("true-theta", 0.0, "the simulated learner's true ability, used to generate answers")
	quizRunCmd.MarkFlagRequired("learner")

	quizStatusCmd.Flags().String("learner", "", "learner ID")
	quizStatusCmd.MarkFlagRequired("learner")
}

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Start, drive, and inspect quiz sessions",
}

var quizStartCmd = &cobra.Command{
	Use:   "start QUIZ_ID",
	Short: "Create a new quiz session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		learner, _ := cmd.Flags().GetString("learner")
		cells, _ := cmd.Flags().GetStringSlice("cells")
		maxQuestions, _ := cmd.Flags().GetInt("max-questions")
		quizType, _ := cmd.Flags().GetString("quiz-type")

		quiz := domain.QuizSession{
			ID: args[0], LearnerID: learner, MaxQuestions: maxQuestions, Exploration: 1.0,
			TopicMode: domain.TopicSelectionManual, SelectedCells: cells,
			QuizType: domain.QuizType(quizType), Status: domain.QuizStatusInProgress, StartedAt: time.Now(),
		}
		if err := db.InsertQuiz(context.Background(), quiz); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created quiz %s for learner %s over cells %v\n", quiz.ID, learner, cells)
		return nil
	},
}

// quizRunCmd drives a quiz session to completion against a simulated
// learner whose answers are drawn from the 3PL response probability at
// --true-theta, for exercising the full select/answer loop without a UI.
var quizRunCmd = &cobra.Command{
	Use:   "run QUIZ_ID",
	Short: "Run a quiz session to completion against a simulated learner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, db, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		learner, _ := cmd.Flags().GetString("learner")
		trueTheta, _ := cmd.Flags().GetFloat64("true-theta")
		quizID := args[0]
		ctx := context.Background()

		for {
			result, err := e.SelectNext(ctx, learner, quizID)
			if err != nil {
				return fmt.Errorf("select_next: %w", err)
			}
			if result.Done {
				fmt.Fprintf(cmd.OutOrStdout(), "quiz complete: %s\n", result.StopDecision.Reason)
				return nil
			}

			item := result.Item
			params := irt.Parameters{A: item.A, B: item.B, C: item.C}
			p := irt.Probability(trueTheta, params)
			option := "incorrect"
			if rand.Float64() < p {
				option = "correct"
			}
			responseTimeMs := int64(2000 + rand.Intn(8000))

			answer, err := e.ProcessAnswer(ctx, learner, quizID, item.ID, option, responseTimeMs)
			if err != nil {
				return fmt.Errorf("process_answer: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "item=%s p_correct=%.3f answered=%s theta=%.3f->%.3f\n",
				item.ID, p, option, answer.OldTheta, answer.NewTheta)
		}
	},
}

var quizStatusCmd = &cobra.Command{
	Use:   "status QUIZ_ID",
	Short: "Report a quiz session's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, db, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		learner, _ := cmd.Flags().GetString("learner")
		status, err := e.QuizStatus(context.Background(), learner, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "answered %d/%d, status=%s\n", status.Answered, status.MaxQuestions, status.Status)
		for _, m := range status.Masteries {
			fmt.Fprintf(cmd.OutOrStdout(), "  cell=%s theta=%.3f sem=%.3f mastered=%v\n", m.CellID, m.Theta, m.SEM, m.Mastered())
		}
		return nil
	},
}
