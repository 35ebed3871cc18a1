package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/sahara/internal/logger"
	"github.com/spigell/sahara/internal/matching"
	"github.com/spigell/sahara/internal/profile"
	"github.com/spigell/sahara/internal/session"
)

var languages = []string{"en", "hi", "mr"}

var timeNow = time.Now

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match a transcript against the benefit catalog and print the result",
	Run: func(cmd *cobra.Command, _ []string) {
		if err := match(cmd); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("transcript", "t", "", "transcript to match. Asked interactively when empty.")
	matchCmd.Flags().StringP("file", "f", "", "file with one transcript per line, matched as a batch")
	matchCmd.Flags().String("language", "", "transcript language tag (default en)")
	matchCmd.Flags().String("user-id", "", "user id used for caching and saving the session")
	matchCmd.Flags().String("name", "", "user name")
	matchCmd.Flags().String("city", "", "user city")
	matchCmd.Flags().String("state", "", "user state")
	matchCmd.Flags().Bool("save", false, "save the result as a session (requires --user-id)")
}

func match(cmd *cobra.Command) error {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return fmt.Errorf("creating a logger: %w", err)
	}

	config, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	c, err := buildComponents(ctx, config, prometheus.NewRegistry(), logger)
	if err != nil {
		return fmt.Errorf("building components: %w", err)
	}
	defer c.Close()

	user := userFromFlags(cmd)
	language, _ := cmd.Flags().GetString("language")

	if file, _ := cmd.Flags().GetString("file"); file != "" {
		transcripts, err := readTranscripts(file)
		if err != nil {
			return err
		}
		logger.Info("matching batch", zap.Int("count", len(transcripts)), zap.String("file", file))

		results, err := c.orchestrator.MatchBatch(ctx, transcripts, user, language)
		if err != nil {
			return fmt.Errorf("batch matching: %w", err)
		}
		return printJSON(results)
	}

	transcript, _ := cmd.Flags().GetString("transcript")
	if strings.TrimSpace(transcript) == "" {
		transcript, language, err = askTranscript(language)
		if err != nil {
			return err
		}
	}

	req := matching.MatchRequest{Transcript: transcript, UserProfile: user, Language: language}
	resp, err := c.orchestrator.MatchBenefits(ctx, req)
	if err != nil {
		return printJSON(matching.NewErrorResponse(err))
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		if user == nil || user.UserID == "" {
			return errors.New("--save requires --user-id")
		}
		record := session.FromMatch(session.NewID(timeNow()), user, req.Lang(), strings.TrimSpace(transcript), resp, session.SearchManual)
		saved, err := c.recorder.Record(ctx, record)
		if err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		logger.Info("session saved", zap.String("session_id", saved.SessionID))
	}

	return printJSON(resp)
}

func userFromFlags(cmd *cobra.Command) *profile.User {
	id, _ := cmd.Flags().GetString("user-id")
	name, _ := cmd.Flags().GetString("name")
	city, _ := cmd.Flags().GetString("city")
	state, _ := cmd.Flags().GetString("state")

	if id == "" && name == "" && city == "" && state == "" {
		return nil
	}

	user := &profile.User{UserID: id, Name: name}
	if city != "" || state != "" {
		user.Address = &profile.Address{City: city, State: state}
	}
	return user
}

func askTranscript(language string) (string, string, error) {
	prompt := promptui.Prompt{
		Label: "Describe your situation",
		Validate: func(input string) error {
			if utf8.RuneCountInString(strings.TrimSpace(input)) < matching.MinTranscriptRunes {
				return fmt.Errorf("please write at least %d characters", matching.MinTranscriptRunes)
			}
			return nil
		},
	}

	transcript, err := prompt.Run()
	if err != nil {
		return "", "", fmt.Errorf("reading transcript: %w", err)
	}

	if language == "" {
		selectLang := promptui.Select{
			Label: "Language",
			Items: languages,
		}
		_, language, err = selectLang.Run()
		if err != nil {
			return "", "", fmt.Errorf("selecting language: %w", err)
		}
	}

	return transcript, language, nil
}

func readTranscripts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening transcripts file: %w", err)
	}
	defer f.Close()

	var transcripts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			transcripts = append(transcripts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading transcripts file: %w", err)
	}
	return transcripts, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
