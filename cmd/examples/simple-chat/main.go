package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/burattino/pkg/chat"
	"github.com/go-go-golems/burattino/pkg/gate"
	"github.com/go-go-golems/burattino/pkg/profiles"
	"github.com/go-go-golems/burattino/pkg/prompt"
)

var (
	configPath  string
	profileName string
	systemMsg   string
	stream      bool
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "simple-chat",
	Short: "Interactive chat against a configured model profile",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := profiles.NewRegistry(gate.New())
		if err := reg.LoadYAMLFile(configPath); err != nil {
			return err
		}

		single, err := chat.NewSingleChat(reg, profileName, systemMsg, stream, prompt.Assembler{})
		if err != nil {
			return err
		}

		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			input := scanner.Text()
			if input == "" {
				fmt.Print("> ")
				continue
			}

			answer, err := single.GetAnswer(context.Background(), input)
			if err != nil {
				log.Error().Err(err).Msg("request failed")
			} else {
				fmt.Println(answer)
			}
			fmt.Print("> ")
		}

		log.Info().Int("total_tokens", single.Usage).Msg("session finished")
		return scanner.Err()
	},
}

func main() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "profiles.yaml", "profile registry config")
	rootCmd.Flags().StringVarP(&profileName, "profile", "p", "default", "profile to chat with")
	rootCmd.Flags().StringVarP(&systemMsg, "system", "s", "", "system prompt")
	rootCmd.Flags().BoolVar(&stream, "stream", false, "stream the responses")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "zerolog level")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
