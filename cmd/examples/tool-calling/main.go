package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/burattino/pkg/chat"
	"github.com/go-go-golems/burattino/pkg/events"
	"github.com/go-go-golems/burattino/pkg/gate"
	"github.com/go-go-golems/burattino/pkg/profiles"
	"github.com/go-go-golems/burattino/pkg/prompt"
	"github.com/go-go-golems/burattino/pkg/tools"
)

type weatherRequest struct {
	Location string `json:"location" jsonschema:"required,description=The city to get weather for"`
	Units    string `json:"units,omitempty" jsonschema:"description=Temperature units,enum=celsius,enum=fahrenheit"`
}

type weatherResponse struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	Conditions  string  `json:"conditions"`
}

func getWeather(req weatherRequest) (weatherResponse, error) {
	log.Info().Str("location", req.Location).Msg("weather tool called")
	return weatherResponse{
		Location:    req.Location,
		Temperature: 22.5,
		Conditions:  "sunny",
	}, nil
}

var (
	configPath  string
	profileName string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "tool-calling [question]",
	Short: "Ask one question with a weather tool available",
	Args:  cobra.ExactArgs(1),
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

		// watch tool events on a local bus
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
		defer func() { _ = pubSub.Close() }()

		ctx := cmd.Context()
		messages, err := pubSub.Subscribe(ctx, "chat-events")
		if err != nil {
			return err
		}
		go func() {
			for msg := range messages {
				log.Debug().RawJSON("event", msg.Payload).Msg("chat event")
				msg.Ack()
			}
		}()

		single, err := chat.NewSingleChat(reg, profileName, "", false, prompt.Assembler{},
			chat.WithSink(events.NewWatermillSink(pubSub, "chat-events")))
		if err != nil {
			return err
		}

		toolReg := tools.NewRegistry()
		if err := toolReg.RegisterFunc("get_weather", "Look up the current weather", getWeather); err != nil {
			return err
		}
		if err := single.SetTools(toolReg); err != nil {
			return err
		}

		answer, results, err := single.GetToolAnswer(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Println(answer)
		for i, result := range results {
			fmt.Printf("tool result #%d: %s\n", i, result)
		}
		return nil
	},
}

func main() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "profiles.yaml", "profile registry config")
	rootCmd.Flags().StringVarP(&profileName, "profile", "p", "default", "profile to chat with")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "zerolog level")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
