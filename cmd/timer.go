package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/circa10a/countdown/api"
	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	apiURL       string
	outputFormat string
	useColor     bool
	client       *api.Client
)

func initClient() error {
	var err error

	httpClient := &http.Client{
		Timeout: 5 * time.Second,
	}

	client, err = api.NewClient(apiURL, httpClient)
	return err
}

// formatOutput handles conversion and writing to the command's designated output
func formatOutput(cmd *cobra.Command, data interface{}, isError bool) {
	if !useColor {
		color.NoColor = true
	} else {
		color.NoColor = false
	}

	var out string

	switch outputFormat {
	case "yaml":
		b, _ := yaml.Marshal(data)
		if useColor {
			if isError {
				out = color.RedString(string(b))
			} else {
				out = color.CyanString(string(b))
			}
		} else {
			out = string(b)
		}

	case "json":
		fallthrough
	default:
		if useColor {
			b, _ := prettyjson.Marshal(data)
			out = string(b)
		} else {
			b, _ := json.MarshalIndent(data, "", "  ")
			out = string(b)
		}
	}

	cmd.Println(out)
}

// dumpResponse handles formatting success data or API error models
func dumpResponse(cmd *cobra.Command, statusCode int, body []byte, successData interface{}) {
	if statusCode >= 200 && statusCode < 300 {
		if successData != nil {
			formatOutput(cmd, successData, false)
		} else {
			// Success but no data (e.g., 204 No Content)
			if useColor {
				_, err := color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "Success")
				if err != nil {
					cmd.PrintErrf("Error writing to stdout %v\n", err)
					return
				}
			} else {
				cmd.Println("Success")
			}
		}
		return
	}

	// Handle Errors: Try to parse structured API error first
	var apiErr api.Error
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		formatOutput(cmd, apiErr, true)
		return
	}

	// Fallback: Print raw body or just the status code
	if len(body) > 0 {
		if useColor {
			_, _ = color.New(color.FgRed).Fprintln(cmd.OutOrStdout(), string(body))
		} else {
			cmd.PrintErrln(string(body))
		}
	} else {
		cmd.PrintErrf("Error: Received status code %d\n", statusCode)
	}
}

// dump prints a typed API response.
func dump[T any](cmd *cobra.Command, resp *api.Response[T]) {
	if resp.JSON == nil {
		dumpResponse(cmd, resp.StatusCode, resp.Body, nil)
		return
	}
	dumpResponse(cmd, resp.StatusCode, resp.Body, *resp.JSON)
}

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Manage countdown timers",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initClient()
	},
}

var getTimersCmd = &cobra.Command{
	Use:   "get [name]",
	Short: "Get all timers or a specific one by name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		if len(args) > 0 {
			resp, err := client.GetTimer(ctx, args[0])
			if err != nil {
				return err
			}
			dump(cmd, resp)
			return nil
		}

		resp, err := client.ListTimers(ctx)
		if err != nil {
			return err
		}
		dump(cmd, resp)
		return nil
	},
}

var addTimerCmd = &cobra.Command{
	Use:   "add",
	Short: "Start a new countdown timer",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		minutes, _ := cmd.Flags().GetInt("minutes")
		seconds, _ := cmd.Flags().GetInt("seconds")
		loop, _ := cmd.Flags().GetBool("loop")

		resp, err := client.CreateTimer(context.Background(), api.NewTimer{
			Name:    name,
			Minutes: minutes,
			Seconds: seconds,
			Loop:    loop,
		})
		if err != nil {
			return err
		}
		dump(cmd, resp)
		return nil
	},
}

var loopTimerCmd = &cobra.Command{
	Use:   "loop [name]",
	Short: "Turn looping on or off for a timer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, _ := cmd.Flags().GetBool("enabled")

		resp, err := client.SetLoop(context.Background(), args[0], enabled)
		if err != nil {
			return err
		}
		dump(cmd, resp)
		return nil
	},
}

var removeTimerCmd = &cobra.Command{
	Use:     "remove [name]",
	Aliases: []string{"delete"},
	Short:   "Remove a countdown timer",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := client.DeleteTimer(context.Background(), args[0])
		if err != nil {
			return err
		}
		dumpResponse(cmd, resp.StatusCode, resp.Body, nil)
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent timer expiries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		resp, err := client.ListEvents(context.Background(), limit)
		if err != nil {
			return err
		}
		dump(cmd, resp)
		return nil
	},
}

func init() {
	timerCmd.PersistentFlags().StringVarP(&apiURL, "url", "u", "http://localhost:8080/api/v1", "API base URL")
	timerCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "Output format (json, yaml)")
	timerCmd.PersistentFlags().BoolVar(&useColor, "color", true, "Enable colorized output")

	addTimerCmd.Flags().StringP("name", "n", "Timer", "Timer name")
	addTimerCmd.Flags().IntP("minutes", "m", 0, "Minutes")
	addTimerCmd.Flags().IntP("seconds", "s", 0, "Seconds (0-59)")
	addTimerCmd.Flags().BoolP("loop", "l", false, "Restart the timer every time it finishes")

	loopTimerCmd.Flags().BoolP("enabled", "e", true, "Whether the timer loops")

	eventsCmd.Flags().IntP("limit", "", 0, "Maximum number of events to show (0 for all)")

	timerCmd.AddCommand(getTimersCmd, addTimerCmd, loopTimerCmd, removeTimerCmd, eventsCmd)
	rootCmd.AddCommand(timerCmd)
}
