package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MatthewHA233/solo-leveling-system-sub001/internal/ipc"
)

var rootCmd = &cobra.Command{
	Use:   "sls-cli",
	Short: "CLI tool to interact with the SLS perception daemon",
	Long:  `A command-line interface to query status, fetch activity cards and trigger captures on the running slsd daemon via its Unix socket.`,
}

// --- Client Helper Function ---
func sendCommand(cmd ipc.Command) {
	conn, err := net.DialTimeout("unix", ipc.SocketPath, 2*time.Second)
	if err != nil {
		log.Fatalf("Error connecting to daemon socket (%s): %v\nIs the slsd daemon running?", ipc.SocketPath, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	// Test-connection round trips to the AI provider, give it longer.
	conn.SetReadDeadline(time.Now().Add(35 * time.Second))

	encoder := json.NewEncoder(conn)
	decoder := json.NewDecoder(conn)

	if err := encoder.Encode(cmd); err != nil {
		log.Fatalf("Error sending command: %v", err)
	}

	var resp ipc.Response
	if err := decoder.Decode(&resp); err != nil {
		log.Fatalf("Error receiving response: %v", err)
	}

	if resp.Success {
		fmt.Println("Success:", resp.Message)
		if resp.Data != nil {
			prettyData, err := json.MarshalIndent(resp.Data, "", "  ")
			if err == nil {
				fmt.Println("Data:")
				fmt.Println(string(prettyData))
			} else {
				fmt.Println("Data (raw):", resp.Data)
			}
		}
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", resp.Message)
		os.Exit(1)
	}
}

// --- Command Definitions ---

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if the slsd daemon is running",
	Run: func(cmd *cobra.Command, args []string) {
		sendCommand(ipc.Command{Name: ipc.CmdPing})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Get the current activity state and monitor snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		sendCommand(ipc.Command{Name: ipc.CmdGetStatus})
	},
}

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "List the most recent activity cards",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		sendCommand(ipc.Command{
			Name: ipc.CmdGetCards,
			Args: ipc.GetCardsArgs{Limit: limit},
		})
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Trigger one capture cycle outside the schedule",
	Run: func(cmd *cobra.Command, args []string) {
		sendCommand(ipc.Command{Name: ipc.CmdCaptureNow})
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Validate the configured AI provider credentials",
	Run: func(cmd *cobra.Command, args []string) {
		sendCommand(ipc.Command{Name: ipc.CmdTestConnection})
	},
}

func main() {
	cardsCmd.Flags().IntP("limit", "l", 20, "Maximum number of cards to fetch")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cardsCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(testCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
