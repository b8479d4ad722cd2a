package main

import (
	"fmt"
	"os"

	"github.com/netalarm/internal/cli/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "netalarmctl",
	Short: "NetAlarm CLI - fault alarm operations",
	Long: `netalarmctl is a command-line tool for the NetAlarm fault-management
platform. It lists and manages alarms, inspects correlation groups,
administers correlation rules and triggers recorrelation.`,
}

func init() {
	viper.SetConfigName(".netalarmctl")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			viper.SafeWriteConfig()
		}
	}

	rootCmd.PersistentFlags().String("server", "", "NetAlarm server URL")
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewAlarmCommand())
	rootCmd.AddCommand(commands.NewRuleCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
