package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wormhole-foundation/wormhole/core/cmd/wormcore"
	"github.com/wormhole-foundation/wormhole/core/pkg/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "wormcore",
	Short: "Wormhole VAA verification and core bridge node",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display binary version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Version())
	},
}

// Execute runs the command line. Errors are printed and exit the process with status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.wormcore.yaml)")
	rootCmd.AddCommand(wormcore.NodeCmd)
	rootCmd.AddCommand(wormcore.VerifyCmd)
	rootCmd.AddCommand(wormcore.InspectCmd)
	rootCmd.AddCommand(wormcore.DevnetGenesisCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig loads .env and the optional config file, then enables WORMCORE_* environment overrides.
func initConfig() {
	// Tentatively load .env file
	_ = godotenv.Load()

	switch home, err := os.UserHomeDir(); {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case err == nil:
		viper.AddConfigPath(home)
		viper.SetConfigName(".wormcore")
	}

	viper.SetEnvPrefix("wormcore")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
