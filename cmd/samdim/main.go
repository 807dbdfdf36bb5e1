package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/LArSoft/larbatch/pkg/gridenv"
	"github.com/LArSoft/larbatch/pkg/samweb"
	"github.com/LArSoft/larbatch/pkg/util/log"
)

// samdimVersion is the actual samdim release version.
// For major releases this should be incremented.
const samdimVersion = "v1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var cfgFile string
var showVersion bool

func init() {
	log.SetLevel(logrus.WarnLevel)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $(PWD)/.samdim.yaml)")
	rootCmd.PersistentFlags().StringP("experiment", "e", "", "experiment name (default from environment)")
	rootCmd.PersistentFlags().String("url", samweb.DefaultBaseURL, "SAM service base URL")
	rootCmd.PersistentFlags().String("timeout", "5m", "per-request timeout")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print informational logging")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Print version info and exit.")

	cobra.OnInitialize(initConfig)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("samdim")
	viper.AutomaticEnv()

	if cfgFile != "" { // enable ability to specify config file via flag
		viper.SetConfigFile(cfgFile)
	}
	viper.SetConfigName(".samdim")
	viper.AddConfigPath(".")

	viper.BindPFlags(rootCmd.PersistentFlags())

	err := viper.ReadInConfig()

	// ReadInConfig will return an error if no config is provided.
	// We only want to raise an error if a file was provided.
	if viper.ConfigFileUsed() != "" && err != nil {
		fmt.Fprintf(os.Stderr, "Error reading samdim configuration: %s\n", err)
		os.Exit(2)
	}

	if viper.ConfigFileUsed() != "" {
		log.Infof("Using config file: %s", viper.ConfigFileUsed())
	}
}

var rootCmd = &cobra.Command{
	Use:     "samdim",
	Short:   "Evaluate SAM dataset dimension queries and manage projects",
	Example: "samdim files 'defname: mydef minus run_number 1234'",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if viper.GetBool("debug") {
			log.SetLevel(logrus.DebugLevel)
			log.SetVerbosity(2)
		} else if viper.GetBool("verbose") {
			log.SetLevel(logrus.InfoLevel)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			printVersion()
			return nil
		}
		return cmd.Usage()
	},
}

func printVersion() {
	fmt.Printf("samdim version: %s\n", samdimVersion)
}

// newClient builds a SAM client from the active configuration.
func newClient() (*samweb.Client, error) {
	experiment := viper.GetString("experiment")
	if experiment == "" {
		exp, err := gridenv.Experiment()
		if err != nil {
			return nil, err
		}
		experiment = exp
	}
	timeout, err := time.ParseDuration(viper.GetString("timeout"))
	if err != nil {
		return nil, err
	}
	return samweb.New(samweb.Config{
		BaseURL:    viper.GetString("url"),
		Experiment: experiment,
		Timeout:    timeout,
	})
}
