// Package commands assembles the pkgforge command tree, mirroring bb/cmd/bb/commands/root.go:
// a persistent config file path bound through spf13/viper, plus global debug/JSON flags bound
// through spf13/pflag (via cobra's flag set).
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pkgforge/pkgforge/cmd/pkgforge/cli"
	"github.com/pkgforge/pkgforge/cmd/pkgforge/commands/run"
	"github.com/pkgforge/pkgforge/cmd/pkgforge/commands/serve"
	"github.com/pkgforge/pkgforge/common/version"
)

const (
	DefaultConfigDir = "~/"
	ConfigFileName   = ".pkgforge"
)

var defaultConfigFilePath = fmt.Sprintf("%s%s.yml", DefaultConfigDir, ConfigFileName)

type GlobalConfig struct {
	Debug          bool
	JSON           bool
	ConfigFilePath string
}

var Global = &GlobalConfig{}

func init() {
	cobra.OnInitialize(initConfig)

	bindGlobalFlags(RootCmd.PersistentFlags())

	RootCmd.AddCommand(run.Cmd)
	RootCmd.AddCommand(serve.Cmd)
}

// bindGlobalFlags binds the persistent flags directly against the pflag.FlagSet cobra exposes,
// the same typed spf13/pflag calls bb/runner/app/config.go's ConfigFromFlags makes against the
// global pflag.CommandLine, adapted here to cobra's per-command FlagSet instead of a standalone
// process's global one.
func bindGlobalFlags(fs *flag.FlagSet) {
	fs.StringVarP(
		&Global.ConfigFilePath,
		"config",
		"c",
		defaultConfigFilePath,
		"The config file to use when executing commands.")

	fs.BoolVarP(
		&Global.Debug,
		"debug",
		"d",
		false,
		"Verbose debug output (not read by the run or serve subcommands).")

	fs.BoolVarP(
		&Global.JSON,
		"json",
		"j",
		false,
		"Structured JSON log output (not read by the run or serve subcommands, which choose JSON when stdout is not a terminal).")
}

// Execute runs the root command. It is called once by main.main.
func Execute() {
	cli.Exit(RootCmd.Execute())
}

func initConfig() {
	if Global.ConfigFilePath != "" && Global.ConfigFilePath != defaultConfigFilePath {
		viper.SetConfigFile(Global.ConfigFilePath)
	} else {
		viper.SetConfigName(ConfigFileName)
		viper.AddConfigPath(DefaultConfigDir)
		viper.AddConfigPath(".")
	}
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err == nil {
		Global.ConfigFilePath = viper.ConfigFileUsed()
	} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
		cli.Exit(fmt.Errorf("error loading config file (%s): %w", viper.ConfigFileUsed(), err))
	}
}

var RootCmd = &cobra.Command{
	Use:     "pkgforge",
	Short:   "pkgforge distributed package-build orchestrator",
	Long:    `pkgforge builds a package dependency DAG and executes it across remote build endpoints, reusing previously built artifacts where possible.`,
	Version: version.VersionToString(),
}
