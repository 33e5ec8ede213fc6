package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Path flags
	App  string `flag:"app" desc:"Source directory" default:"app"`
	Dist string `flag:"dist" desc:"Output directory" default:"dist"`

	// Server flags
	Port int    `flag:"port,p" desc:"Port to serve on" default:"3000"`
	Host string `flag:"host" desc:"Host to bind to" default:"localhost"`
	Open bool   `flag:"open" desc:"Open the browser when serving" default:"false"`

	// Output flags
	OutputFormat string `flag:"format,f" desc:"Output format (table|json|yaml)" default:"table"`
}

// AddStandardFlags adds standard flags to a command. Path and server flags
// are persistent so every task subcommand accepts them.
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "paths":
			addPathFlags(cmd, flags)
		case "server":
			addServerFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addPathFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.PersistentFlags().StringVar(&flags.App, "app", "app", "Source directory")
	cmd.PersistentFlags().StringVar(&flags.Dist, "dist", "dist", "Output directory")
}

func addServerFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.PersistentFlags().IntVarP(&flags.Port, "port", "p", 3000, "Port to serve on")
	cmd.PersistentFlags().StringVar(&flags.Host, "host", "localhost", "Host to bind to")
	cmd.PersistentFlags().BoolVar(&flags.Open, "open", false, "Open the browser when serving")

	AddFlagValidation(cmd, "port", ValidatePort)
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "format", "f", "table", "Output format (table|json|yaml)")

	AddFlagValidation(cmd, "format", func(format string) error {
		return ValidateFormat(format, []string{"table", "json", "yaml"})
	})
}

// BindViperFlags binds flags to viper configuration keys so a flag the user
// set wins over the environment and the configuration file.
func BindViperFlags(cmd *cobra.Command, bindings map[string]string) {
	for flagName, configKey := range bindings {
		if flag := lookupFlag(cmd, flagName); flag != nil {
			_ = viper.BindPFlag(configKey, flag)
		}
	}
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag
	}
	return cmd.PersistentFlags().Lookup(name)
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := lookupFlag(cmd, flagName)
	if flag == nil {
		return
	}

	originalSet := flag.Value.Set

	flag.Value = &validatingValue{
		Value:       flag.Value,
		validator:   validator,
		originalSet: originalSet,
	}
}

type validatingValue struct {
	pflag.Value
	validator   func(string) error
	originalSet func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.originalSet(val)
}

// ValidatePort accepts 0, which lets the OS pick a free port.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}

	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}

	return nil
}

// ValidateFormat checks an output format against the supported ones.
func ValidateFormat(format string, valid []string) error {
	for _, v := range valid {
		if format == v {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q, must be one of: %s", format, strings.Join(valid, ", "))
}
