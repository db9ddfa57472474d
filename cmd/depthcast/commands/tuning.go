package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/depthcast/depthcast/internal/config"
	"github.com/depthcast/depthcast/internal/tonemap"
)

var tuningCmd = &cobra.Command{
	Use:   "tuning",
	Short: "Inspect and edit the infrared tone-mapping parameters",
}

var tuningShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active tuning parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := tuningStore()
		if err != nil {
			return err
		}
		p := store.LoadOrDefault()
		fmt.Printf("tuning file: %s\n", store.Path())
		fmt.Printf("  infrared_output_value_minimum: %g\n", p.OutputMin)
		fmt.Printf("  infrared_output_value_maximum: %g\n", p.OutputMax)
		fmt.Printf("  infrared_source_scale:         %g\n", p.SourceScale)
		return nil
	},
}

var tuningSetCmd = &cobra.Command{
	Use:   "set <min> <max> <scale>",
	Short: "Write new tuning parameters",
	Long: `Write new tone-mapping parameters to the tuning file.

A running depthcast instance watching the same file picks the change up on
its next poll; no restart is needed.`,
	Example: `  depthcast tuning set 0.25 1.0 3.0`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var vals [3]float64
		for i, arg := range args {
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return fmt.Errorf("argument %d (%q) is not a number", i+1, arg)
			}
			vals[i] = v
		}
		p := tonemap.Params{OutputMin: vals[0], OutputMax: vals[1], SourceScale: vals[2]}

		store, err := tuningStore()
		if err != nil {
			return err
		}
		if err := store.Write(p); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", store.Path())
		return nil
	},
}

func tuningStore() (*tonemap.Store, error) {
	mgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, err
	}
	path := mgr.Get().TuningFile
	if viper.IsSet("tuning_file") && viper.GetString("tuning_file") != "" {
		path = viper.GetString("tuning_file")
	}
	return tonemap.NewStore(path), nil
}

func init() {
	tuningCmd.AddCommand(tuningShowCmd)
	tuningCmd.AddCommand(tuningSetCmd)
	rootCmd.AddCommand(tuningCmd)
}
