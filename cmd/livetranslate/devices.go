package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/obiente/translate/livetranslate/internal/source"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := source.ListDevices()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCHANNELS\tRATE\tDEFAULT")
		for _, d := range devices {
			def := ""
			if d.IsDefault {
				def = "*"
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%.0f\t%s\n", d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate, def)
		}
		return w.Flush()
	},
}
