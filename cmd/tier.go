package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/rafall04/cctv-sub000/tier"
)

var reducedMotion bool

var tierCmd = &cobra.Command{
	Use:   "tier [low|medium|high]",
	Short: "Print the playback policy for a tier, detecting the host when omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			t   tier.Tier
			err error
		)
		if len(args) == 1 {
			t, err = tier.Parse(args[0])
		} else {
			t, err = tier.DetectHost()
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tier.Policy(t, reducedMotion))
	},
}

func init() {
	tierCmd.Flags().BoolVar(&reducedMotion, "reduced-motion", false, "force decorative animations off")
	rootCmd.AddCommand(tierCmd)
}
