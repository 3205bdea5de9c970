package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/burnclock/internal/timer"
)

var timefmtCmd = &cobra.Command{
	Use:   "timefmt <HH:MM:SS | MM:SS | milliseconds>",
	Short: "Convert between clock strings and milliseconds",
	Example: "  burnclock timefmt 5:00:00     # 18000000\n" +
		"  burnclock timefmt 90500       # 1:30",
	Args: cobra.ExactArgs(1),
	RunE: runTimefmt,
}

func init() {
	rootCmd.AddCommand(timefmtCmd)
}

func runTimefmt(_ *cobra.Command, args []string) error {
	out, err := convertTime(args[0])
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// convertTime turns a clock string into milliseconds, or milliseconds into
// a clock string.
func convertTime(s string) (string, error) {
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		d, err := timer.MillisToDuration(ms)
		if err != nil {
			return "", err
		}
		return timer.FormatTime(d), nil
	}
	d, err := timer.ParseTimeString(s)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(d.Milliseconds(), 10), nil
}
