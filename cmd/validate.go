package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/hlsvariant/internal/encoders"
	"github.com/smazurov/hlsvariant/internal/encoders/validation"
)

// CreateValidateEncodersCmd creates the validate-encoders command.
func CreateValidateEncodersCmd() *cobra.Command {
	var outputFile string
	var ffmpegPath string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "validate-encoders",
		Short: "Validate hardware and software H.264 encoders",
		Long: `Runs a short synthetic encode with the NVENC and x264 encoders to determine which ones actually work ` +
			`on the current system. Results are written to a TOML file that transcode runs consult.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := validation.New(ffmpegPath)
			v.Catalog = encoders.NewCatalog(ffmpegPath)

			store := encoders.NewResultsStore(outputFile)
			results, err := v.ValidateAndSave(cmd.Context(), store)
			if err != nil {
				return err
			}
			if quiet {
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "FFmpeg:  %s\n", results.FFmpegVersion)
			fmt.Fprintf(out, "Working: %s\n", listOrNone(results.Working))
			fmt.Fprintf(out, "Failed:  %s\n", listOrNone(results.Failed))
			fmt.Fprintf(out, "Results saved to %s\n", store.Path())
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "validated_encoders.toml", "Output file for validation results")
	cmd.Flags().StringVar(&ffmpegPath, "ffmpeg", "ffmpeg", "Path to the ffmpeg binary")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the validation summary")

	return cmd
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
