package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/hlsvariant/internal/pipeline"
	"github.com/smazurov/hlsvariant/internal/probe"
)

// ProbedStream is one row of the probe command's output.
type ProbedStream struct {
	Index     int    `json:"index"`
	MediaType string `json:"media_type"`
	Kind      string `json:"kind"`
	Action    string `json:"action"`
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var ffprobePath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe [input]",
		Short: "List the streams a transcode would route",
		Long:  `Probes the input with ffprobe and shows, per stream, the branch it would be linked to or why it would be skipped.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := probe.NewProber(ffprobePath).Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rows := Routing(result.Streams)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			fmt.Fprintf(out, "Format: %s  Duration: %s\n", result.FormatName, result.Duration)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tMEDIA TYPE\tKIND\tACTION")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Index, r.MediaType, r.Kind, r.Action)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&ffprobePath, "ffprobe", "ffprobe", "Path to the ffprobe binary")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}

// Routing reports how the dynamic linker would treat each stream, in
// container order: the first stream of each kind is linked, later ones are
// ignored and unrecognized kinds are skipped.
func Routing(streams []probe.Stream) []ProbedStream {
	linked := make(map[pipeline.StreamKind]bool)
	rows := make([]ProbedStream, 0, len(streams))
	for _, s := range streams {
		mediaType := s.MediaType()
		kind := pipeline.Classify(mediaType)

		action := "skip"
		switch {
		case kind == pipeline.Unrecognized:
		case linked[kind]:
			action = "ignore"
		default:
			action = "link"
			linked[kind] = true
		}

		rows = append(rows, ProbedStream{
			Index:     s.Index,
			MediaType: mediaType,
			Kind:      kind.String(),
			Action:    action,
		})
	}
	return rows
}
