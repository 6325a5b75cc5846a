package ffmpeg

// OptionType is an input behavior flag applied before -i.
type OptionType string

const (
	OptionGenPTS         OptionType = "genpts"
	OptionIgnoreDTS      OptionType = "igndts"
	OptionDiscardCorrupt OptionType = "discardcorrupt"
	OptionNoBuffer       OptionType = "nobuffer"
	OptionRealtime       OptionType = "realtime"
)

// OptionInfo describes an option for help output and config validation.
type OptionInfo struct {
	Key         OptionType
	Name        string
	Description string
	Category    string
	// Exclusive options cannot be combined within the same group.
	ExclusiveGroup string
}

// AllOptions lists every supported input option.
var AllOptions = []OptionInfo{
	{
		Key:         OptionGenPTS,
		Name:        "Generate PTS",
		Description: "Generate missing presentation timestamps",
		Category:    "Timestamps",
	},
	{
		Key:         OptionIgnoreDTS,
		Name:        "Ignore DTS",
		Description: "Ignore decoding timestamps from the container",
		Category:    "Timestamps",
	},
	{
		Key:         OptionDiscardCorrupt,
		Name:        "Discard Corrupt",
		Description: "Drop corrupted packets instead of decoding them",
		Category:    "Error Handling",
	},
	{
		Key:            OptionNoBuffer,
		Name:           "No Buffer",
		Description:    "Reduce input buffering",
		Category:       "Pacing",
		ExclusiveGroup: "pacing",
	},
	{
		Key:            OptionRealtime,
		Name:           "Realtime",
		Description:    "Read input at its native frame rate",
		Category:       "Pacing",
		ExclusiveGroup: "pacing",
	},
}

// LookupOption returns metadata for key.
func LookupOption(key OptionType) (OptionInfo, bool) {
	for _, opt := range AllOptions {
		if opt.Key == key {
			return opt, true
		}
	}
	return OptionInfo{}, false
}

// ValidateOptions checks for unknown keys and exclusive groups.
func ValidateOptions(options []OptionType) []string {
	var errs []string
	groups := make(map[string]OptionType)

	for _, o := range options {
		info, ok := LookupOption(o)
		if !ok {
			errs = append(errs, "unknown option: "+string(o))
			continue
		}
		if info.ExclusiveGroup != "" {
			if prev, ok := groups[info.ExclusiveGroup]; ok && prev != o {
				errs = append(errs, "only one "+info.ExclusiveGroup+" option allowed: "+string(prev)+", "+string(o))
			} else {
				groups[info.ExclusiveGroup] = o
			}
		}
	}
	return errs
}

// ApplyOptions appends the input flags for options to args.
func ApplyOptions(options []OptionType, args []string) []string {
	var fflags string
	for _, o := range options {
		switch o {
		case OptionGenPTS, OptionIgnoreDTS, OptionDiscardCorrupt, OptionNoBuffer:
			fflags += "+" + string(o)
		}
	}
	if fflags != "" {
		args = append(args, "-fflags", fflags)
	}
	for _, o := range options {
		if o == OptionRealtime {
			args = append(args, "-re")
		}
	}
	return args
}
