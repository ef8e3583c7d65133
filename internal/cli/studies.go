package cli

import (
	"cropstudy/internal/study"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func defaultYear() int {
	return time.Now().Year() - 1
}

// baseSpec applies the persistent batch flags to a new study.
func (o *rootOptions) baseSpec(kind study.StudyKind) *study.StudySpec {
	return &study.StudySpec{
		Name:                o.name,
		Title:               o.title,
		Kind:                kind,
		BatchSize:           o.batchSize,
		MaxBatches:          o.maxBatches,
		BatchTimeoutSeconds: int(o.batchTimeout / time.Second),
	}
}

func newFieldsCmd(opts *rootOptions) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "fields <fieldId>...",
		Short: "Simulate an explicit list of fields",
		Long: `Simulate one or more fields by id. Ids may be given as separate arguments
or comma separated.`,
		Args: validArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := opts.baseSpec(study.FieldSet{FieldIDs: splitIDs(args), Year: year})
			return runStudy(cmd, opts, spec)
		},
	}
	cmd.Flags().IntVar(&year, "year", defaultYear(), "Simulation year")
	return cmd
}

func newGeometryCmd(opts *rootOptions) *cobra.Command {
	var (
		wkt  string
		crop int
		year int
	)
	cmd := &cobra.Command{
		Use:   "geometry",
		Short: "Simulate all fields of a crop inside a geometry",
		Args:  validArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := opts.baseSpec(study.GeometrySelection{Geometry: wkt, CropCode: crop, Year: year})
			return runStudy(cmd, opts, spec)
		},
	}
	cmd.Flags().StringVar(&wkt, "wkt", "", "Selection geometry as WKT")
	cmd.Flags().IntVar(&crop, "crop", 0, "Crop code")
	cmd.Flags().IntVar(&year, "year", defaultYear(), "Simulation year")
	return cmd
}

func newFileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "file <parameters.yaml>",
		Short: "Simulate a single crop parameter file",
		Args:  validArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := opts.baseSpec(study.ParameterFileStudy{Path: args[0]})
			return runStudy(cmd, opts, spec)
		},
	}
}

func newSweepCmd(opts *rootOptions) *cobra.Command {
	var (
		parameter string
		lo, hi    float64
		steps     int
	)
	cmd := &cobra.Command{
		Use:   "sweep <base.yaml>",
		Short: "Vary one parameter of a base file over a range",
		Args:  validArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := opts.baseSpec(study.SweepStudy{
				BaseFile:  args[0],
				Parameter: parameter,
				Min:       lo,
				Max:       hi,
				Steps:     steps,
			})
			return runStudy(cmd, opts, spec)
		},
	}
	cmd.Flags().StringVar(&parameter, "parameter", "", "Name of the parameter to vary")
	cmd.Flags().Float64Var(&lo, "min", 0, "Lowest value")
	cmd.Flags().Float64Var(&hi, "max", 0, "Highest value")
	cmd.Flags().IntVar(&steps, "steps", 2, "Number of values, including both ends")
	return cmd
}

func newStudyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "study <study.yaml>",
		Short: "Run a study defined in a YAML file",
		Long: `Run a study defined in a YAML file. Batch flags given on the command line
override the values in the file.`,
		Args: validArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := study.LoadFile(args[0])
			if err != nil {
				return err
			}
			opts.override(cmd, spec)
			return runStudy(cmd, opts, spec)
		},
	}
}

// override copies explicitly set batch flags onto a loaded study.
func (o *rootOptions) override(cmd *cobra.Command, spec *study.StudySpec) {
	f := cmd.Flags()
	if f.Changed("name") {
		spec.Name = o.name
	}
	if f.Changed("title") {
		spec.Title = o.title
	}
	if f.Changed("batch-size") {
		spec.BatchSize = o.batchSize
	}
	if f.Changed("max-batches") {
		spec.MaxBatches = o.maxBatches
	}
	if f.Changed("batch-timeout") {
		spec.BatchTimeoutSeconds = int(o.batchTimeout / time.Second)
	}
}

// splitIDs accepts ids as separate arguments, comma lists or both.
func splitIDs(args []string) []string {
	var ids []string
	for _, a := range args {
		for id := range strings.SplitSeq(a, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
