package cli

import (
	"fmt"
	"strconv"
	"strings"

	"cog-cli/internal/model"
	"cog-cli/internal/tui"

	"github.com/spf13/cobra"
)

func newJobsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Pipeline job commands",
	}
	cmd.AddCommand(newJobsListCmd(app))
	cmd.AddCommand(newJobsShowCmd(app))
	cmd.AddCommand(newJobsCreateCmd(app))
	cmd.AddCommand(newJobsDuplicateCmd(app))
	cmd.AddCommand(newJobsCancelCmd(app))
	cmd.AddCommand(newJobsWatchCmd(app))
	return cmd
}

func newJobsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:               "list <series-id>",
		Short:             "List the jobs of a series, newest first",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeSeries(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.localStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			jobs, err := st.ListJobs(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": jobs})
		},
	}
}

func newJobsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.localStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			j, err := st.GetJob(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			done, total := j.Progress()
			return writeOut(cmd, app, map[string]any{
				"data": j,
				"meta": map[string]any{"progress": fmt.Sprintf("%d/%d", done, total)},
			})
		},
	}
}

func newJobsCreateCmd(app *App) *cobra.Command {
	var (
		kind  string
		steps []string
	)

	cmd := &cobra.Command{
		Use:   "create <series-id>",
		Short: "Create a pending job from --step specs",
		Long: strings.TrimSpace(`
Each --step is <kind>:<value>:
  generate:<prompt>
  refine:<refinement prompt>
  touchup:<mode>[:<instruction>]
  upscale:<factor>
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(steps) == 0 {
				return writeErr(cmd, errMissing("--step"))
			}
			var cfgs []model.StepConfig
			for _, s := range steps {
				cfg, err := parseStep(s)
				if err != nil {
					return writeErr(cmd, err)
				}
				cfgs = append(cfgs, cfg)
			}
			st, err := app.localStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			j, err := st.CreateJob(cmd.Context(), args[0], model.JobKind(strings.TrimSpace(kind)), cfgs)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data":   j,
				"_hints": []string{"cog jobs watch " + j.SeriesID},
			})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(model.JobKindPipeline), "Job kind (pipeline|remix)")
	cmd.Flags().StringArrayVar(&steps, "step", nil, "Step spec (repeatable, in order)")
	return cmd
}

// parseStep reads a <kind>:<value> step spec.
func parseStep(spec string) (model.StepConfig, error) {
	kind, rest, ok := strings.Cut(strings.TrimSpace(spec), ":")
	rest = strings.TrimSpace(rest)
	if !ok || rest == "" {
		return nil, fmt.Errorf("invalid step %q (expected <kind>:<value>)", spec)
	}
	switch model.StepKind(strings.ToLower(kind)) {
	case model.StepGenerate:
		return model.GenerateStep{Prompt: rest}, nil
	case model.StepRefine:
		return model.RefineStep{RefinementPrompt: rest}, nil
	case model.StepTouchup:
		mode, instr, _ := strings.Cut(rest, ":")
		return model.TouchupStep{Mode: strings.TrimSpace(mode), Instruction: strings.TrimSpace(instr)}, nil
	case model.StepUpscale:
		n, err := strconv.Atoi(strings.TrimPrefix(rest, "x"))
		if err != nil || n < 2 {
			return nil, fmt.Errorf("invalid upscale factor %q", rest)
		}
		return model.UpscaleStep{Factor: n}, nil
	default:
		return nil, fmt.Errorf("unknown step kind %q", kind)
	}
}

func newJobsDuplicateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <job-id>",
		Short: "Copy a job's steps into a new pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := app.backend(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := a.DuplicateJob(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"jobId": id, "sourceJobId": args[0]}})
		},
	}
}

func newJobsCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job and its unfinished steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.localStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			j, err := st.UpdateJobStatus(cmd.Context(), args[0], model.JobCancelled, "")
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": j})
		},
	}
}

func newJobsWatchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:               "watch <series-id>",
		Short:             "Watch job progress until every job finishes",
		Args:              cobra.ExactArgs(1),
		Annotations:       map[string]string{annotTUI: "true"},
		ValidArgsFunction: completeSeries(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.localStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if _, err := st.GetSeries(cmd.Context(), args[0]); err != nil {
				return writeErr(cmd, err)
			}
			return tui.WatchJobs(cmd.Context(), st, args[0])
		},
	}
}
